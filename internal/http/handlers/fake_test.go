package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/models"
	"github.com/jmylchreest/chromenv/internal/orchestrator"
)

// fakeService is an in-memory EnvironmentService.
type fakeService struct {
	mu        sync.Mutex
	envs      map[string]*models.Environment
	running   map[string]models.InstanceInfo
	declared  map[string]bool
	launchErr error
	purged    int
	nextID    int
}

func newFakeService() *fakeService {
	return &fakeService{
		envs:     make(map[string]*models.Environment),
		running:  make(map[string]models.InstanceInfo),
		declared: make(map[string]bool),
	}
}

func notFound(op, id string) error {
	return &orchestrator.Error{Code: orchestrator.CodeNotFound, Op: op, EnvironmentID: id}
}

func (f *fakeService) add(name, group string) *models.Environment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := string(rune('A'+f.nextID-1)) + "01"
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	env := &models.Environment{
		ID: id, Name: name, GroupName: group,
		DataDir:   "/data/environments/" + id,
		CreatedAt: now, LastUsed: now,
	}
	f.envs[id] = env
	return env
}

func (f *fakeService) Create(_ context.Context, req orchestrator.CreateRequest) (*models.Environment, error) {
	if req.Name == "" {
		return nil, &orchestrator.Error{Code: orchestrator.CodeValidation, Op: "create", Message: "name is required"}
	}
	env := f.add(req.Name, req.GroupName)
	env.Tags = req.Tags
	env.Proxy = req.Proxy
	return env, nil
}

func (f *fakeService) active(id string) (*models.Environment, bool) {
	env, ok := f.envs[id]
	if !ok || env.DeletedAt != nil {
		return nil, false
	}
	return env, true
}

func (f *fakeService) Get(_ context.Context, id string) (*models.EnvironmentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.active(id)
	if !ok {
		return nil, notFound("get", id)
	}
	st := models.EnvironmentStatus{Environment: *env, State: models.InstanceIdle}
	if info, ok := f.running[id]; ok {
		st.State = info.State
		st.DebugPort = info.DebugPort
	}
	return &st, nil
}

func (f *fakeService) List(ctx context.Context) ([]models.EnvironmentStatus, error) {
	f.mu.Lock()
	var ids []string
	for id, env := range f.envs {
		if env.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()

	var out []models.EnvironmentStatus
	for _, id := range ids {
		st, _ := f.Get(ctx, id)
		out = append(out, *st)
	}
	return out, nil
}

func (f *fakeService) Update(_ context.Context, id string, upd models.EnvironmentUpdate) (*models.Environment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.active(id)
	if !ok {
		return nil, notFound("update", id)
	}
	if upd.Name != nil && *upd.Name == "" {
		return nil, &orchestrator.Error{Code: orchestrator.CodeValidation, Op: "update", Message: "name is required"}
	}
	upd.Apply(env)
	return env, nil
}

func (f *fakeService) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.active(id)
	if !ok {
		return false, nil
	}
	now := time.Now()
	env.DeletedAt = &now
	delete(f.running, id)
	return true, nil
}

func (f *fakeService) Launch(_ context.Context, id string) (models.InstanceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.active(id); !ok {
		return models.InstanceInfo{}, notFound("launch", id)
	}
	if f.launchErr != nil {
		return models.InstanceInfo{}, f.launchErr
	}
	if info, ok := f.running[id]; ok {
		return info, nil
	}
	info := models.InstanceInfo{
		EnvironmentID: id,
		State:         models.InstanceLaunching,
		DebugPort:     9222 + len(f.running),
		LaunchedAt:    time.Now(),
	}
	f.running[id] = info
	return info, nil
}

func (f *fakeService) Close(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.running[id]
	delete(f.running, id)
	return ok, nil
}

func (f *fakeService) Instances() []models.InstanceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.InstanceInfo, 0, len(f.running))
	for _, info := range f.running {
		out = append(out, info)
	}
	return out
}

func (f *fakeService) ListDeleted(context.Context) ([]models.TrashedEnvironment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TrashedEnvironment
	for _, env := range f.envs {
		if env.DeletedAt != nil {
			out = append(out, models.TrashedEnvironment{Environment: *env, DaysRemaining: 30})
		}
	}
	return out, nil
}

func (f *fakeService) Restore(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.envs[id]
	if !ok || env.DeletedAt == nil {
		return false, nil
	}
	env.DeletedAt = nil
	return true, nil
}

func (f *fakeService) PermanentlyDelete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	env, ok := f.envs[id]
	if !ok || env.DeletedAt == nil {
		return false, nil
	}
	delete(f.envs, id)
	return true, nil
}

func (f *fakeService) PurgeExpired(context.Context) (int, error) {
	return f.purged, nil
}

func (f *fakeService) Groups(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, env := range f.envs {
		if env.DeletedAt == nil && !seen[env.GroupName] {
			seen[env.GroupName] = true
			out = append(out, env.GroupName)
		}
	}
	return out, nil
}

func (f *fakeService) EmptyGroups(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for g := range f.declared {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeService) DeclareGroup(name string) error {
	if name == "" {
		return &orchestrator.Error{Code: orchestrator.CodeValidation, Op: "declare_group", Message: "group name is required"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared[name] = true
	return nil
}

func (f *fakeService) DeleteEmptyGroup(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.declared[name] {
		return false, nil
	}
	delete(f.declared, name)
	return true, nil
}

// fakeSettings is an in-memory SettingsStore.
type fakeSettings struct {
	mu sync.Mutex
	s  config.Settings
}

func (f *fakeSettings) Get() config.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSettings) Save(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s = s
	return nil
}

var errBoom = errors.New("boom")
