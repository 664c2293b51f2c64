package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/chromenv/internal/browser"
	"github.com/jmylchreest/chromenv/internal/logging"
	"github.com/jmylchreest/chromenv/internal/models"
)

const maxNameLength = 100

// CreateRequest carries the fields of a new environment.
type CreateRequest struct {
	Name          string
	GroupName     string
	Notes         string
	Tags          []string
	Proxy         string
	ProxyLabel    string
	UserAgent     string
	WalletAddress string
}

func validateName(op, field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", validationError(op, "%s is required", field)
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return "", validationError(op, "%s must be at most %d characters", field, maxNameLength)
	}
	return value, nil
}

// Create allocates an id and data directory and stores the new environment.
// The directory exists before the record does; it is removed again if the insert fails.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*models.Environment, error) {
	const op = "create"

	name, err := validateName(op, "name", req.Name)
	if err != nil {
		return nil, err
	}
	group, err := validateName(op, "group name", req.GroupName)
	if err != nil {
		return nil, err
	}

	root := o.settings.Get().DataPath
	if root == "" || !filepath.IsAbs(root) {
		return nil, validationError(op, "data path %q is not an absolute directory", root)
	}

	id := ulid.Make().String()
	env := &models.Environment{
		ID:            id,
		Name:          name,
		GroupName:     group,
		Notes:         req.Notes,
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		DataDir:       filepath.Join(root, "environments", strings.ToLower(id)),
		Tags:          models.NormalizeTags(req.Tags),
		Proxy:         strings.TrimSpace(req.Proxy),
		ProxyLabel:    strings.TrimSpace(req.ProxyLabel),
		UserAgent:     strings.TrimSpace(req.UserAgent),
	}

	if err := os.MkdirAll(env.DataDir, 0o755); err != nil {
		return nil, newError(CodeStore, op, id, fmt.Errorf("create data directory: %w", err))
	}

	if err := o.store.Create(ctx, env); err != nil {
		if rmErr := os.RemoveAll(env.DataDir); rmErr != nil {
			o.logger.Warn("failed to remove data directory after insert failure", "data_dir", env.DataDir, "error", rmErr)
		}
		return nil, storeError(op, id, err)
	}

	o.forgetGroup(group)
	o.logger.Info("environment created", "environment_id", id, "name", name, "group", group)
	return env, nil
}

// Get returns an active environment with its instance state.
func (o *Orchestrator) Get(ctx context.Context, id string) (*models.EnvironmentStatus, error) {
	env, err := o.store.GetActive(ctx, id)
	if err != nil {
		return nil, storeError("get", id, err)
	}
	if env == nil {
		return nil, newError(CodeNotFound, "get", id, nil)
	}
	status := o.withStatus(env)
	return &status, nil
}

// List returns active environments, most recently used first.
func (o *Orchestrator) List(ctx context.Context) ([]models.EnvironmentStatus, error) {
	envs, err := o.store.ListActive(ctx)
	if err != nil {
		return nil, storeError("list", "", err)
	}
	out := make([]models.EnvironmentStatus, 0, len(envs))
	for _, env := range envs {
		out = append(out, o.withStatus(env))
	}
	return out, nil
}

func (o *Orchestrator) withStatus(env *models.Environment) models.EnvironmentStatus {
	status := models.EnvironmentStatus{Environment: *env, State: models.InstanceIdle}
	if info, ok := o.instanceInfo(env.ID); ok {
		status.State = info.State
		status.DebugPort = info.DebugPort
	}
	return status
}

// ListDeleted returns trashed environments with the days left before purge.
func (o *Orchestrator) ListDeleted(ctx context.Context) ([]models.TrashedEnvironment, error) {
	envs, err := o.store.ListDeleted(ctx)
	if err != nil {
		return nil, storeError("list_deleted", "", err)
	}

	now := o.now()
	out := make([]models.TrashedEnvironment, 0, len(envs))
	for _, env := range envs {
		remaining := env.DeletedAt.Add(o.cfg.Retention).Sub(now)
		days := int(math.Ceil(remaining.Hours() / 24))
		if days < 0 {
			days = 0
		}
		out = append(out, models.TrashedEnvironment{Environment: *env, DaysRemaining: days})
	}
	return out, nil
}

// Update replaces the mutable fields set in upd. An update that changes nothing
// returns the current record without writing.
func (o *Orchestrator) Update(ctx context.Context, id string, upd models.EnvironmentUpdate) (*models.Environment, error) {
	const op = "update"

	if upd.Name != nil {
		name, err := validateName(op, "name", *upd.Name)
		if err != nil {
			return nil, err
		}
		upd.Name = &name
	}
	if upd.GroupName != nil {
		group, err := validateName(op, "group name", *upd.GroupName)
		if err != nil {
			return nil, err
		}
		upd.GroupName = &group
	}

	unlock := o.locks.Lock(id)
	defer unlock()

	env, err := o.store.GetActive(ctx, id)
	if err != nil {
		return nil, storeError(op, id, err)
	}
	if env == nil {
		return nil, newError(CodeNotFound, op, id, nil)
	}

	// Clients echo the masked proxy they were shown; that is not a change.
	if upd.Proxy != nil {
		if p := strings.TrimSpace(*upd.Proxy); p != env.Proxy && p == browser.MaskProxyCredentials(env.Proxy) {
			upd.Proxy = nil
		}
	}

	if !upd.Apply(env) {
		return env, nil
	}
	if err := o.store.Update(ctx, env); err != nil {
		return nil, storeError(op, id, err)
	}

	if upd.GroupName != nil {
		o.forgetGroup(*upd.GroupName)
	}
	logging.FromContext(logging.WithEnvironmentID(ctx, id), o.logger).Info("environment updated")
	return env, nil
}

// Delete moves an active environment to the trash, closing it first if running.
// The data directory is kept. It returns false if no active environment has this id.
func (o *Orchestrator) Delete(ctx context.Context, id string) (bool, error) {
	const op = "delete"

	unlock := o.locks.Lock(id)
	defer unlock()

	env, err := o.store.GetActive(ctx, id)
	if err != nil {
		return false, storeError(op, id, err)
	}
	if env == nil {
		return false, nil
	}

	o.closeLocked(ctx, id)

	ok, err := o.store.SoftDelete(ctx, id, o.now())
	if err != nil {
		return false, storeError(op, id, err)
	}
	if ok {
		o.logger.Info("environment moved to trash", "environment_id", id, "name", env.Name)
	}
	return ok, nil
}

// Restore takes a trashed environment back out of the trash.
func (o *Orchestrator) Restore(ctx context.Context, id string) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	ok, err := o.store.Restore(ctx, id)
	if err != nil {
		return false, storeError("restore", id, err)
	}
	if ok {
		o.logger.Info("environment restored", "environment_id", id)
	}
	return ok, nil
}

// PermanentlyDelete removes a trashed environment's data directory and record.
// The directory goes first so a failure leaves the record in place for a retry.
func (o *Orchestrator) PermanentlyDelete(ctx context.Context, id string) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()
	return o.purgeLocked(ctx, id)
}

func (o *Orchestrator) purgeLocked(ctx context.Context, id string) (bool, error) {
	const op = "permanently_delete"

	env, err := o.store.GetDeleted(ctx, id)
	if err != nil {
		return false, storeError(op, id, err)
	}
	if env == nil {
		return false, nil
	}

	o.closeLocked(ctx, id)

	if err := removeDataDir(env.DataDir); err != nil {
		return false, newError(CodeStore, op, id, fmt.Errorf("remove data directory: %w", err))
	}

	ok, err := o.store.HardDelete(ctx, id)
	if err != nil {
		return false, storeError(op, id, err)
	}

	o.metrics.purged.Inc()
	o.logger.Info("environment permanently deleted", "environment_id", id, "data_dir", env.DataDir)
	return ok, nil
}

// PurgeExpired permanently deletes every environment that has been in the trash
// longer than the retention window and returns how many were removed.
func (o *Orchestrator) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := o.now().Add(-o.cfg.Retention)

	expired, err := o.store.ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, storeError("purge", "", err)
	}

	var errs []error
	purged := 0
	for _, env := range expired {
		unlock := o.locks.Lock(env.ID)
		ok, err := o.purgeLocked(ctx, env.ID)
		unlock()

		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			purged++
		}
	}

	if purged > 0 || len(errs) > 0 {
		o.logger.Info("purged expired environments", "count", purged, "failed", len(errs))
	}
	return purged, errors.Join(errs...)
}

// ========================================
// Groups
// ========================================

// Groups returns the distinct group names of active environments.
func (o *Orchestrator) Groups(ctx context.Context) ([]string, error) {
	groups, err := o.store.ActiveGroups(ctx)
	if err != nil {
		return nil, storeError("groups", "", err)
	}
	return groups, nil
}

// DeclareGroup records a group name offered to the user before any
// environment references it.
func (o *Orchestrator) DeclareGroup(name string) error {
	name, err := validateName("declare_group", "group name", name)
	if err != nil {
		return err
	}
	o.groupsMu.Lock()
	defer o.groupsMu.Unlock()
	o.declaredGroups[name] = struct{}{}
	return nil
}

func (o *Orchestrator) forgetGroup(name string) {
	o.groupsMu.Lock()
	defer o.groupsMu.Unlock()
	delete(o.declaredGroups, name)
}

// EmptyGroups returns declared group names that no active environment references.
func (o *Orchestrator) EmptyGroups(ctx context.Context) ([]string, error) {
	active, err := o.store.ActiveGroups(ctx)
	if err != nil {
		return nil, storeError("empty_groups", "", err)
	}
	inUse := make(map[string]struct{}, len(active))
	for _, g := range active {
		inUse[g] = struct{}{}
	}

	o.groupsMu.Lock()
	defer o.groupsMu.Unlock()

	empty := []string{}
	for g := range o.declaredGroups {
		if _, ok := inUse[g]; !ok {
			empty = append(empty, g)
		}
	}
	sort.Strings(empty)
	return empty, nil
}

// DeleteEmptyGroup drops a declared group. It returns false if the group is
// unknown or still referenced by an active environment.
func (o *Orchestrator) DeleteEmptyGroup(ctx context.Context, name string) (bool, error) {
	n, err := o.store.CountActiveInGroup(ctx, name)
	if err != nil {
		return false, storeError("delete_group", "", err)
	}
	if n > 0 {
		return false, nil
	}

	o.groupsMu.Lock()
	defer o.groupsMu.Unlock()
	if _, ok := o.declaredGroups[name]; !ok {
		return false, nil
	}
	delete(o.declaredGroups, name)
	return true, nil
}

// isSafeDataDir rejects empty, relative and filesystem-root paths.
func isSafeDataDir(dir string) bool {
	if dir == "" || !filepath.IsAbs(dir) {
		return false
	}
	clean := filepath.Clean(dir)
	return filepath.Dir(clean) != clean
}
