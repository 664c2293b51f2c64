package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/chromenv/internal/browser"
	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/database"
	"github.com/jmylchreest/chromenv/internal/health"
	"github.com/jmylchreest/chromenv/internal/portalloc"
	"github.com/jmylchreest/chromenv/internal/repository"
)

type staticSettings struct {
	mu sync.Mutex
	s  config.Settings
}

func (s *staticSettings) Get() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *staticSettings) set(fn func(*config.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.s)
}

type fakeMonitor struct {
	mu        sync.Mutex
	gen       uint64
	attached  map[string]uint64
	detached  []string
	events    chan health.Event
	connected map[string]bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{
		attached:  make(map[string]uint64),
		events:    make(chan health.Event, 16),
		connected: make(map[string]bool),
	}
}

func (m *fakeMonitor) Attach(id, _ string, _ int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.attached[id] = m.gen
	return m.gen
}

func (m *fakeMonitor) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attached, id)
	m.detached = append(m.detached, id)
}

func (m *fakeMonitor) IsConnected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[id]
}

func (m *fakeMonitor) Events() <-chan health.Event { return m.events }
func (m *fakeMonitor) Start()                      {}
func (m *fakeMonitor) Stop()                       {}

func (m *fakeMonitor) generation(id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached[id]
}

func (m *fakeMonitor) detachCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.detached {
		if d == id {
			n++
		}
	}
	return n
}

func (m *fakeMonitor) send(kind health.EventKind, id string) {
	m.events <- health.Event{
		Kind:          kind,
		EnvironmentID: id,
		Generation:    m.generation(id),
		Source:        health.SourceProtocol,
	}
}

type fakeLauncher struct {
	mu    sync.Mutex
	specs []browser.Spec
	err   error
	delay time.Duration
}

func (l *fakeLauncher) Launch(_ context.Context, spec browser.Spec) (*browser.Process, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.specs = append(l.specs, spec)
	return &browser.Process{PID: 1000 + len(l.specs), StartedAt: time.Now()}, nil
}

func (l *fakeLauncher) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.specs)
}

func (l *fakeLauncher) last() browser.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specs[len(l.specs)-1]
}

type fakeResolver struct {
	path string
	err  error
	got  string
}

func (r *fakeResolver) Resolve(configured string) (string, error) {
	r.got = configured
	return r.path, r.err
}

type fakeProber struct {
	mu         sync.Mutex
	running    map[string]bool
	terminated []string
}

func (p *fakeProber) FindByCommandLineFragment(_ context.Context, fragments ...string) (map[string][]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]int)
	for _, f := range fragments {
		if p.running[f] {
			out[f] = []int{4242}
		}
	}
	return out, nil
}

func (p *fakeProber) TerminateByCommandLineFragment(_ context.Context, fragment string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, fragment)
	if p.running[fragment] {
		delete(p.running, fragment)
		return 1, nil
	}
	return 0, nil
}

func (p *fakeProber) terminations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.terminated...)
}

type harness struct {
	orch     *Orchestrator
	store    *repository.SQLiteEnvironmentRepository
	settings *staticSettings
	monitor  *fakeMonitor
	launcher *fakeLauncher
	resolver *fakeResolver
	ports    *portalloc.Allocator
	prober   *fakeProber
	notified atomic.Int32
	dataPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithMonitor(t, nil)
}

// newHarnessWithMonitor wires mon in place of the fake monitor when non-nil.
func newHarnessWithMonitor(t *testing.T, mon Monitor) *harness {
	t.Helper()

	db, err := database.Open(context.Background(), database.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		store:    repository.NewSQLiteEnvironmentRepository(db.DB),
		monitor:  newFakeMonitor(),
		launcher: &fakeLauncher{},
		resolver: &fakeResolver{path: "/usr/bin/chromium"},
		ports:    portalloc.NewWithProbe(func(int) bool { return true }),
		prober:   &fakeProber{running: make(map[string]bool)},
		dataPath: t.TempDir(),
	}
	h.settings = &staticSettings{s: config.Settings{DataPath: h.dataPath}}
	if mon == nil {
		mon = h.monitor
	}

	h.orch = New(Config{PortStart: 9222, PortAttempts: 100}, Deps{
		Store:    h.store,
		Settings: h.settings,
		Monitor:  mon,
		Launcher: h.launcher,
		Resolver: h.resolver,
		Ports:    h.ports,
		Prober:   h.prober,
		Notifier: NotifierFunc(func() { h.notified.Add(1) }),
	})
	h.orch.Start()
	t.Cleanup(h.orch.Shutdown)

	return h
}

func (h *harness) create(t *testing.T, name, group string) string {
	t.Helper()
	env, err := h.orch.Create(context.Background(), CreateRequest{Name: name, GroupName: group})
	require.NoError(t, err)
	return env.ID
}

var errBoom = errors.New("boom")
