// Package orchestrator owns the lifecycle of browser environments: it creates
// and trashes their records, launches and closes their browsers, and keeps the
// in-memory table of running instances in step with what the health monitor sees.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/chromenv/internal/browser"
	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/health"
	"github.com/jmylchreest/chromenv/internal/logging"
	"github.com/jmylchreest/chromenv/internal/models"
	"github.com/jmylchreest/chromenv/internal/portalloc"
	"github.com/jmylchreest/chromenv/internal/prober"
	"github.com/jmylchreest/chromenv/internal/repository"
)

// SettingsProvider supplies the current user settings.
type SettingsProvider interface {
	Get() config.Settings
}

// Monitor is the subset of health.Monitor the orchestrator drives.
type Monitor interface {
	Attach(id, dataDir string, port int) uint64
	Detach(id string)
	IsConnected(id string) bool
	Events() <-chan health.Event
	Start()
	Stop()
}

// Launcher spawns browser processes.
type Launcher interface {
	Launch(ctx context.Context, spec browser.Spec) (*browser.Process, error)
}

// BinaryResolver finds the browser executable.
type BinaryResolver interface {
	Resolve(configured string) (string, error)
}

// PortAllocator reserves debug ports.
type PortAllocator interface {
	Acquire(start, maxAttempts int) (int, error)
	Release(port int)
}

// Config holds the orchestrator's tunables.
type Config struct {
	PortStart      int
	PortAttempts   int
	Retention      time.Duration
	ChromePath     string        // Takes precedence over Settings.ChromePath
	ProcessTimeout time.Duration // Bound on OS process lookups and kills
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Store    repository.EnvironmentRepository
	Settings SettingsProvider
	Monitor  Monitor
	Launcher Launcher
	Resolver BinaryResolver
	Ports    PortAllocator
	Prober   prober.ProcessProber
	Notifier Notifier
	Metrics  *Metrics
	Logger   *slog.Logger
}

// instance is a row of the running-instance table.
type instance struct {
	envID      string
	dataDir    string
	port       int
	pid        int
	state      models.InstanceState
	launchedAt time.Time
	generation uint64
}

// Orchestrator composes the store, allocator, launcher and monitor.
type Orchestrator struct {
	cfg      Config
	store    repository.EnvironmentRepository
	settings SettingsProvider
	monitor  Monitor
	launcher Launcher
	resolver BinaryResolver
	ports    PortAllocator
	prober   prober.ProcessProber
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time

	locks *keyLock

	mu        sync.RWMutex
	instances map[string]*instance

	groupsMu       sync.Mutex
	declaredGroups map[string]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates an Orchestrator. Start must be called before launching.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.PortStart == 0 {
		cfg.PortStart = 9222
	}
	if cfg.PortAttempts == 0 {
		cfg.PortAttempts = 100
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.ProcessTimeout == 0 {
		cfg.ProcessTimeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func() {})
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics("")
	}

	return &Orchestrator{
		cfg:            cfg,
		store:          deps.Store,
		settings:       deps.Settings,
		monitor:        deps.Monitor,
		launcher:       deps.Launcher,
		resolver:       deps.Resolver,
		ports:          deps.Ports,
		prober:         deps.Prober,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		logger:         deps.Logger.With("component", "orchestrator"),
		now:            time.Now,
		locks:          newKeyLock(),
		instances:      make(map[string]*instance),
		declaredGroups: make(map[string]struct{}),
		done:           make(chan struct{}),
	}
}

// Start runs the monitor and the event loop that applies its verdicts.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		o.monitor.Start()
		o.wg.Add(1)
		go o.eventLoop()
	})
}

// Shutdown stops supervision and forgets all instances. Browsers keep running.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() {
		close(o.done)
		o.monitor.Stop()
		o.wg.Wait()

		o.mu.Lock()
		for id, inst := range o.instances {
			o.ports.Release(inst.port)
			delete(o.instances, id)
		}
		o.metrics.running.Set(0)
		o.mu.Unlock()
	})
}

func (o *Orchestrator) eventLoop() {
	defer o.wg.Done()
	events := o.monitor.Events()
	for {
		select {
		case <-o.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) handleEvent(ev health.Event) {
	unlock := o.locks.Lock(ev.EnvironmentID)
	defer unlock()

	o.mu.Lock()
	inst, ok := o.instances[ev.EnvironmentID]
	if !ok || inst.generation != ev.Generation {
		o.mu.Unlock()
		return
	}

	switch ev.Kind {
	case health.EventConfirmed:
		if inst.state != models.InstanceLaunching {
			o.mu.Unlock()
			return
		}
		inst.state = models.InstanceRunning
		o.mu.Unlock()

		o.metrics.launches.WithLabelValues("confirmed").Inc()
		o.logger.Info("instance running",
			"environment_id", inst.envID,
			"debug_port", inst.port,
			"source", ev.Source,
		)

	case health.EventTerminated:
		wasLaunching := inst.state == models.InstanceLaunching
		delete(o.instances, inst.envID)
		o.metrics.running.Set(float64(len(o.instances)))
		o.mu.Unlock()

		o.ports.Release(inst.port)
		if wasLaunching {
			o.metrics.launches.WithLabelValues("unconfirmed").Inc()
			o.logger.Warn("launch not confirmed, rolled back",
				"environment_id", inst.envID,
				"debug_port", inst.port,
				"reason", ev.Reason,
			)
		} else {
			o.metrics.deaths.WithLabelValues(string(ev.Source)).Inc()
			o.logger.Info("instance exited",
				"environment_id", inst.envID,
				"source", ev.Source,
				"reason", ev.Reason,
			)
		}

	default:
		o.mu.Unlock()
		return
	}

	o.notifier.InstancesChanged()
}

// ========================================
// Instance lifecycle
// ========================================

// Launch starts the environment's browser. It returns once the process is
// spawned; the instance stays Launching until the monitor confirms it.
// Launching an already running environment succeeds without side effects.
func (o *Orchestrator) Launch(ctx context.Context, id string) (models.InstanceInfo, error) {
	const op = "launch"
	ctx = logging.WithEnvironmentID(ctx, id)
	logger := logging.FromContext(ctx, o.logger)

	unlock := o.locks.Lock(id)
	defer unlock()

	env, err := o.store.GetActive(ctx, id)
	if err != nil {
		return models.InstanceInfo{}, storeError(op, id, err)
	}
	if env == nil {
		return models.InstanceInfo{}, newError(CodeNotFound, op, id, nil)
	}

	if info, ok := o.instanceInfo(id); ok {
		logger.Debug("already running")
		return info, nil
	}

	settings := o.settings.Get()
	configured := o.cfg.ChromePath
	if configured == "" {
		configured = settings.ChromePath
	}
	bin, err := o.resolver.Resolve(configured)
	if err != nil {
		return models.InstanceInfo{}, o.launchFailed(newError(CodeBinaryNotFound, op, id, err))
	}

	port, err := o.ports.Acquire(o.cfg.PortStart, o.cfg.PortAttempts)
	if err != nil {
		code := CodeNoPortAvailable
		if !errors.Is(err, portalloc.ErrNoPortAvailable) {
			code = CodeSpawnFailed
		}
		return models.InstanceInfo{}, o.launchFailed(newError(code, op, id, err))
	}

	now := o.now()
	inst := &instance{
		envID:      id,
		dataDir:    env.DataDir,
		port:       port,
		state:      models.InstanceLaunching,
		launchedAt: now,
	}
	o.putInstance(inst)

	rollback := func() {
		o.removeInstance(id)
		o.ports.Release(port)
	}

	proc, err := o.launcher.Launch(ctx, browser.Spec{
		Environment: env,
		BinaryPath:  bin,
		DebugPort:   port,
		Proxy:       effectiveProxy(env, settings),
		StartupURL:  settings.StartupURL,
	})
	if err != nil {
		rollback()
		code := CodeSpawnFailed
		if errors.Is(err, browser.ErrBinaryNotFound) {
			code = CodeBinaryNotFound
		}
		return models.InstanceInfo{}, o.launchFailed(newError(code, op, id, err))
	}

	if err := o.store.TouchLastUsed(ctx, id, now); err != nil {
		kctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ProcessTimeout)
		if _, kerr := o.prober.TerminateByCommandLineFragment(kctx, env.DataDir); kerr != nil {
			logger.Warn("failed to stop browser after store error", "error", kerr)
		}
		cancel()
		rollback()
		return models.InstanceInfo{}, storeError(op, id, err)
	}

	gen := o.monitor.Attach(id, env.DataDir, port)
	o.mu.Lock()
	inst.pid = proc.PID
	inst.generation = gen
	o.mu.Unlock()

	logger.Info("instance launching",
		"name", env.Name,
		"debug_port", port,
		"pid", proc.PID,
		"proxy", browser.MaskProxyCredentials(effectiveProxy(env, settings)),
	)
	o.notifier.InstancesChanged()

	info, _ := o.instanceInfo(id)
	return info, nil
}

func (o *Orchestrator) launchFailed(err *Error) *Error {
	o.metrics.launchFailures.WithLabelValues(string(err.Code)).Inc()
	o.logger.Warn("launch failed", "code", err.Code, "error", err)
	return err
}

// effectiveProxy prefers the environment's own proxy, then an enabled global proxy.
func effectiveProxy(env *models.Environment, s config.Settings) string {
	if env.Proxy != "" {
		return env.Proxy
	}
	return s.EffectiveGlobalProxy()
}

// Close stops the environment's browser. It returns false if nothing was running.
func (o *Orchestrator) Close(ctx context.Context, id string) (bool, error) {
	unlock := o.locks.Lock(id)
	defer unlock()
	return o.closeLocked(ctx, id), nil
}

// closeLocked must be called with the id lock held.
func (o *Orchestrator) closeLocked(ctx context.Context, id string) bool {
	o.mu.Lock()
	inst, ok := o.instances[id]
	if !ok {
		o.mu.Unlock()
		return false
	}
	delete(o.instances, id)
	o.metrics.running.Set(float64(len(o.instances)))
	o.mu.Unlock()

	o.monitor.Detach(id)
	o.ports.Release(inst.port)

	kctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ProcessTimeout)
	n, err := o.prober.TerminateByCommandLineFragment(kctx, inst.dataDir)
	cancel()
	if err != nil {
		o.logger.Warn("failed to terminate browser processes",
			"environment_id", id,
			"error", err,
		)
	}

	o.metrics.closes.Inc()
	o.logger.Info("instance closed", "environment_id", id, "terminated", n)
	o.notifier.InstancesChanged()
	return true
}

// IsRunning reports whether the environment is launching or running.
func (o *Orchestrator) IsRunning(id string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.instances[id]
	return ok
}

// State returns the environment's instance state.
func (o *Orchestrator) State(id string) models.InstanceState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if inst, ok := o.instances[id]; ok {
		return inst.state
	}
	return models.InstanceIdle
}

// Instances returns a snapshot of the running-instance table ordered by launch time.
func (o *Orchestrator) Instances() []models.InstanceInfo {
	o.mu.RLock()
	ids := make([]string, 0, len(o.instances))
	for id := range o.instances {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	out := make([]models.InstanceInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := o.instanceInfo(id); ok {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LaunchedAt.Before(out[j].LaunchedAt)
	})
	return out
}

func (o *Orchestrator) instanceInfo(id string) (models.InstanceInfo, bool) {
	o.mu.RLock()
	inst, ok := o.instances[id]
	if !ok {
		o.mu.RUnlock()
		return models.InstanceInfo{}, false
	}
	info := models.InstanceInfo{
		EnvironmentID: inst.envID,
		State:         inst.state,
		DebugPort:     inst.port,
		LaunchedAt:    inst.launchedAt,
	}
	o.mu.RUnlock()

	info.Connected = o.monitor.IsConnected(id)
	return info, true
}

func (o *Orchestrator) putInstance(inst *instance) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.instances[inst.envID] = inst
	o.metrics.running.Set(float64(len(o.instances)))
}

func (o *Orchestrator) removeInstance(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.instances, id)
	o.metrics.running.Set(float64(len(o.instances)))
}

// ReconcileOrphans terminates browsers left running against active environments
// by a previous daemon process, since this process has no record of their ports.
func (o *Orchestrator) ReconcileOrphans(ctx context.Context) (int, error) {
	envs, err := o.store.ListActive(ctx)
	if err != nil {
		return 0, storeError("reconcile", "", err)
	}

	var dirs []string
	for _, env := range envs {
		if !o.IsRunning(env.ID) {
			dirs = append(dirs, env.DataDir)
		}
	}
	if len(dirs) == 0 {
		return 0, nil
	}

	pctx, cancel := context.WithTimeout(ctx, o.cfg.ProcessTimeout)
	defer cancel()

	found, err := o.prober.FindByCommandLineFragment(pctx, dirs...)
	if err != nil {
		o.logger.Warn("orphan scan failed", "error", err)
		return 0, nil
	}

	n := 0
	for dir := range found {
		killed, err := o.prober.TerminateByCommandLineFragment(pctx, dir)
		if err != nil {
			o.logger.Warn("failed to terminate orphaned browser", "data_dir", dir, "error", err)
		}
		n += killed
	}
	if n > 0 {
		o.logger.Info("terminated orphaned browsers", "count", n)
	}
	return n, nil
}

func removeDataDir(dir string) error {
	if !isSafeDataDir(dir) {
		return errors.New("refusing to remove unsafe data directory " + dir)
	}
	return os.RemoveAll(dir)
}
