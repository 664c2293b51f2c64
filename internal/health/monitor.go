// Package health supervises running browsers.
//
// The primary signal is a protocol channel to each browser's debug endpoint;
// closing it reports death almost immediately. A low-frequency poll of the OS
// process table backs it up for browsers whose channel never connected or
// failed silently. Failures inside the monitor never reach callers: they only
// degrade to the polling tier.
package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/chromenv/internal/prober"
)

// State is the per-instance connection state.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDegraded     State = "degraded" // Alive by poll, no live channel
	StateDisconnected State = "disconnected"
)

// EventKind distinguishes monitor events.
type EventKind int

const (
	// EventConfirmed reports the browser was found alive after launch.
	EventConfirmed EventKind = iota
	// EventTerminated reports the browser is gone or never came up.
	EventTerminated
)

// Source says which tier produced an event.
type Source string

const (
	SourceProtocol Source = "protocol"
	SourcePoll     Source = "poll"
)

// Event is delivered on Monitor.Events. Generation identifies the Attach call
// it belongs to so stale events from an earlier launch can be discarded.
type Event struct {
	Kind          EventKind
	EnvironmentID string
	Generation    uint64
	Source        Source
	Reason        string
}

// Config holds the monitor's timing parameters.
type Config struct {
	ConnectDelay      time.Duration // Wait after launch before first discovery
	ProtocolTimeout   time.Duration // Bound on each discovery and handshake
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	PollInterval      time.Duration
	PollTimeout       time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		ConnectDelay:      1500 * time.Millisecond,
		ProtocolTimeout:   3 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    2 * time.Second,
		PollInterval:      30 * time.Second,
		PollTimeout:       10 * time.Second,
	}
}

type instance struct {
	id      string
	dataDir string
	port    int
	gen     uint64
	state   State
	channel Channel
	cancel  context.CancelFunc
}

// Monitor tracks running instances and reports confirmations and deaths on one channel.
type Monitor struct {
	cfg        Config
	discoverer Discoverer
	dialer     Dialer
	prober     prober.ProcessProber
	logger     *slog.Logger

	mu        sync.Mutex
	instances map[string]*instance
	nextGen   uint64

	events  chan Event
	polling atomic.Bool
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor. Call Start to enable the polling backstop.
func New(cfg Config, d Discoverer, dialer Dialer, p prober.ProcessProber, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:        cfg,
		discoverer: d,
		dialer:     dialer,
		prober:     p,
		logger:     logger.With("component", "health"),
		instances:  make(map[string]*instance),
		events:     make(chan Event, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Events returns the stream of confirmations and terminations.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start runs the polling backstop until Stop.
func (m *Monitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	if m.cfg.PollInterval <= 0 {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.PollOnce(m.ctx)
			}
		}
	}()
}

// Stop disconnects every channel and stops all background work. No events
// are delivered afterwards.
func (m *Monitor) Stop() {
	m.cancel()

	m.mu.Lock()
	for id, inst := range m.instances {
		m.teardownLocked(inst)
		delete(m.instances, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Attach starts supervising a freshly launched browser and returns the
// generation that its events will carry. Attaching an already tracked id
// replaces the previous supervision.
func (m *Monitor) Attach(id, dataDir string, port int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.instances[id]; ok {
		m.teardownLocked(old)
	}

	m.nextGen++
	ctx, cancel := context.WithCancel(m.ctx)
	inst := &instance{
		id:      id,
		dataDir: dataDir,
		port:    port,
		gen:     m.nextGen,
		state:   StateConnecting,
		cancel:  cancel,
	}
	m.instances[id] = inst

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.supervise(ctx, inst)
	}()

	return inst.gen
}

// Detach stops supervising id without reporting a termination.
// It is safe to call for untracked ids.
func (m *Monitor) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.instances[id]; ok {
		m.teardownLocked(inst)
		delete(m.instances, id)
	}
}

// State returns the connection state of id.
func (m *Monitor) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.instances[id]; ok {
		return inst.state
	}
	return StateDisconnected
}

// IsConnected reports whether id has a live protocol channel.
func (m *Monitor) IsConnected(id string) bool {
	return m.State(id) == StateConnected
}

// Tracked returns the number of supervised instances.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

func (m *Monitor) teardownLocked(inst *instance) {
	inst.cancel()
	inst.state = StateDisconnected
	if inst.channel != nil {
		_ = inst.channel.Close()
		inst.channel = nil
	}
}

// current returns inst if it is still the tracked generation for its id.
func (m *Monitor) currentLocked(inst *instance) bool {
	cur, ok := m.instances[inst.id]
	return ok && cur.gen == inst.gen
}

func (m *Monitor) setState(inst *instance, state State, ch Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(inst) {
		return false
	}
	inst.state = state
	inst.channel = ch
	return true
}

// terminate drops inst and reports its death, unless it was already replaced or detached.
func (m *Monitor) terminate(inst *instance, source Source, reason string) {
	m.mu.Lock()
	if !m.currentLocked(inst) {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(inst)
	delete(m.instances, inst.id)
	m.mu.Unlock()

	m.logger.Info("instance terminated",
		"environment_id", inst.id,
		"source", source,
		"reason", reason,
	)
	m.emit(Event{
		Kind:          EventTerminated,
		EnvironmentID: inst.id,
		Generation:    inst.gen,
		Source:        source,
		Reason:        reason,
	})
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// connect discovers the websocket URL and opens a channel, each step bounded
// by ProtocolTimeout. discovered reports whether the metadata endpoint answered.
func (m *Monitor) connect(ctx context.Context, port int) (ch Channel, discovered bool, err error) {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.ProtocolTimeout)
	wsURL, err := m.discoverer.Discover(dctx, port)
	cancel()
	if err != nil {
		return nil, false, err
	}

	hctx, cancel := context.WithTimeout(ctx, m.cfg.ProtocolTimeout)
	defer cancel()
	ch, err = m.dialer.Dial(hctx, wsURL)
	return ch, true, err
}

func (m *Monitor) supervise(ctx context.Context, inst *instance) {
	if !sleep(ctx, m.cfg.ConnectDelay) {
		return
	}

	ch, _, err := m.connect(ctx, inst.port)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Debug("protocol connect failed, falling back to poll",
			"environment_id", inst.id,
			"port", inst.port,
			"error", err,
		)
		m.confirmByPoll(ctx, inst)
		return
	}

	if !m.setState(inst, StateConnected, ch) {
		_ = ch.Close()
		return
	}
	m.logger.Debug("protocol channel connected", "environment_id", inst.id, "port", inst.port)
	m.emit(Event{Kind: EventConfirmed, EnvironmentID: inst.id, Generation: inst.gen, Source: SourceProtocol})

	for {
		m.pump(inst, ch)
		if ctx.Err() != nil {
			return
		}

		m.setState(inst, StateConnecting, nil)
		ch = m.reconnect(ctx, inst)
		if ch == nil {
			if ctx.Err() == nil {
				m.terminate(inst, SourceProtocol, "protocol channel closed")
			}
			return
		}
		if !m.setState(inst, StateConnected, ch) {
			_ = ch.Close()
			return
		}
		m.logger.Info("protocol channel reconnected", "environment_id", inst.id)
	}
}

// confirmByPoll runs the single liveness poll used when the protocol never connected.
func (m *Monitor) confirmByPoll(ctx context.Context, inst *instance) {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.PollTimeout)
	found, err := m.prober.FindByCommandLineFragment(pctx, inst.dataDir)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err == nil && len(found[inst.dataDir]) > 0 {
		if m.setState(inst, StateDegraded, nil) {
			m.logger.Info("instance alive without protocol channel", "environment_id", inst.id)
			m.emit(Event{Kind: EventConfirmed, EnvironmentID: inst.id, Generation: inst.gen, Source: SourcePoll})
		}
		return
	}

	reason := "no protocol endpoint and no matching process"
	if err != nil {
		reason = "no protocol endpoint and process lookup failed: " + err.Error()
	}
	m.terminate(inst, SourcePoll, reason)
}

// pump consumes protocol events until the channel closes.
func (m *Monitor) pump(inst *instance, ch Channel) {
	for method := range ch.Events() {
		switch method {
		case "Inspector.targetCrashed", "Target.targetCrashed":
			m.logger.Warn("browser target crashed", "environment_id", inst.id, "event", method)
		}
	}
}

// reconnect retries the channel up to ReconnectAttempts times. An endpoint that no
// longer answers discovery means the browser is gone, so it stops early.
func (m *Monitor) reconnect(ctx context.Context, inst *instance) Channel {
	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		if attempt > 1 && !sleep(ctx, m.cfg.ReconnectDelay) {
			return nil
		}

		ch, discovered, err := m.connect(ctx, inst.port)
		if err == nil {
			return ch
		}
		if ctx.Err() != nil {
			return nil
		}
		m.logger.Debug("reconnect attempt failed",
			"environment_id", inst.id,
			"attempt", attempt,
			"error", err,
		)
		if !discovered {
			return nil
		}
	}
	return nil
}

// PollOnce enumerates browser processes once and terminates every confirmed
// instance that is no longer present. A poll already in flight suppresses this one.
func (m *Monitor) PollOnce(ctx context.Context) {
	if !m.polling.CompareAndSwap(false, true) {
		return
	}
	defer m.polling.Store(false)

	m.mu.Lock()
	var targets []*instance
	for _, inst := range m.instances {
		if inst.state == StateConnected || inst.state == StateDegraded {
			targets = append(targets, inst)
		}
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	fragments := make([]string, 0, len(targets))
	for _, inst := range targets {
		fragments = append(fragments, inst.dataDir)
	}

	pctx, cancel := context.WithTimeout(ctx, m.cfg.PollTimeout)
	found, err := m.prober.FindByCommandLineFragment(pctx, fragments...)
	cancel()
	if err != nil {
		m.logger.Warn("process poll failed", "error", err)
		return
	}

	for _, inst := range targets {
		if len(found[inst.dataDir]) == 0 {
			m.terminate(inst, SourcePoll, "process not found by poll")
		}
	}
}
