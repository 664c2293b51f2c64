// Package prober finds and terminates browser processes by command-line content.
//
// Browsers are identified by the profile directory they were started with
// rather than by PID, because the process that was spawned is often a stub
// that hands off to a long-running browser under a different PID.
package prober

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProfileFlag is the argument that carries a browser's profile directory.
const ProfileFlag = "--user-data-dir="

const (
	defaultGrace        = 3 * time.Second
	defaultReapInterval = 100 * time.Millisecond
	forceKillTimeout    = 2 * time.Second
)

// ProcessInfo is one entry of the OS process table.
type ProcessInfo struct {
	PID         int
	Name        string
	CommandLine string
}

// Lister enumerates processes in one batched call.
type Lister interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// Terminator stops a single process.
type Terminator interface {
	// Terminate asks the process to exit.
	Terminate(ctx context.Context, pid int) error
	// Kill stops the process without giving it a chance to clean up.
	Kill(ctx context.Context, pid int) error
}

// ProcessProber is the capability the orchestrator and health monitor depend on.
type ProcessProber interface {
	// FindByCommandLineFragment returns, for each profile directory fragment that
	// matched at least one browser process, the matching PIDs.
	FindByCommandLineFragment(ctx context.Context, fragments ...string) (map[string][]int, error)
	// TerminateByCommandLineFragment stops every browser process started with
	// the profile directory fragment and returns how many were signalled.
	TerminateByCommandLineFragment(ctx context.Context, fragment string) (int, error)
}

// Prober implements ProcessProber on top of a platform Lister and Terminator.
//
// Matching is by profile argument only, not by executable name, so any
// Chromium derivative is found whatever its binary is called.
type Prober struct {
	lister       Lister
	terminator   Terminator
	grace        time.Duration
	reapInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithGrace sets how long terminated processes get to exit before they are killed.
func WithGrace(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.grace = d
		}
	}
}

// New creates a Prober for the current platform.
func New(logger *slog.Logger, opts ...Option) *Prober {
	return NewWith(platformLister(), platformTerminator(), logger, opts...)
}

// NewWith creates a Prober from explicit collaborators.
func NewWith(l Lister, t Terminator, logger *slog.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		lister:       l,
		terminator:   t,
		grace:        defaultGrace,
		reapInterval: defaultReapInterval,
		logger:       logger.With("component", "prober"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindByCommandLineFragment enumerates processes once and matches every fragment.
func (p *Prober) FindByCommandLineFragment(ctx context.Context, fragments ...string) (map[string][]int, error) {
	procs, err := p.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	found := make(map[string][]int)
	for _, proc := range procs {
		for _, frag := range fragments {
			if usesProfile(proc, frag) {
				found[frag] = append(found[frag], proc.PID)
			}
		}
	}
	return found, nil
}

// TerminateByCommandLineFragment signals every matching process, waits up to
// the grace period for them to exit and kills whatever is left. Individual
// failures are logged; the first one is returned after all attempts.
func (p *Prober) TerminateByCommandLineFragment(ctx context.Context, fragment string) (int, error) {
	if fragment == "" {
		return 0, fmt.Errorf("empty command line fragment")
	}

	found, err := p.FindByCommandLineFragment(ctx, fragment)
	if err != nil {
		return 0, err
	}
	pids := found[fragment]
	if len(pids) == 0 {
		return 0, nil
	}

	var firstErr error
	n := 0
	for _, pid := range pids {
		if err := p.terminator.Terminate(ctx, pid); err != nil {
			p.logger.Debug("terminate failed", "pid", pid, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}

	if killed := p.reap(ctx, fragment); killed > 0 {
		p.logger.Warn("browser did not exit in time, killed", "count", killed, "fragment", fragment)
	}

	if n > 0 {
		p.logger.Info("terminated browser processes", "count", n, "fragment", fragment)
	}
	return n, firstErr
}

// reap waits for processes using fragment to disappear and kills the
// survivors once the grace period or ctx runs out.
func (p *Prober) reap(ctx context.Context, fragment string) int {
	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

wait:
	for {
		found, err := p.FindByCommandLineFragment(ctx, fragment)
		if err == nil && len(found[fragment]) == 0 {
			return 0
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	kctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forceKillTimeout)
	defer cancel()

	found, err := p.FindByCommandLineFragment(kctx, fragment)
	if err != nil {
		p.logger.Debug("list before kill failed", "error", err)
		return 0
	}
	killed := 0
	for _, pid := range found[fragment] {
		if err := p.terminator.Kill(kctx, pid); err != nil {
			p.logger.Debug("kill failed", "pid", pid, "error", err)
			continue
		}
		killed++
	}
	return killed
}

// usesProfile reports whether proc was started with the profile directory frag.
func usesProfile(proc ProcessInfo, frag string) bool {
	if frag == "" {
		return false
	}
	cmd := proc.CommandLine
	for {
		i := strings.Index(cmd, ProfileFlag)
		if i < 0 {
			return false
		}
		cmd = cmd[i+len(ProfileFlag):]
		arg := strings.TrimLeft(cmd, `"'`)
		if !strings.HasPrefix(arg, frag) {
			continue
		}
		if rest := arg[len(frag):]; rest == "" || strings.ContainsRune(` "'/\`, rune(rest[0])) {
			return true
		}
	}
}
