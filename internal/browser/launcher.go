package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrSpawnFailed wraps OS-level process creation errors.
var ErrSpawnFailed = errors.New("failed to spawn browser")

// Process is the handle of a spawned browser. The PID may belong to a short-lived
// launcher stub, so it says nothing about whether the browser is reachable.
type Process struct {
	PID       int
	Detached  bool
	StartedAt time.Time
	exited    chan struct{}
}

// Exited is closed once the spawned process has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Launcher spawns browser processes.
type Launcher struct {
	logger *slog.Logger
}

// NewLauncher creates a Launcher.
func NewLauncher(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{logger: logger.With("component", "launcher")}
}

// Launch starts the browser described by spec. Success only means the OS accepted
// the process; liveness must be confirmed separately.
func (l *Launcher) Launch(_ context.Context, spec Spec) (*Process, error) {
	if spec.BinaryPath == "" {
		return nil, ErrBinaryNotFound
	}
	if spec.Environment == nil || spec.Environment.DataDir == "" {
		return nil, fmt.Errorf("%w: environment has no data directory", ErrSpawnFailed)
	}

	args := Args(spec)

	// Not tied to the request context: the browser must outlive the call.
	cmd := exec.Command(spec.BinaryPath, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureDetach(cmd)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	proc := &Process{
		PID:       cmd.Process.Pid,
		Detached:  Detached,
		StartedAt: time.Now(),
		exited:    make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		l.logger.Debug("browser process exited",
			"environment_id", spec.Environment.ID,
			"pid", proc.PID,
			"error", err,
		)
		close(proc.exited)
	}()

	l.logger.Info("browser spawned",
		"environment_id", spec.Environment.ID,
		"pid", proc.PID,
		"debug_port", spec.DebugPort,
		"proxy", MaskProxyCredentials(spec.Proxy),
		"detached", Detached,
	)
	return proc, nil
}
