//go:build !windows

package prober

import (
	"context"
	"errors"
	"os"
	"syscall"
)

type signalTerminator struct{}

func platformTerminator() Terminator { return signalTerminator{} }

// Terminate sends SIGTERM so the browser can flush its profile.
func (signalTerminator) Terminate(_ context.Context, pid int) error {
	return signal(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL.
func (signalTerminator) Kill(_ context.Context, pid int) error {
	return signal(pid, syscall.SIGKILL)
}

// signal delivers sig to pid. A process that is already gone is not an error.
func signal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	err = proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
