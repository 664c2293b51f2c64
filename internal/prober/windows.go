//go:build windows

package prober

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

const cimQuery = `Get-CimInstance Win32_Process | ` +
	`Where-Object { $_.CommandLine -ne $null } | ` +
	`Select-Object ProcessId,Name,CommandLine | ConvertTo-Json -Compress`

type cimLister struct{}

func platformLister() Lister { return cimLister{} }

func (cimLister) List(ctx context.Context) ([]ProcessInfo, error) {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", cimQuery)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("powershell: %w", err)
	}
	return parseCIMJSON(string(out)), nil
}

type taskkillTerminator struct{}

func platformTerminator() Terminator { return taskkillTerminator{} }

// Terminate kills the process tree; Windows browsers do not handle a soft close.
func (taskkillTerminator) Terminate(ctx context.Context, pid int) error {
	cmd := exec.CommandContext(ctx, "taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, out)
	}
	return nil
}

// Kill is the same forced tree kill as Terminate.
func (t taskkillTerminator) Kill(ctx context.Context, pid int) error {
	return t.Terminate(ctx, pid)
}
