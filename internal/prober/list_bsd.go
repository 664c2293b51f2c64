//go:build darwin || freebsd || openbsd || netbsd

package prober

import (
	"context"
	"fmt"
	"os/exec"
)

type psLister struct{}

func platformLister() Lister { return psLister{} }

func (psLister) List(ctx context.Context) ([]ProcessInfo, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axww", "-o", "pid=,args=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	return parsePS(string(out)), nil
}
