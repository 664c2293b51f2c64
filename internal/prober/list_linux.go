//go:build linux

package prober

import (
	"context"
	"strings"

	"github.com/prometheus/procfs"
)

type procfsLister struct{}

func platformLister() Lister { return procfsLister{} }

// List reads /proc. Processes that exit mid-scan are skipped.
func (procfsLister) List(ctx context.Context) ([]ProcessInfo, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	all, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}

	out := make([]ProcessInfo, 0, len(all))
	for _, p := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmdline, err := p.CmdLine()
		if err != nil || len(cmdline) == 0 {
			continue
		}
		comm, _ := p.Comm()
		out = append(out, ProcessInfo{
			PID:         p.PID,
			Name:        comm,
			CommandLine: strings.Join(cmdline, " "),
		})
	}
	return out, nil
}
