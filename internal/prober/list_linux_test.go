//go:build linux

package prober

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcfsLister_SeesSelf(t *testing.T) {
	procs, err := procfsLister{}.List(context.Background())
	require.NoError(t, err)

	self := os.Getpid()
	for _, p := range procs {
		if p.PID == self {
			assert.NotEmpty(t, p.CommandLine)
			return
		}
	}
	t.Fatalf("pid %d not found in process list", self)
}
