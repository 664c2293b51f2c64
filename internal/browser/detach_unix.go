//go:build !windows

package browser

import (
	"os/exec"
	"syscall"
)

// Detached reports whether spawned browsers outlive the daemon.
const Detached = true

// configureDetach moves the browser into its own process group so signals
// delivered to the daemon's group do not reach it.
func configureDetach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
