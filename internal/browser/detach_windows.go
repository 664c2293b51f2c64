//go:build windows

package browser

import "os/exec"

// Detached reports whether spawned browsers outlive the daemon.
// Windows browsers stay attached so their lifetime follows the host application.
const Detached = false

func configureDetach(*exec.Cmd) {}
