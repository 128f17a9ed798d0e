//go:build windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

func setDaemonAttrs(_ *exec.Cmd) {}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// stopSignals returns the signals used by serve stop. Windows cannot
// deliver SIGTERM to another process, so both end up as a kill.
func stopSignals() (term, kill syscall.Signal) {
	return syscall.SIGKILL, syscall.SIGKILL
}
