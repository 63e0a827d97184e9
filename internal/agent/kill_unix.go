//go:build unix

package agent

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so the whole group
// can be signalled at teardown.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
