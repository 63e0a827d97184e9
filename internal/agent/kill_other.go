//go:build !unix

package agent

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}

func killGroup(_ int) error {
	return nil
}

func isNoSuchProcess(_ error) bool {
	return false
}
