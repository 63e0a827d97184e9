package agent

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const killTimeout = 2 * time.Second

// killTree kills every descendant of proc, then its process group, then proc
// itself. Errors are returned for logging only; a process that is already
// gone is not an error.
func killTree(proc *os.Process) []error {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	var errs []error

	if root, err := process.NewProcessWithContext(ctx, int32(proc.Pid)); err == nil { //nolint: gosec // pids fit in int32
		for _, child := range descendants(ctx, root) {
			if err = child.KillWithContext(ctx); err != nil && !isGone(err) {
				errs = append(errs, err)
			}
		}
	}

	if err := killGroup(proc.Pid); err != nil && !isGone(err) {
		errs = append(errs, err)
	}

	if err := proc.Kill(); err != nil && !isGone(err) {
		errs = append(errs, err)
	}

	return errs
}

// descendants walks the process tree depth first, children before parents.
func descendants(ctx context.Context, root *process.Process) []*process.Process {
	children, err := root.ChildrenWithContext(ctx)
	if err != nil {
		return nil
	}

	var out []*process.Process
	for _, child := range children {
		out = append(out, descendants(ctx, child)...)
		out = append(out, child)
	}

	return out
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, process.ErrorProcessNotRunning) || isNoSuchProcess(err)
}
