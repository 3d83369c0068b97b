//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

// Without process groups only the direct child can be terminated; anything
// it spawned keeps running.

func setProcessGroup(cmd *exec.Cmd) {}

func interruptTree(p *os.Process) error {
	return killTree(p)
}

func killTree(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func signalExitCode(state *os.ProcessState) (int, bool) {
	return 0, false
}

const groupKill = false
