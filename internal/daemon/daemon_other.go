//go:build !unix

package daemon

import (
	"errors"
	"os"
	"os/exec"
)

func detach(cmd *exec.Cmd) {}

func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func interrupt(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Signal(os.Interrupt); err != nil {
		return errors.Join(err, p.Kill())
	}
	return nil
}
