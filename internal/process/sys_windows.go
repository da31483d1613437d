//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configure(_ *exec.Cmd) {}

// interrupt kills the child; Windows has no SIGINT for other processes.
func interrupt(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
