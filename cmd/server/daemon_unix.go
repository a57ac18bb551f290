//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the child in a new session
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
