//go:build !windows

package infrastructure

import (
	"os/exec"
	"syscall"
	"time"
)

// configureProcessGroup puts the tool in its own process group so that
// cancellation also reaches the ffmpeg children N_m3u8DL-RE spawns
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
