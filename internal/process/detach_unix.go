//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// detach starts the child in a new session so it has no controlling
// terminal. ssh then falls back to SSH_ASKPASS instead of /dev/tty.
func detach(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
