//go:build !unix

package process

import "os/exec"

func detach(_ *exec.Cmd) {}
