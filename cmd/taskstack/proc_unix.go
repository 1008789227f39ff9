//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDetached starts cmd in its own session so it outlives the TUI.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
