//go:build windows

package supervisor

import (
	"syscall"
)

// Each child leads its own console process group, so a CTRL_BREAK_EVENT
// addressed to its pid reaches everything it spawned.
func newSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}
