//go:build linux

package supervisor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Children stay in the supervisor's process group. Pdeathsig covers the
// case where the supervisor is killed before it can signal the group.
func newSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
}

// watchParent has the kernel deliver SIGTERM to the supervisor once the
// process that started it exits.
func watchParent() error {
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGTERM), 0, 0, 0)
}
