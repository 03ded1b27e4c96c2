//go:build !linux && !windows

package supervisor

import "syscall"

func newSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

// watchParent is a no-op: there is no parent-death signal outside Linux,
// SIGHUP from a closing terminal is the only cue.
func watchParent() error {
	return nil
}
