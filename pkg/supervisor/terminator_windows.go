//go:build windows

package supervisor

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// ConsoleGroupTerminator sends CTRL_BREAK_EVENT to each child's console
// process group, forcing termination when the event cannot be delivered.
type ConsoleGroupTerminator struct{}

func DefaultTerminator() Terminator {
	return ConsoleGroupTerminator{}
}

func (ConsoleGroupTerminator) Prepare() error {
	return nil
}

func (ConsoleGroupTerminator) Terminate(processes []*RunningProcess) error {
	var errs []error
	for _, p := range processes {
		if !p.Alive() {
			continue
		}
		pid := uint32(p.Pid())
		if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, pid); err == nil {
			continue
		}
		if err := forceKill(pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func forceKill(pid uint32) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
