//go:build !windows

package supervisor

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

var shutdownSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP}

// GroupTerminator puts the supervisor at the head of its own process group;
// children inherit it, and one kill(-pgid) reaches all of them, grandchildren
// included. The supervisor receives its own copy of the signal as well.
type GroupTerminator struct {
	mu   sync.Mutex
	pgid int
}

func DefaultTerminator() Terminator {
	return &GroupTerminator{}
}

func (g *GroupTerminator) Prepare() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if unix.Getpgrp() != os.Getpid() {
		// EPERM: a session leader already heads its group
		if err := unix.Setpgid(0, 0); err != nil && !errors.Is(err, unix.EPERM) {
			return fmt.Errorf("create process group: %w", err)
		}
		// a Ctrl-C aimed at the old group now only reaches the parent
		if unix.Getpgrp() == os.Getpid() {
			if err := watchParent(); err != nil {
				return fmt.Errorf("watch parent: %w", err)
			}
		}
	}
	g.pgid = unix.Getpgrp()
	return nil
}

func (g *GroupTerminator) Terminate(_ []*RunningProcess) error {
	g.mu.Lock()
	pgid := g.pgid
	g.mu.Unlock()
	if pgid <= 0 {
		pgid = unix.Getpgrp()
	}
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal process group %d: %w", pgid, err)
	}
	return nil
}
