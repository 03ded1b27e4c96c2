package supervisor

import (
	"errors"
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// Terminator delivers the one shutdown signal to every child
type Terminator interface {
	// Prepare runs before the first launch
	Prepare() error
	// Terminate is called exactly once per supervisor
	Terminate(processes []*RunningProcess) error
}

// TreeTerminator keeps no OS grouping: it walks each live child's
// descendant tree and terminates every member.
type TreeTerminator struct{}

func (TreeTerminator) Prepare() error {
	return nil
}

func (TreeTerminator) Terminate(processes []*RunningProcess) error {
	var targets []*process.Process
	for _, p := range processes {
		if !p.Alive() {
			continue
		}
		root, err := process.NewProcess(int32(p.Pid()))
		if err != nil {
			continue
		}
		// collect the whole tree first, descendants are reparented once the root dies
		targets = append(targets, collectTree(root)...)
	}

	var errs []error
	for _, target := range targets {
		if err := target.Terminate(); err != nil && !isGone(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func collectTree(root *process.Process) []*process.Process {
	tree := []*process.Process{root}
	children, err := root.Children()
	if err != nil {
		return tree
	}
	for _, child := range children {
		tree = append(tree, collectTree(child)...)
	}
	return tree
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}
