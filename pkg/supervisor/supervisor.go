package supervisor

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"

	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/log"
	"github.com/eslym/troupe/pkg/manifest"
)

var ErrAlreadyStarted = errors.New("supervisor already started")

// State of the supervisor lifecycle
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Options struct {
	Console       *console.Console
	Palette       console.Palette
	Env           map[string]string
	MaxLineLength int
	// Only restricts the launched entries by name, nil launches all
	Only map[string]bool
	// Terminator defaults to DefaultTerminator()
	Terminator Terminator
	// Signals replaces the SIGINT/SIGTERM subscription when set
	Signals <-chan os.Signal
	Verbose bool
}

// Supervisor launches a manifest and takes every child down together
type Supervisor struct {
	opts Options

	mu        sync.RWMutex
	state     State
	processes []*RunningProcess

	shutdownOnce sync.Once
	shutdown     chan struct{}
	wg           sync.WaitGroup
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.Console == nil {
		opts.Console = console.NewConsole(os.Stdout)
	}
	if opts.Palette == nil {
		opts.Palette = console.NewPalette(true)
	}
	if opts.Terminator == nil {
		opts.Terminator = DefaultTerminator()
	}
	return &Supervisor{
		opts:     opts,
		state:    StateIdle,
		shutdown: make(chan struct{}),
	}
}

func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Processes returns the launched processes in launch order
func (s *Supervisor) Processes() []*RunningProcess {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*RunningProcess(nil), s.processes...)
}

// GetProcess looks a launched process up by name
func (s *Supervisor) GetProcess(name string) (*RunningProcess, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.processes {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Run launches every runnable entry and blocks until all of them have been
// reaped. Shutdown is triggered by a signal, ctx, an explicit Shutdown call,
// or all children exiting on their own.
func (s *Supervisor) Run(ctx context.Context, entries []manifest.Entry) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.mu.Unlock()

	signals := s.opts.Signals
	if signals == nil {
		// left registered until exit: the group signal also reaches us
		ch := make(chan os.Signal, 4)
		signal.Notify(ch, shutdownSignals...)
		signals = ch
	}

	defer s.Shutdown()

	if err := s.opts.Terminator.Prepare(); err != nil {
		log.Errorf("supervisor", "%v", err)
	}

	launcher := &Launcher{
		Console:       s.opts.Console,
		Palette:       s.opts.Palette,
		Width:         console.PaddingWidth(manifest.Names(entries)),
		Env:           s.opts.Env,
		MaxLineLength: s.opts.MaxLineLength,
		Verbose:       s.opts.Verbose,
		wg:            &s.wg,
	}

launch:
	for _, entry := range manifest.Runnable(entries) {
		if s.opts.Only != nil && !s.opts.Only[entry.Name] {
			continue
		}
		// held across the launch so Shutdown never misses a fresh child
		s.mu.Lock()
		select {
		case <-s.shutdown:
			s.mu.Unlock()
			break launch
		case <-ctx.Done():
			s.mu.Unlock()
			break launch
		default:
		}
		s.processes = append(s.processes, launcher.Launch(entry))
		s.mu.Unlock()
	}

	if s.opts.Verbose {
		log.Printf("supervisor", "launched %d processes", len(s.Processes()))
	}

	exited := make(chan struct{})
	go func() {
		for _, p := range s.Processes() {
			<-p.Done()
		}
		close(exited)
	}()

	select {
	case sig := <-signals:
		if s.opts.Verbose {
			log.Printf("supervisor", "received %v, shutting down", sig)
		}
	case <-ctx.Done():
		if s.opts.Verbose {
			log.Printf("supervisor", "context done, shutting down")
		}
	case <-s.shutdown:
	case <-exited:
		if s.opts.Verbose {
			log.Printf("supervisor", "all processes exited")
		}
	}

	s.Shutdown()
	s.wg.Wait()
	s.setState(StateTerminated)

	if s.opts.Verbose {
		log.Printf("supervisor", "shutdown complete")
	}
	return nil
}

// Shutdown signals every child once; later calls are no-ops
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.setState(StateShuttingDown)
		close(s.shutdown)
		if err := s.opts.Terminator.Terminate(s.Processes()); err != nil {
			log.Errorf("supervisor", "failed to signal processes: %v", err)
		}
	})
}
