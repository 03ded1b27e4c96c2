package supervisor

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/log"
	"github.com/eslym/troupe/pkg/manifest"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/shirou/gopsutil/v3/process"
)

// Status of one launched process
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed"
)

type ResourceStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	MemoryPercent float32 `json:"memory_percent"`
}

// RunningProcess is one child started from a manifest entry
type RunningProcess struct {
	ID      string
	Name    string
	Command string
	Index   int
	Label   console.Label

	mu        sync.Mutex
	pid       int
	status    Status
	exitCode  int
	err       error
	startedAt time.Time
	exitedAt  time.Time
	psutil    *process.Process
	done      chan struct{}
}

func (p *RunningProcess) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *RunningProcess) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ExitCode is -1 while running or when the child was killed by a signal
func (p *RunningProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *RunningProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once the child has been reaped, or failed to start
func (p *RunningProcess) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the child may still receive signals
func (p *RunningProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return p.Pid() > 0
	}
}

func (p *RunningProcess) GetResourceStats() (*ResourceStats, error) {
	p.mu.Lock()
	ps := p.psutil
	p.mu.Unlock()
	if ps == nil {
		return nil, fmt.Errorf("psutil process not initialized")
	}
	cpu, _ := ps.CPUPercent()
	memPercent, _ := ps.MemoryPercent()
	stats := &ResourceStats{CPUPercent: cpu, MemoryPercent: memPercent}
	if mem, err := ps.MemoryInfo(); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	return stats, nil
}

// GetSerializedStats returns the process state as a JSON friendly map
func (p *RunningProcess) GetSerializedStats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := map[string]any{
		"id":       p.ID,
		"name":     p.Name,
		"command":  p.Command,
		"index":    p.Index,
		"pid":      p.pid,
		"status":   string(p.status),
		"exitCode": p.exitCode,
	}
	if !p.startedAt.IsZero() {
		stats["startedAt"] = p.startedAt.Format(time.RFC3339)
	}
	if !p.exitedAt.IsZero() {
		stats["exitedAt"] = p.exitedAt.Format(time.RFC3339)
		stats["uptime"] = p.exitedAt.Sub(p.startedAt).String()
	} else if !p.startedAt.IsZero() {
		stats["uptime"] = time.Since(p.startedAt).Round(time.Second).String()
	}
	if p.err != nil {
		stats["error"] = p.err.Error()
	}
	return stats
}

// MergeEnv appends overrides to base; exec keeps the last value of a key,
// so overrides win.
func MergeEnv(base []string, overrides map[string]string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// Launcher starts children and owns the launch index
type Launcher struct {
	Console       *console.Console
	Palette       console.Palette
	Width         int
	Env           map[string]string
	MaxLineLength int
	Verbose       bool

	next int
	wg   *sync.WaitGroup
}

// Launch starts entry without waiting for it. A start failure only marks
// the returned process as failed.
func (l *Launcher) Launch(entry manifest.Entry) *RunningProcess {
	index := l.next
	l.next++

	id, _ := gonanoid.New()
	p := &RunningProcess{
		ID:       id,
		Name:     entry.Name,
		Command:  entry.Command,
		Index:    index,
		Label:    console.NewLabel(entry.Name, l.Width, l.Palette.Color(index)),
		exitCode: -1,
		done:     make(chan struct{}),
	}

	if err := l.start(p); err != nil {
		p.mu.Lock()
		p.status = StatusFailed
		p.err = err
		p.mu.Unlock()
		close(p.done)
		if l.Verbose {
			log.Errorf("supervisor", "process %s failed to start: %v", p.Name, err)
		}
	}
	return p
}

func (l *Launcher) start(p *RunningProcess) error {
	name, args := shellCommand(p.Command)
	cmd := exec.Command(name, args...)
	cmd.Env = MergeEnv(os.Environ(), l.Env)
	cmd.SysProcAttr = newSysProcAttr()

	reader, writer, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	err = cmd.Start()
	// the child holds its own copy of the write end
	_ = writer.Close()
	if err != nil {
		_ = reader.Close()
		return err
	}

	p.mu.Lock()
	p.pid = cmd.Process.Pid
	p.status = StatusRunning
	p.startedAt = time.Now()
	p.psutil, _ = process.NewProcess(int32(cmd.Process.Pid))
	p.mu.Unlock()

	if l.Verbose {
		log.Printf("supervisor", "process %s started, pid: %d, cmd: %s", p.Name, p.pid, p.Command)
	}

	mux := console.NewMultiplexer(p.Label, l.Console, l.MaxLineLength)
	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		defer reader.Close()
		if err := mux.Run(reader); err != nil && l.Verbose {
			log.Errorf("supervisor", "reading output of %s: %v", p.Name, err)
		}
	}()
	go func() {
		defer l.wg.Done()
		defer close(p.done)
		err := cmd.Wait()

		p.mu.Lock()
		p.exitedAt = time.Now()
		p.status = StatusExited
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = err
		}
		code := p.exitCode
		p.mu.Unlock()

		if l.Verbose {
			log.Printf("supervisor", "process %s exited with code %d", p.Name, code)
		}
	}()
	return nil
}
