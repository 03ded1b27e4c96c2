package console

import (
	"bufio"
	"errors"
	"io"
)

const (
	// DefaultMaxLineLength bounds the per-child line buffer
	DefaultMaxLineLength = 64 * 1024
	// MinLineLength is the smallest buffer bufio hands out
	MinLineLength = 16
)

// Multiplexer forwards one child's combined output to the console, line by line
type Multiplexer struct {
	Label         Label
	Console       *Console
	MaxLineLength int
}

func NewMultiplexer(label Label, console *Console, maxLineLength int) *Multiplexer {
	return &Multiplexer{
		Label:         label,
		Console:       console,
		MaxLineLength: maxLineLength,
	}
}

// Run reads r until it is closed. A trailing line without a newline is
// still emitted once; lines longer than MaxLineLength are emitted in pieces.
func (m *Multiplexer) Run(r io.Reader) error {
	size := m.MaxLineLength
	if size <= 0 {
		size = DefaultMaxLineLength
	}
	size = max(size, MinLineLength)
	reader := bufio.NewReaderSize(r, size)

	// split is set after a full-buffer piece; a bare newline right after it
	// ends that line rather than starting an empty one
	split := false
	for {
		chunk, err := reader.ReadSlice('\n')
		switch {
		case err == nil:
			if split && len(chunk) == 1 {
				split = false
				continue
			}
			split = false
			m.emit(chunk[:len(chunk)-1])
		case errors.Is(err, bufio.ErrBufferFull):
			split = true
			m.emit(chunk)
		case errors.Is(err, io.EOF):
			if len(chunk) > 0 {
				m.emit(chunk)
			}
			return nil
		default:
			if len(chunk) > 0 {
				m.emit(chunk)
			}
			return err
		}
	}
}

func (m *Multiplexer) emit(line []byte) {
	_ = m.Console.WriteLine(m.Label, string(line))
}
