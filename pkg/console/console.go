package console

import (
	"io"
	"strings"
	"sync"
	"time"
)

const TimestampFormat = "15:04:05"

// Line is a single annotated line as seen by subscribers
type Line struct {
	Process string    `json:"process"`
	Text    string    `json:"line"`
	Time    time.Time `json:"time"`
}

// Console is the sink shared by every multiplexer. Each line reaches the
// underlying writer in exactly one Write call.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	subMu       sync.Mutex
	subscribers map[chan Line]struct{}
}

func NewConsole(out io.Writer) *Console {
	return &Console{
		out:         out,
		now:         time.Now,
		subscribers: make(map[chan Line]struct{}),
	}
}

// Format renders one annotated line, newline included
func Format(label Label, at time.Time, text string) string {
	var b strings.Builder
	b.WriteString(label.paint(at.Format(TimestampFormat) + " " + label.Prefix()))
	b.WriteByte(' ')
	b.WriteString(text)
	b.WriteByte('\n')
	return b.String()
}

// WriteLine annotates text with the label and writes it atomically
func (c *Console) WriteLine(label Label, text string) error {
	at := c.now()
	rendered := Format(label, at, text)

	c.mu.Lock()
	_, err := io.WriteString(c.out, rendered)
	c.mu.Unlock()

	c.publish(Line{Process: label.Name, Text: text, Time: at})
	return err
}

// Write passes p through under the same lock, so supervisor messages
// never split a process line.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Subscribe returns a channel receiving every line written from now on.
// Slow subscribers miss lines rather than stall the console.
func (c *Console) Subscribe(buffer int) (<-chan Line, func()) {
	ch := make(chan Line, buffer)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, ch)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Console) publish(line Line) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}
