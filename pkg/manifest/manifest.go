package manifest

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Entry is one named command from a Procfile
type Entry struct {
	Name    string `json:"name" yaml:"name"`
	Command string `json:"command" yaml:"command"`
}

// Inert reports whether the entry has nothing to run
func (e Entry) Inert() bool {
	return e.Command == ""
}

// ParseLine parses a single manifest line.
// The second return value is false for blank and comment-only lines.
func ParseLine(line string) (Entry, bool) {
	line = stripComment(line)
	if strings.TrimSpace(line) == "" {
		return Entry{}, false
	}

	name, command, found := strings.Cut(line, ":")
	if !found {
		return Entry{Name: strings.TrimSpace(line)}, true
	}

	command = strings.TrimPrefix(command, " ")
	command = strings.TrimRightFunc(command, isSpace)

	return Entry{
		Name:    strings.TrimSpace(name),
		Command: command,
	}, true
}

// stripComment drops everything from the first unescaped '#'.
// An escaped "\#" is kept as a literal '#'.
func stripComment(line string) string {
	if !strings.Contains(line, "#") {
		return line
	}
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '#' {
			b.WriteByte('#')
			i++
			continue
		}
		if c == '#' {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}

// Parse lazily yields entries from r in file order.
// Only read errors are yielded as errors; malformed lines never are.
func Parse(r io.Reader) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				if entry, ok := ParseLine(strings.TrimSuffix(line, "\n")); ok {
					if !yield(entry, nil) {
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("read manifest: %w", err))
				return
			}
		}
	}
}

// Load reads every entry of the manifest at path
func Load(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var entries []Entry
	for entry, err := range Parse(file) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Runnable returns the entries that resolve to a command, keeping order
func Runnable(entries []Entry) []Entry {
	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Inert() {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Names returns the names of all entries, inert ones included
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
