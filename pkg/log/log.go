package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects Printf, a nil writer restores os.Stdout
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	stdout = w
}

// SetErrorOutput redirects Errorf, a nil writer restores os.Stderr
func SetErrorOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	stderr = w
}

func line(module string, msg string) string {
	if module != "" {
		module = "[" + module + "] "
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("[%s] %s%s\n", timestamp, module, msg)
}

func Printf(module string, format string, a ...any) {
	mu.RLock()
	w := stdout
	mu.RUnlock()
	_, _ = io.WriteString(w, line(module, fmt.Sprintf(format, a...)))
}

func Errorf(module string, format string, a ...any) {
	mu.RLock()
	w := stderr
	mu.RUnlock()
	_, _ = io.WriteString(w, line(module, fmt.Sprintf(format, a...)))
}
