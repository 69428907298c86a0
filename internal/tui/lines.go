package tui

import (
	"bytes"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// LineWriter turns the surface's output into console lines. Writes block
// while the console is behind and stop blocking once it is closed.
type LineWriter struct {
	mu        sync.Mutex
	partial   []byte
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewLineWriter buffers up to size complete lines.
func NewLineWriter(size int) *LineWriter {
	return &LineWriter{
		ch:   make(chan string, size),
		done: make(chan struct{}),
	}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := string(w.partial[:i])
		w.partial = w.partial[i+1:]
		select {
		case w.ch <- line:
		case <-w.done:
			w.partial = nil
			return len(p), nil
		}
	}
	return len(p), nil
}

// Close releases blocked writers. Later writes are discarded.
func (w *LineWriter) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

type lineMsg string

// waitForLine delivers the next line to the program.
func waitForLine(w *LineWriter) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case line := <-w.ch:
			return lineMsg(line)
		case <-w.done:
			return nil
		}
	}
}
