// Package logging builds the logger injected into every component and the
// in-memory sink that feeds the dashboard's log pane.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// DefaultCapacity is the number of lines a Sink keeps
const DefaultCapacity = 500

// Sink keeps the most recent log lines in memory
type Sink struct {
	mu      sync.Mutex
	lines   []string
	cap     int
	partial bytes.Buffer
	written uint64
}

// NewSink creates a sink holding up to capacity lines
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{cap: capacity}
}

// Write splits p into lines; an unterminated tail waits for the next write
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.Write(p)
	for {
		data := s.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.append(string(data[:i]))
		s.partial.Next(i + 1)
	}
	return len(p), nil
}

func (s *Sink) append(line string) {
	s.lines = append(s.lines, line)
	if over := len(s.lines) - s.cap; over > 0 {
		s.lines = append(s.lines[:0:0], s.lines[over:]...)
	}
	s.written++
}

// Lines returns a copy of the buffered lines, oldest first
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Tail returns the last n lines
func (s *Sink) Tail(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.lines) {
		n = len(s.lines)
	}
	return append([]string(nil), s.lines[len(s.lines)-n:]...)
}

// String joins all buffered lines
func (s *Sink) String() string {
	return strings.Join(s.Lines(), "\n")
}

// Written counts lines ever written, so views can tell when to refresh
func (s *Sink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Reset drops all buffered lines
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.partial.Reset()
}

// New builds a logger writing to w at the named level ("debug", "info", ...)
func New(w io.Writer, level string) (*log.Logger, error) {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		logger.SetLevel(lvl)
	}
	logger.SetStyles(styles())
	return logger, nil
}

// OpenFile opens (creating it and its directory) the log file for appending
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Timestamp = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	s.Separator = lipgloss.NewStyle().Faint(true)
	s.Levels[log.DebugLevel] = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).SetString("DEBUG")
	s.Levels[log.InfoLevel] = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).SetString("INFO")
	s.Levels[log.WarnLevel] = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).SetString("WARN")
	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).SetString("ERROR")
	return s
}
