//go:build e2e && unix

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"
)

const ringSize = 1 << 20

var binPath = "evmsniper_e2e"

const (
	KeyEnter = "\r"
	KeyCtrlC = "\x03"
	KeyEsc   = "\x1b"
	KeyDown  = "\x1b[B"
)

// CSI, OSC, charset and keypad sequences plus carriage returns
var ansiRe = regexp.MustCompile(
	`(?:\x1b\[[0-9;?]*[ -/]*[@-~])|` +
		`(?:\x1b\][^\x07]*\x07)|` +
		`(?:\x1b[\(\)][A-Za-z])|` +
		`(?:\x1b=|\x1b>)|` +
		`\r`,
)

// Session runs evmsniper inside a pseudo terminal and records its output
type Session struct {
	t         *testing.T
	pty       *os.File
	cmd       *exec.Cmd
	workspace string

	mu   sync.Mutex
	buf  []byte
	head int
	full bool
}

// NewSession creates an isolated workspace for one run
func NewSession(t *testing.T) *Session {
	t.Helper()
	s := &Session{t: t, buf: make([]byte, ringSize), workspace: t.TempDir()}
	t.Cleanup(s.Cleanup)
	return s
}

// ConfigPath is the config file the app is started with
func (s *Session) ConfigPath() string { return filepath.Join(s.workspace, "config.toml") }

// DataPath is the store file the app is started with
func (s *Session) DataPath() string { return filepath.Join(s.workspace, "data.yaml") }

// WriteConfig seeds the config file before start
func (s *Session) WriteConfig(content string) error {
	return os.WriteFile(s.ConfigPath(), []byte(content), 0o644)
}

// Start launches the binary with the workspace's config and data files
func (s *Session) Start(args ...string) error {
	args = append(args,
		"--config", s.ConfigPath(),
		"--data", s.DataPath(),
		"--log-file", filepath.Join(s.workspace, "evmsniper.log"),
	)
	s.cmd = exec.Command(binPath, args...)
	s.cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"LC_ALL=C",
		"LANG=C",
		"HOME="+s.workspace,
		"XDG_CONFIG_HOME="+filepath.Join(s.workspace, ".config"),
	)

	f, err := pty.StartWithSize(s.cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return fmt.Errorf("failed to start in pty: %w", err)
	}
	s.pty = f
	go s.read()
	return nil
}

func (s *Session) read() {
	chunk := make([]byte, 8192)
	for {
		n, err := s.pty.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			for _, b := range chunk[:n] {
				s.buf[s.head] = b
				s.head = (s.head + 1) % ringSize
				if s.head == 0 {
					s.full = true
				}
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Send writes raw keystrokes to the terminal
func (s *Session) Send(keys string) {
	s.t.Helper()
	if _, err := s.pty.Write([]byte(keys)); err != nil {
		s.t.Fatalf("write keys: %v", err)
	}
}

// Type sends text one rune at a time so each becomes a key press
func (s *Session) Type(text string) {
	s.t.Helper()
	for _, r := range text {
		s.Send(string(r))
		time.Sleep(10 * time.Millisecond)
	}
}

// See waits for text to show up in the ANSI-stripped output
func (s *Session) See(text string) bool {
	s.t.Helper()
	return s.WaitFor(func(out string) bool { return strings.Contains(out, text) }, 3*time.Second)
}

// WaitFor polls the plain output until pred holds or timeout passes
func (s *Session) WaitFor(pred func(string) bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if pred(s.Plain()) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// Mark remembers the current output length; Since returns what came after
func (s *Session) Mark() int { return len(s.Plain()) }

// Since returns plain output written after mark
func (s *Session) Since(mark int) string {
	out := s.Plain()
	if mark > len(out) {
		return ""
	}
	return out[mark:]
}

// Plain returns the recorded output without escape sequences
func (s *Session) Plain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	if !s.full {
		raw = string(s.buf[:s.head])
	} else {
		out := make([]byte, 0, ringSize)
		out = append(out, s.buf[s.head:]...)
		out = append(out, s.buf[:s.head]...)
		raw = string(out)
	}
	return ansiRe.ReplaceAllString(raw, "")
}

// Wait blocks until the process exits or timeout passes
func (s *Session) Wait(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		s.cmd = nil
		return err
	case <-time.After(timeout):
		return fmt.Errorf("process still running after %s", timeout)
	}
}

// Cleanup closes the terminal and kills the process if it is still running
func (s *Session) Cleanup() {
	if s.pty != nil {
		_ = s.pty.Close()
		s.pty = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_, _ = s.cmd.Process.Wait()
		s.cmd = nil
	}
	if s.t.Failed() {
		tail := s.Plain()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		s.t.Logf("--- output tail ---\n%s", tail)
	}
}
