// Package screen holds the per-session input state shared by modal prompts:
// which widget has focus and whether some owner has grabbed all input.
package screen

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Focusable is a widget that can receive keyboard focus
type Focusable interface {
	Focus() tea.Cmd
	Blur()
}

// Screen tracks focus and the exclusive input grab
type Screen struct {
	focused Focusable
	saved   []Focusable

	owner     string
	grabKeys  bool
	grabMouse bool
}

// New creates an empty screen session
func New() *Screen {
	return &Screen{}
}

// Focus moves focus to f, blurring the previous widget
func (s *Screen) Focus(f Focusable) tea.Cmd {
	if s.focused != nil && s.focused != f {
		s.focused.Blur()
	}
	s.focused = f
	if f == nil {
		return nil
	}
	return f.Focus()
}

// Focused returns the widget with focus
func (s *Screen) Focused() Focusable {
	return s.focused
}

// SaveFocus pushes the current focus so it can be restored later
func (s *Screen) SaveFocus() {
	s.saved = append(s.saved, s.focused)
}

// RestoreFocus pops the last saved focus. Without a saved focus it does nothing.
func (s *Screen) RestoreFocus() tea.Cmd {
	if len(s.saved) == 0 {
		return nil
	}
	prev := s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
	return s.Focus(prev)
}

// Grab gives owner exclusive keyboard and mouse input
func (s *Screen) Grab(owner string) {
	s.owner = owner
	s.grabKeys = true
	s.grabMouse = true
}

// Release ends the grab held by owner. A release from another owner is ignored.
func (s *Screen) Release(owner string) {
	if s.owner != owner {
		return
	}
	s.owner = ""
	s.grabKeys = false
	s.grabMouse = false
}

// Owner returns the grab owner, if any
func (s *Screen) Owner() (string, bool) {
	return s.owner, s.owner != ""
}

// GrabsKeys reports whether keyboard input is grabbed
func (s *Screen) GrabsKeys() bool { return s.grabKeys }

// GrabsMouse reports whether mouse input is grabbed
func (s *Screen) GrabsMouse() bool { return s.grabMouse }
