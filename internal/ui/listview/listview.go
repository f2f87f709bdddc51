// Package listview is a focusable, scrollable list of markup labels with an
// optional "nothing selected" state.
package listview

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"evmsniper/internal/markup"
)

// None is the selected index when no item is selected
const None = -1

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// SelectMsg is emitted when the user picks the selected item
type SelectMsg struct {
	ListID int
	Index  int
	Label  string
}

// KeyMap defines the keys handled by the list
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Select   key.Binding
}

// DefaultKeyMap returns the default list bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Home:     key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		End:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	}
}

// Styles for the list
type Styles struct {
	Item     lipgloss.Style
	Selected lipgloss.Style
	Message  lipgloss.Style
	Scroll   lipgloss.Style
}

// DefaultStyles matches the dashboard palette
func DefaultStyles() Styles {
	return Styles{
		Item:     lipgloss.NewStyle(),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("255")),
		Message:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		Scroll:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Model is the list state
type Model struct {
	KeyMap KeyMap
	Styles Styles

	id       int
	items    []string
	selected int
	offset   int
	height   int
	width    int
	message  string
	focused  bool

	// set by decorators
	center    bool
	throttle  time.Duration
	lastWheel time.Time
	now       func() time.Time
}

// New creates a list showing height rows
func New(height int) *Model {
	if height < 1 {
		height = 1
	}
	return &Model{
		KeyMap:   DefaultKeyMap(),
		Styles:   DefaultStyles(),
		id:       nextID(),
		selected: None,
		height:   height,
		now:      time.Now,
	}
}

// ID identifies the list in SelectMsg
func (m *Model) ID() int { return m.id }

// SetItems replaces all items. The selection is kept when still in range.
func (m *Model) SetItems(labels []string) {
	m.items = append(m.items[:0:0], labels...)
	if m.selected >= len(m.items) {
		m.selected = None
	}
	m.clampOffset()
}

// Items returns the current labels
func (m *Model) Items() []string {
	return append([]string(nil), m.items...)
}

// Len returns the number of items
func (m *Model) Len() int { return len(m.items) }

// SetMessage shows text in place of the items; an empty string clears it
func (m *Model) SetMessage(text string) { m.message = text }

// Message returns the inline message
func (m *Model) Message() string { return m.message }

// Select selects the item at index and keeps it visible. Negative clears the selection.
func (m *Model) Select(index int) {
	if index < 0 || len(m.items) == 0 {
		m.selected = None
		return
	}
	if index >= len(m.items) {
		index = len(m.items) - 1
	}
	m.selected = index
	m.ensureVisible()
}

// Selected returns the selected index or None
func (m *Model) Selected() int { return m.selected }

// SelectedItem returns the selected label
func (m *Model) SelectedItem() (string, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return "", false
	}
	return m.items[m.selected], true
}

// Offset returns the index of the first visible row
func (m *Model) Offset() int { return m.offset }

// Height returns the number of visible rows
func (m *Model) Height() int { return m.height }

// SetSize sets the visible rows and width
func (m *Model) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	m.width, m.height = width, height
	m.clampOffset()
	if m.selected >= 0 {
		m.ensureVisible()
	}
}

// ScrollTo brings index into view. When centering is enabled the item is
// centered if it is outside the viewport or below its midpoint.
func (m *Model) ScrollTo(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	if !m.center {
		m.scrollInto(index)
		return
	}
	mid := (m.height - 1) / 2
	if index < m.offset || index >= m.offset+m.height || index-m.offset > mid {
		m.offset = index - mid
		m.clampOffset()
	}
}

// Focus gives the list keyboard focus
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return nil
}

// Blur removes keyboard focus
func (m *Model) Blur() { m.focused = false }

// Focused reports whether the list has focus
func (m *Model) Focused() bool { return m.focused }

// Update handles navigation keys and mouse wheel events
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.wheel(-1)
		case tea.MouseButtonWheelDown:
			m.wheel(1)
		}
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.KeyMap.Up):
		m.move(-1)
	case key.Matches(msg, m.KeyMap.Down):
		m.move(1)
	case key.Matches(msg, m.KeyMap.PageUp):
		m.move(-m.pageSize())
	case key.Matches(msg, m.KeyMap.PageDown):
		m.move(m.pageSize())
	case key.Matches(msg, m.KeyMap.Home):
		m.Select(0)
	case key.Matches(msg, m.KeyMap.End):
		m.Select(len(m.items) - 1)
	case key.Matches(msg, m.KeyMap.Select):
		label, ok := m.SelectedItem()
		if !ok {
			return nil
		}
		id, index := m.id, m.selected
		return func() tea.Msg {
			return SelectMsg{ListID: id, Index: index, Label: label}
		}
	}
	return nil
}

func (m *Model) pageSize() int {
	// keep one row of overlap
	if m.height > 2 {
		return m.height - 1
	}
	return 1
}

func (m *Model) move(delta int) {
	if len(m.items) == 0 {
		return
	}
	if m.selected == None {
		m.Select(0)
		return
	}
	next := m.selected + delta
	if next < 0 {
		next = 0
	}
	m.Select(next)
}

func (m *Model) wheel(delta int) {
	if m.throttle > 0 {
		now := m.now()
		if !m.lastWheel.IsZero() && now.Sub(m.lastWheel) < m.throttle {
			return
		}
		m.lastWheel = now
	}
	m.offset += delta
	m.clampOffset()
}

// ensureVisible scrolls the minimum amount needed to show the selection
func (m *Model) ensureVisible() {
	m.scrollInto(m.selected)
}

func (m *Model) scrollInto(index int) {
	if index < m.offset {
		m.offset = index
	}
	if index >= m.offset+m.height {
		m.offset = index - m.height + 1
	}
	m.clampOffset()
}

func (m *Model) clampOffset() {
	maxOffset := len(m.items) - m.height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// IndicatorLines is the number of extra lines View adds around the rows of a
// list longer than its height
const IndicatorLines = 2

// View renders the visible rows. When the items do not fit, a scroll
// indicator line is added above and below the rows.
func (m *Model) View() string {
	if m.message != "" {
		return markup.RenderWith(m.Styles.Message, m.message)
	}

	end := m.offset + m.height
	if end > len(m.items) {
		end = len(m.items)
	}
	overflow := len(m.items) > m.height

	lines := make([]string, 0, m.height+IndicatorLines)
	if overflow {
		lines = append(lines, m.indicator(m.offset > 0, fmt.Sprintf("↑ %d more above ↑", m.offset)))
	}
	for i := m.offset; i < end; i++ {
		label := m.items[i]
		if i == m.selected {
			lines = append(lines, m.renderSelected(label))
			continue
		}
		lines = append(lines, markup.RenderWith(m.Styles.Item, label))
	}
	for i := end; i < m.offset+m.height; i++ {
		lines = append(lines, "")
	}
	if overflow {
		below := len(m.items) - end
		lines = append(lines, m.indicator(below > 0, fmt.Sprintf("↓ %d more below ↓", below)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) indicator(show bool, text string) string {
	if !show {
		return ""
	}
	return m.Styles.Scroll.Render(text)
}

// renderSelected draws the row under the cursor. Inline tags keep their
// colors on top of the selected background.
func (m *Model) renderSelected(label string) string {
	line := markup.RenderWith(m.Styles.Selected, label)
	if pad := m.width - lipgloss.Width(line); pad > 0 {
		line += m.Styles.Selected.Render(strings.Repeat(" ", pad))
	}
	return line
}
