package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"evmsniper/internal/markup"
)

// Panel is a titled box a task can render into
type Panel struct {
	label   string
	content string
}

// SetLabel sets the title
func (p *Panel) SetLabel(text string) { p.label = text }

// SetContent sets the body
func (p *Panel) SetContent(text string) { p.content = text }

// Label returns the title markup
func (p *Panel) Label() string { return p.label }

// Content returns the body markup
func (p *Panel) Content() string { return p.content }

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
	focusedPanelStyle = panelStyle.BorderForeground(lipgloss.Color("33"))
	titleStyle        = lipgloss.NewStyle().Bold(true)
)

// render draws title and body in a box of the given outer size
func renderPanel(title, body string, width, height int, focused bool) string {
	style := panelStyle
	if focused {
		style = focusedPanelStyle
	}
	innerW := width - 4
	innerH := height - 2
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	lines := []string{markup.RenderWith(titleStyle, title)}
	if body != "" {
		lines = append(lines, strings.Split(body, "\n")...)
	}
	if len(lines) > innerH {
		lines = lines[:innerH]
	}
	return style.Width(innerW + 2).Height(innerH).Render(strings.Join(lines, "\n"))
}
