// Package selector is the modal picker used for chains, wallets and tokens:
// a filter box over a list of candidates, narrowed and highlighted on every
// keystroke.
package selector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"evmsniper/internal/highlight"
	"evmsniper/internal/markup"
	"evmsniper/internal/task"
	"evmsniper/internal/ui/listview"
	"evmsniper/internal/ui/screen"
)

// NoItems is shown when the fetch returned nothing
const NoItems = "No available items"

// Timing chooses when candidates are fetched relative to showing the modal
type Timing int

const (
	// ShowThenFetch shows the modal at once with a spinner on its frame
	ShowThenFetch Timing = iota
	// FetchThenShow fetches first; a fetch error means the modal never shows
	FetchThenShow
)

// Config parametrizes one picker
type Config struct {
	ID      string // grab owner and ResultMsg.PromptID
	Label   string
	Fetch   FetchFunc
	Lookup  LookupFunc // defaults to a lookup over the fetched candidates
	Current string     // name of the entry selected before opening
	Timing  Timing

	Width    int
	Height   int
	Spinner  spinner.Spinner
	Throttle time.Duration
}

// ResultMsg resolves an opened prompt. Item is nil when the user escaped.
type ResultMsg struct {
	PromptID string
	Item     *Candidate
	Current  string
	Err      error
}

type fetchedMsg struct {
	prompt int
	seq    int
	items  []Candidate
	err    error
}

type phase int

const (
	closed phase = iota
	fetching
	shown
)

// Styles for the modal
type Styles struct {
	Box    lipgloss.Style
	Title  lipgloss.Style
	Filter lipgloss.Style
	Input  lipgloss.Style
	List   lipgloss.Style
}

// DefaultStyles returns the modal styles
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		Title:  lipgloss.NewStyle().Bold(true),
		Filter: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")),
		List: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("241")),
	}
}

var lastPromptID int64

// Prompt is one selector instance. It can be opened again after closing.
type Prompt struct {
	Styles Styles

	cfg    Config
	screen *screen.Screen
	logger *log.Logger
	id     int

	input      textinput.Model
	list       *listview.Model
	label      string
	candidates []Candidate
	visible    []Candidate

	phase   phase
	loading bool
	seq     int
	task    *task.Task
}

// New creates a closed prompt
func New(cfg Config, scr *screen.Screen, logger *log.Logger) *Prompt {
	if cfg.ID == "" {
		cfg.ID = "selector"
	}
	if cfg.Width <= 0 {
		cfg.Width = 60
	}
	if cfg.Height <= 0 {
		cfg.Height = 16
	}
	if len(cfg.Spinner.Frames) == 0 {
		cfg.Spinner = spinner.MiniDot
	}
	if scr == nil {
		scr = screen.New()
	}
	if logger == nil {
		logger = log.Default()
	}

	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "type to filter"

	p := &Prompt{
		Styles: DefaultStyles(),
		cfg:    cfg,
		screen: scr,
		logger: logger,
		id:     int(atomic.AddInt64(&lastPromptID, 1)),
		input:  input,
		list:   listview.With(listview.New(1), listview.Centered(), listview.Throttled(cfg.Throttle)),
		label:  cfg.Label,
	}
	p.SetSize(cfg.Width, cfg.Height)
	return p
}

// SetSize sets the outer size of the modal
func (p *Prompt) SetSize(width, height int) {
	p.cfg.Width, p.cfg.Height = width, height
	// title, filter box, the list border and its scroll indicators
	listHeight := height - 8 - listview.IndicatorLines
	if listHeight < 1 {
		listHeight = 1
	}
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	p.list.SetSize(inner-2, listHeight)
	p.input.Width = inner - len("Filter: ") - 3
}

// ID returns the configured prompt id
func (p *Prompt) ID() string { return p.cfg.ID }

// IsOpen reports whether the modal is visible
func (p *Prompt) IsOpen() bool { return p.phase == shown }

// Active reports whether the prompt is open or still fetching before showing
func (p *Prompt) Active() bool { return p.phase != closed }

// Loading reports whether the initial fetch is outstanding
func (p *Prompt) Loading() bool { return p.loading }

// Label returns the frame label, spinner included while loading
func (p *Prompt) Label() string { return p.label }

// SetLabel sets the frame label
func (p *Prompt) SetLabel(text string) { p.label = text }

// SetContent replaces the list with an inline message
func (p *Prompt) SetContent(text string) { p.list.SetMessage(text) }

// Query returns the filter text
func (p *Prompt) Query() string { return p.input.Value() }

// List exposes the candidate list
func (p *Prompt) List() *listview.Model { return p.list }

// Visible returns the candidates passing the current filter, in list order
func (p *Prompt) Visible() []Candidate {
	return append([]Candidate(nil), p.visible...)
}

// Open starts a session. It is a no-op while the prompt is already active.
func (p *Prompt) Open() tea.Cmd {
	if p.phase != closed {
		return nil
	}
	p.seq++
	p.candidates, p.visible = nil, nil
	p.input.SetValue("")
	p.list.SetItems(nil)
	p.list.SetMessage("")
	p.list.Select(listview.None)
	p.label = p.cfg.Label

	if p.cfg.Timing == FetchThenShow {
		p.phase = fetching
		p.loading = true
		return p.fetch()
	}

	focus := p.show()
	p.loading = true
	label, seq, id, fetch := p.cfg.Label, p.seq, p.id, p.cfg.Fetch
	p.task = task.Until(func(ctx context.Context) (any, error) {
		if fetch == nil {
			return []Candidate(nil), nil
		}
		return fetch(ctx)
	}).
		Do(p, task.SetLabel).
		Every(p.cfg.Spinner).
		Spin(func(frame string) string { return frame + " " + label }).
		Succeed(func(string) string { return label }).
		Fail(func(string) string { return label }).
		Then(func(v any) tea.Cmd {
			items, _ := v.([]Candidate)
			return msgCmd(fetchedMsg{prompt: id, seq: seq, items: items})
		}).
		Catch(func(err error) tea.Cmd {
			return msgCmd(fetchedMsg{prompt: id, seq: seq, err: err})
		})
	return tea.Batch(focus, p.task.Start())
}

func (p *Prompt) fetch() tea.Cmd {
	id, seq, fetch := p.id, p.seq, p.cfg.Fetch
	return func() tea.Msg {
		if fetch == nil {
			return fetchedMsg{prompt: id, seq: seq}
		}
		items, err := fetch(context.Background())
		return fetchedMsg{prompt: id, seq: seq, items: items, err: err}
	}
}

func (p *Prompt) show() tea.Cmd {
	p.phase = shown
	p.screen.SaveFocus()
	p.screen.Grab(p.cfg.ID)
	return p.screen.Focus(&p.input)
}

// Close hides the prompt, restores focus and releases the input grab. It is
// safe to call any number of times.
func (p *Prompt) Close() tea.Cmd {
	if p.phase == closed {
		return nil
	}
	var cmd tea.Cmd
	if p.phase == shown {
		p.screen.Release(p.cfg.ID)
		cmd = p.screen.RestoreFocus()
	}
	p.phase = closed
	p.loading = false
	if p.task != nil {
		p.task.Stop()
		p.task = nil
	}
	return cmd
}

// Update handles keys, list selection and the fetch result
func (p *Prompt) Update(msg tea.Msg) tea.Cmd {
	if p.task != nil {
		if cmd := p.task.Update(msg); cmd != nil {
			return cmd
		}
	}

	switch msg := msg.(type) {
	case fetchedMsg:
		if msg.prompt != p.id || msg.seq != p.seq || p.phase == closed {
			return nil
		}
		return p.fetched(msg)

	case listview.SelectMsg:
		if msg.ListID != p.list.ID() || p.phase != shown {
			return nil
		}
		return p.choose(msg.Label)

	case tea.KeyMsg:
		if p.phase != shown {
			return nil
		}
		return p.handleKey(msg)

	case tea.MouseMsg:
		if p.phase != shown {
			return nil
		}
		return p.list.Update(msg)
	}
	return nil
}

func (p *Prompt) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		cmd := p.Close()
		return tea.Batch(cmd, msgCmd(ResultMsg{PromptID: p.cfg.ID, Current: p.cfg.Current}))
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyEnter:
		return p.list.Update(msg)
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.refilter()
	return cmd
}

func (p *Prompt) fetched(msg fetchedMsg) tea.Cmd {
	p.loading = false
	if msg.err != nil {
		err := &FetchError{Err: msg.err}
		p.logger.Error("fetching items failed", "prompt", p.cfg.ID, "err", msg.err)
		if p.phase == fetching {
			p.phase = closed
			return msgCmd(ResultMsg{PromptID: p.cfg.ID, Current: p.cfg.Current, Err: err})
		}
		p.list.SetMessage(markup.Wrap("red-fg", "Error: "+markup.Escape(msg.err.Error())))
		return nil
	}

	var cmd tea.Cmd
	if p.phase == fetching {
		cmd = p.show()
	}
	p.candidates = msg.items
	if len(p.candidates) == 0 {
		p.list.SetMessage(NoItems)
		return cmd
	}
	p.list.SetMessage("")
	p.refilter()

	initial := 0
	if p.cfg.Current != "" {
		if i := p.visibleIndex(p.cfg.Current); i >= 0 {
			initial = i
		}
	}
	if len(p.visible) > 0 {
		p.list.Select(initial)
		p.list.ScrollTo(initial)
	}
	return cmd
}

// refilter recomputes the visible candidates and their labels from the
// query, keeping the selected candidate selected while it still matches.
func (p *Prompt) refilter() {
	tokens := highlight.Tokens(p.input.Value())

	prev, hadPrev := "", false
	if i := p.list.Selected(); i >= 0 && i < len(p.visible) {
		prev, hadPrev = p.visible[i].Name, true
	}

	visible := make([]Candidate, 0, len(p.candidates))
	labels := make([]string, 0, len(p.candidates))
	for _, c := range p.candidates {
		if !highlight.Matches(c.Name, tokens) {
			continue
		}
		label := highlight.Highlight(c.Name, tokens)
		if p.cfg.Current != "" && c.Name == p.cfg.Current {
			label = highlight.Current(label)
		}
		visible = append(visible, c)
		labels = append(labels, label)
	}
	p.visible = visible
	p.list.SetItems(labels)
	p.list.Select(listview.None)

	if !hadPrev {
		return
	}
	if i := p.visibleIndex(prev); i >= 0 {
		p.list.Select(i)
		p.list.ScrollTo(i)
	}
}

func (p *Prompt) visibleIndex(name string) int {
	for i, c := range p.visible {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (p *Prompt) choose(label string) tea.Cmd {
	name := markup.Strip(label)
	cmd := p.Close()

	lookup := p.cfg.Lookup
	if lookup == nil {
		lookup = p.lookupFetched
	}
	item, ok := lookup(name)
	if !ok {
		err := &NotFoundError{Name: name}
		p.logger.Error("selected item missing", "prompt", p.cfg.ID, "name", name)
		return tea.Batch(cmd, msgCmd(ResultMsg{PromptID: p.cfg.ID, Current: p.cfg.Current, Err: err}))
	}
	return tea.Batch(cmd, msgCmd(ResultMsg{PromptID: p.cfg.ID, Current: p.cfg.Current, Item: &item}))
}

func (p *Prompt) lookupFetched(name string) (Candidate, bool) {
	for _, c := range p.candidates {
		if c.Name == name {
			return c, true
		}
	}
	return Candidate{}, false
}

// View renders the modal, or nothing while closed
func (p *Prompt) View() string {
	if p.phase != shown {
		return ""
	}
	inner := p.cfg.Width - 4
	title := p.Styles.Title.Render(markup.Strip(p.label))
	filter := lipgloss.JoinHorizontal(lipgloss.Top,
		p.Styles.Filter.Render("Filter: "),
		p.input.View(),
	)
	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		p.Styles.Input.Width(inner-2).Render(filter),
		p.Styles.List.Width(inner-2).Render(p.list.View()),
	)
	return p.Styles.Box.Width(p.cfg.Width - 2).Render(body)
}

func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
