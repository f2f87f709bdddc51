// Package ui is the root of the terminal interface: it owns the dashboard,
// the pickers and the forms and routes input between them.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"evmsniper/internal/config"
	"evmsniper/internal/domain"
	"evmsniper/internal/eventbus"
	"evmsniper/internal/logging"
	"evmsniper/internal/markup"
	"evmsniper/internal/task"
	"evmsniper/internal/ui/dashboard"
	"evmsniper/internal/ui/forms"
	"evmsniper/internal/ui/listview"
	"evmsniper/internal/ui/screen"
	"evmsniper/internal/ui/selector"
)

// Deps are the collaborators of the UI
type Deps struct {
	Bus    eventbus.EventBus
	Config *config.Config
	Store  Store
	Logger *log.Logger
	Sink   *logging.Sink
	Dial   dashboard.DialFunc
}

// Model represents the UI state
type Model struct {
	bus    eventbus.EventBus
	config *config.Config
	store  Store
	logger *log.Logger
	sink   *logging.Sink

	screen        *screen.Screen
	cancellations *task.Cancellations
	dashboard     *dashboard.Model
	prompt        *selector.Prompt
	form          *forms.Form

	keys   KeyMap
	help   help.Model
	status string // markup

	chain  domain.Chain
	wallet domain.Wallet

	width  int
	height int
}

// NewModel creates the UI model
func NewModel(deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	cfg := deps.Config
	cancellations := task.NewCancellations(deps.Logger)

	m := &Model{
		bus:           deps.Bus,
		config:        cfg,
		store:         deps.Store,
		logger:        deps.Logger,
		sink:          deps.Sink,
		screen:        screen.New(),
		cancellations: cancellations,
		keys:          DefaultKeyMap(),
		help:          help.New(),
		width:         80,
		height:        24,
	}
	m.dashboard = dashboard.New(deps.Logger, deps.Sink, deps.Store, deps.Dial, cancellations, dashboard.Options{
		Timeout:    cfg.RPC.Timeout.Duration,
		Retries:    cfg.RPC.Retries,
		RetryDelay: cfg.RPC.RetryDelay.Duration,
		Workers:    cfg.RPC.Workers,
		Spinner:    m.spinner(),
		Throttle:   cfg.UI.ListThrottle.Duration,
	})
	m.dashboard.SetSize(m.width, m.height-2)
	return m
}

func (m *Model) spinner() spinner.Spinner {
	s := spinner.MiniDot
	if d := m.config.UI.SpinnerInterval.Duration; d > 0 {
		s.FPS = d
	}
	return s
}

// Dashboard exposes the dashboard
func (m *Model) Dashboard() *dashboard.Model { return m.dashboard }

// Prompt returns the last opened picker
func (m *Model) Prompt() *selector.Prompt { return m.prompt }

// Form returns the last opened form
func (m *Model) Form() *forms.Form { return m.form }

// Status returns the status line markup
func (m *Model) Status() string { return m.status }

// Chain and Wallet return the current selection
func (m *Model) Chain() domain.Chain   { return m.chain }
func (m *Model) Wallet() domain.Wallet { return m.wallet }

// Init restores the last session or asks for a chain and wallet
func (m *Model) Init() tea.Cmd {
	focus := m.screen.Focus(m.dashboard.List())

	if c, ok := m.store.Chain(m.config.Session.Chain); ok {
		m.chain = c
	}
	if w, ok := m.store.Wallet(m.config.Session.Wallet); ok {
		m.wallet = w
	}

	switch {
	case m.chain.Name == "":
		return tea.Batch(focus, m.openChainPicker())
	case m.wallet.Address == "":
		return tea.Batch(focus, m.openWalletPicker())
	}
	return tea.Batch(focus, m.connect())
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.dashboard.SetSize(msg.Width, msg.Height-2)
		if m.prompt != nil {
			m.prompt.SetSize(m.modalSize())
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		if m.screen.GrabsKeys() {
			return m, m.routeGrabbed(msg)
		}
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		if m.screen.GrabsMouse() {
			return m, m.routeGrabbed(msg)
		}
		return m, m.dashboard.Update(msg)

	case listview.SelectMsg:
		if m.prompt != nil && msg.ListID == m.prompt.List().ID() {
			return m, m.prompt.Update(msg)
		}
		return m, m.dashboard.Update(msg)

	case selector.ResultMsg:
		return m, m.handleResult(msg)

	case forms.SubmittedMsg:
		return m, m.handleSubmit(msg)

	case forms.CancelledMsg:
		m.status = ""
		return m, nil

	case EventMsg:
		return m, m.handleEvent(msg.Event)

	case pagerClosedMsg:
		if msg.err != nil {
			m.logger.Error("pager failed", "title", msg.title, "err", msg.err)
			m.setError("pager failed: " + msg.err.Error())
		}
		return m, nil
	}

	// fetch results, spinner ticks and settlements find their owner by id
	var cmds []tea.Cmd
	if m.prompt != nil {
		cmds = append(cmds, m.prompt.Update(msg))
	}
	if m.form != nil && m.form.IsOpen() {
		cmds = append(cmds, m.form.Update(msg))
	}
	cmds = append(cmds, m.dashboard.Update(msg))
	return m, tea.Batch(cmds...)
}

// routeGrabbed sends input to whoever owns the keyboard
func (m *Model) routeGrabbed(msg tea.Msg) tea.Cmd {
	if m.form != nil && m.form.IsOpen() {
		return m.form.Update(msg)
	}
	if m.prompt != nil && m.prompt.IsOpen() {
		return m.prompt.Update(msg)
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Chain):
		return m.openChainPicker()
	case key.Matches(msg, m.keys.Wallet):
		return m.openWalletPicker()
	case key.Matches(msg, m.keys.Token):
		if !m.ready() {
			return nil
		}
		return m.openTokenPicker()
	case key.Matches(msg, m.keys.AddChain):
		return m.openForm(forms.NewChainForm(m.screen))
	case key.Matches(msg, m.keys.AddWallet):
		return m.openForm(forms.NewWalletForm(m.screen))
	case key.Matches(msg, m.keys.AddToken):
		if !m.ready() {
			return nil
		}
		return m.openForm(forms.NewTokenForm(m.screen))
	case key.Matches(msg, m.keys.RemoveToken):
		return m.removeToken()
	case key.Matches(msg, m.keys.Refresh):
		return m.dashboard.Refresh()
	case key.Matches(msg, m.keys.Leave):
		if m.dashboard.Leave() {
			m.status = "Cancelled"
		}
		return nil
	case key.Matches(msg, m.keys.Logs):
		var content string
		if m.sink != nil {
			content = m.sink.String()
		}
		return showInPager("logs", content)
	case key.Matches(msg, m.keys.Help):
		content, err := renderHelp(m.keys, m.width)
		if err != nil {
			m.logger.Error("rendering help failed", "err", err)
			content = helpMarkdown(m.keys)
		}
		return showInPager("help", content)
	}
	return m.dashboard.Update(msg)
}

// ready reports whether a chain and a wallet are selected
func (m *Model) ready() bool {
	if m.chain.Name == "" || m.wallet.Address == "" {
		m.setError("Select a chain and a wallet first")
		return false
	}
	return true
}

func (m *Model) quit() tea.Cmd {
	if m.prompt != nil {
		m.prompt.Close()
	}
	m.dashboard.Close()
	return tea.Quit
}

func (m *Model) modalSize() (int, int) {
	w, h := 60, 16
	if m.width-4 < w {
		w = m.width - 4
	}
	if m.height-4 < h {
		h = m.height - 4
	}
	return w, h
}

func (m *Model) openPicker(cfg selector.Config) tea.Cmd {
	if m.prompt != nil && m.prompt.Active() {
		return nil
	}
	if m.config.UI.FetchBeforeShow {
		cfg.Timing = selector.FetchThenShow
	}
	cfg.Spinner = m.spinner()
	cfg.Throttle = m.config.UI.ListThrottle.Duration
	cfg.Width, cfg.Height = m.modalSize()

	m.status = ""
	m.prompt = selector.New(cfg, m.screen, m.logger)
	return m.prompt.Open()
}

func (m *Model) openChainPicker() tea.Cmd {
	fetch, lookup := chainSource(m.store)
	return m.openPicker(selector.Config{
		ID: pickChain, Label: "Select chain", Fetch: fetch, Lookup: lookup, Current: m.chain.Name,
	})
}

func (m *Model) openWalletPicker() tea.Cmd {
	fetch, lookup := walletSource(m.store)
	return m.openPicker(selector.Config{
		ID: pickWallet, Label: "Select wallet", Fetch: fetch, Lookup: lookup, Current: m.wallet.Name,
	})
}

func (m *Model) openTokenPicker() tea.Cmd {
	fetch, lookup := tokenSource(m.store, m.wallet.Address, m.chain.ChainID)
	current := ""
	if t, ok := m.dashboard.SelectedToken(); ok {
		current = t.Label()
	}
	return m.openPicker(selector.Config{
		ID: pickToken, Label: "Find token", Fetch: fetch, Lookup: lookup, Current: current,
	})
}

func (m *Model) openForm(f *forms.Form) tea.Cmd {
	if m.form != nil && m.form.IsOpen() {
		return nil
	}
	m.status = ""
	m.form = f
	return f.Open()
}

func (m *Model) handleResult(msg selector.ResultMsg) tea.Cmd {
	if msg.Err != nil {
		var notFound *selector.NotFoundError
		if errors.As(msg.Err, &notFound) {
			m.setError(fmt.Sprintf("%s not found", notFound.Name))
		} else {
			m.setError(msg.Err.Error())
		}
		m.logger.Error("picker failed", "picker", msg.PromptID, "err", msg.Err)
		return nil
	}
	if msg.Item == nil {
		return nil
	}

	switch msg.PromptID {
	case pickChain:
		chain, ok := msg.Item.Value.(domain.Chain)
		if !ok {
			return nil
		}
		m.chain = chain
		m.publish(eventbus.ChainSelectedEvent{Chain: chain})
		if m.wallet.Address == "" {
			return m.openWalletPicker()
		}
		return m.connect()

	case pickWallet:
		wallet, ok := msg.Item.Value.(domain.Wallet)
		if !ok {
			return nil
		}
		m.wallet = wallet
		m.publish(eventbus.WalletSelectedEvent{Wallet: wallet})
		if m.chain.Name == "" {
			return m.openChainPicker()
		}
		return m.connect()

	case pickToken:
		token, ok := msg.Item.Value.(domain.Token)
		if !ok {
			return nil
		}
		return m.dashboard.SelectToken(token)
	}
	return nil
}

func (m *Model) handleSubmit(msg forms.SubmittedMsg) tea.Cmd {
	var err error
	switch msg.Kind {
	case forms.KindChain:
		var chain domain.Chain
		if chain, err = forms.ChainFrom(msg.Values); err == nil {
			err = m.store.AddChain(chain)
		}
	case forms.KindWallet:
		err = m.store.AddWallet(forms.WalletFrom(msg.Values))
	case forms.KindToken:
		err = m.store.AddToken(forms.TokenFrom(msg.Values, m.wallet.Address, m.chain.ChainID))
	}
	if err != nil {
		m.logger.Error("saving failed", "kind", msg.Kind, "err", err)
		m.setError(err.Error())
		return nil
	}
	m.status = fmt.Sprintf("Added %s", msg.Kind)
	return nil
}

func (m *Model) removeToken() tea.Cmd {
	token, ok := m.dashboard.SelectedToken()
	if !ok {
		return nil
	}
	if err := m.store.RemoveToken(token); err != nil {
		m.logger.Error("removing token failed", "token", token.Contract, "err", err)
		m.setError(err.Error())
		return nil
	}
	m.status = "Removed " + markup.Escape(token.Label())
	return nil
}

func (m *Model) handleEvent(event eventbus.DomainEvent) tea.Cmd {
	switch e := event.(type) {
	case eventbus.TokenAddedEvent:
		if m.current(e.Token) {
			return m.dashboard.Refresh()
		}
	case eventbus.TokenRemovedEvent:
		if m.current(e.Token) {
			return m.dashboard.Refresh()
		}
	case eventbus.ErrorEvent:
		m.setError(e.Message)
	}
	return nil
}

// current reports whether t belongs to the shown wallet and chain
func (m *Model) current(t domain.Token) bool {
	return t.ChainID == m.chain.ChainID && strings.EqualFold(t.Wallet, m.wallet.Address)
}

func (m *Model) connect() tea.Cmd {
	m.status = ""
	return m.dashboard.Connect(m.chain, m.wallet)
}

func (m *Model) publish(event eventbus.DomainEvent) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}

func (m *Model) setError(text string) {
	m.status = markup.Wrap("red-fg", markup.Escape(text))
}

// View renders the dashboard with the open modal on top
func (m *Model) View() string {
	if m.form != nil && m.form.IsOpen() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.form.View())
	}
	if m.prompt != nil && m.prompt.IsOpen() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.prompt.View())
	}

	status := markup.RenderWith(statusStyle, m.status)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.dashboard.View(),
		status,
		m.help.View(m.keys),
	)
}
