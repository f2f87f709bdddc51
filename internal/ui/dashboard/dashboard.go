// Package dashboard shows the connected chain, the wallet's tokens with
// their balances, details of the selected token and the log pane.
package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"evmsniper/internal/domain"
	"evmsniper/internal/logging"
	"evmsniper/internal/markup"
	"evmsniper/internal/rpc"
	"evmsniper/internal/task"
	"evmsniper/internal/ui/listview"
)

// Cancellation scopes
const (
	ScopeDashboard = "dashboard"
	ScopeToken     = "dashboard.token"
)

// Store is the part of the store the dashboard reads and updates
type Store interface {
	Tokens(wallet string, chainID uint64) []domain.Token
	UpdateToken(t domain.Token) error
}

// DialFunc opens a node connection
type DialFunc func(ctx context.Context, url string) (rpc.Client, error)

// Dial adapts rpc.Dial to DialFunc
func Dial(ctx context.Context, url string) (rpc.Client, error) {
	c, err := rpc.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options tune timeouts, retries and animation
type Options struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Workers    int
	Spinner    spinner.Spinner
	Throttle   time.Duration
}

type connection struct {
	client  rpc.Client
	chainID *big.Int
	block   uint64
}

type connectedMsg struct {
	gen  int
	conn connection
}

type connectFailedMsg struct {
	gen int
	err error
}

type retryMsg struct{ gen int }

type balancesMsg struct {
	gen     int
	results map[string]rpc.BalanceResult
}

type detailsMsg struct {
	gen     int
	details domain.TokenDetails
}

// Model is the dashboard state
type Model struct {
	logger        *log.Logger
	sink          *logging.Sink
	store         Store
	dial          DialFunc
	pool          *rpc.Pool
	cancellations *task.Cancellations
	runner        *task.Runner
	opts          Options

	header  Panel
	tokens  Panel
	details Panel
	list    *listview.Model

	chain    domain.Chain
	wallet   domain.Wallet
	client   rpc.Client
	rows     []domain.Token
	balances map[string]rpc.BalanceResult

	gen     int
	attempt int
	width   int
	height  int
}

// New creates a dashboard. The cancellation group is shared with the rest of the UI.
func New(logger *log.Logger, sink *logging.Sink, store Store, dial DialFunc, cancellations *task.Cancellations, opts Options) *Model {
	if logger == nil {
		logger = log.Default()
	}
	if dial == nil {
		dial = Dial
	}
	if cancellations == nil {
		cancellations = task.NewCancellations(logger)
	}
	if len(opts.Spinner.Frames) == 0 {
		opts.Spinner = spinner.MiniDot
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	m := &Model{
		logger:        logger,
		sink:          sink,
		store:         store,
		dial:          dial,
		pool:          rpc.NewPool(opts.Workers),
		cancellations: cancellations,
		runner:        task.NewRunner(),
		opts:          opts,
		list:          listview.With(listview.New(5), listview.Centered(), listview.Throttled(opts.Throttle)),
		balances:      make(map[string]rpc.BalanceResult),
		width:         80,
		height:        24,
	}
	m.header.SetLabel("Not connected")
	m.tokens.SetLabel("Tokens")
	m.details.SetLabel("Token Details")
	m.list.SetMessage("No tokens")
	return m
}

// Chain returns the chain shown
func (m *Model) Chain() domain.Chain { return m.chain }

// Wallet returns the wallet shown
func (m *Model) Wallet() domain.Wallet { return m.wallet }

// Connected reports whether a node connection is open
func (m *Model) Connected() bool { return m.client != nil }

// Header, Tokens and Details expose the panels
func (m *Model) Header() *Panel  { return &m.header }
func (m *Model) Tokens() *Panel  { return &m.tokens }
func (m *Model) Details() *Panel { return &m.details }

// List is the token table
func (m *Model) List() *listview.Model { return m.list }

// Pending returns the number of running pipelines
func (m *Model) Pending() int { return m.runner.Len() }

// SelectedToken returns the highlighted token row
func (m *Model) SelectedToken() (domain.Token, bool) {
	i := m.list.Selected()
	if i < 0 || i >= len(m.rows) {
		return domain.Token{}, false
	}
	return m.rows[i], true
}

// SetSize sets the area available to the dashboard
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	_, body, _ := m.layout()
	m.list.SetSize(width/2-6, body-3-listview.IndicatorLines)
}

// layout splits the height into header, body and log pane
func (m *Model) layout() (header, body, logs int) {
	header = 3
	logs = m.height / 4
	if logs < 4 {
		logs = 4
	}
	body = m.height - header - logs
	if body < 5 {
		body = 5
	}
	return header, body, logs
}

// Connect switches to chain and wallet: everything running for the previous
// selection is cancelled, then the node is dialed with retries.
func (m *Model) Connect(chain domain.Chain, wallet domain.Wallet) tea.Cmd {
	m.Leave()
	m.closeClient()
	m.chain, m.wallet = chain, wallet
	m.attempt = 0
	m.rows = nil
	m.balances = make(map[string]rpc.BalanceResult)
	m.list.SetItems(nil)
	m.list.SetMessage("No tokens")
	m.details.SetContent("")
	return m.connect()
}

func (m *Model) connect() tea.Cmd {
	chain, gen, dial, timeout := m.chain, m.gen, m.dial, m.opts.Timeout
	m.header.SetContent("")

	t := task.Until(func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		client, err := dial(ctx, chain.RPC.HTTP)
		if err != nil {
			return nil, err
		}
		id, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, err
		}
		if chain.ChainID != 0 && id.Uint64() != chain.ChainID {
			client.Close()
			return nil, fmt.Errorf("chain id mismatch: node reports %s, expected %d", id, chain.ChainID)
		}
		block, err := client.BlockNumber(ctx)
		if err != nil {
			client.Close()
			return nil, err
		}
		if ctx.Err() != nil {
			client.Close()
			return nil, ctx.Err()
		}
		return connection{client: client, chainID: id, block: block}, nil
	}).
		Do(&m.header, task.SetLabel).
		Every(m.opts.Spinner).
		Spin(func(frame string) string { return frame + " Connecting to " + markup.Escape(chain.Name) }).
		Succeed(func(string) string { return markup.Escape(chain.Name) }).
		Fail(func(string) string { return markup.Wrap("red-fg", markup.Escape(chain.Name)+" (offline)") }).
		Cancel(m.cancellations.Register(ScopeDashboard)).
		Discard(func(v any) {
			if conn, ok := v.(connection); ok && conn.client != nil {
				conn.client.Close()
			}
		}).
		Then(func(v any) tea.Cmd {
			conn, _ := v.(connection)
			return msgCmd(connectedMsg{gen: gen, conn: conn})
		}).
		Catch(func(err error) tea.Cmd {
			return msgCmd(connectFailedMsg{gen: gen, err: err})
		})

	return m.runner.Start(t)
}

// Refresh reloads token rows and their balances
func (m *Model) Refresh() tea.Cmd {
	if m.store == nil {
		return nil
	}
	m.rows = m.store.Tokens(m.wallet.Address, m.chain.ChainID)
	m.renderRows()
	if m.client == nil || len(m.rows) == 0 {
		return nil
	}

	client, tokens, pool, gen := m.client, append([]domain.Token(nil), m.rows...), m.pool, m.gen
	timeout := m.opts.Timeout
	t := task.Until(func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return pool.Balances(ctx, client, tokens), nil
	}).
		Do(&m.tokens, task.SetLabel).
		Every(m.opts.Spinner).
		Spin(func(frame string) string { return frame + " Tokens" }).
		Succeed(func(string) string { return "Tokens" }).
		Cancel(m.cancellations.Register(ScopeDashboard)).
		Then(func(v any) tea.Cmd {
			results, _ := v.(map[string]rpc.BalanceResult)
			return msgCmd(balancesMsg{gen: gen, results: results})
		})

	return m.runner.Start(t)
}

// SelectToken loads the details of token into the details panel, cancelling
// a previous details load.
func (m *Model) SelectToken(token domain.Token) tea.Cmd {
	m.cancellations.Run(ScopeToken)
	if m.client == nil {
		m.details.SetContent(markup.Wrap("red-fg", "Not connected"))
		return nil
	}

	client, gen, timeout := m.client, m.gen, m.opts.Timeout
	t := task.Until(func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.TokenDetails(ctx, token)
	}).
		Do(&m.details, task.SetContent).
		Every(m.opts.Spinner).
		Spin(func(frame string) string { return frame + " Loading " + markup.Escape(token.Label()) }).
		Fail(func(string) string { return markup.Wrap("red-fg", "Failed to load "+markup.Escape(token.Label())) }).
		Cancel(m.cancellations.Register(ScopeToken)).
		Then(func(v any) tea.Cmd {
			details, _ := v.(domain.TokenDetails)
			return msgCmd(detailsMsg{gen: gen, details: details})
		}).
		Catch(func(err error) tea.Cmd {
			m.logger.Error("loading token details failed", "token", token.Contract, "err", err)
			return nil
		})

	return m.runner.Start(t)
}

// Leave cancels every dashboard pipeline and pending retry. It reports
// whether anything was running.
func (m *Model) Leave() bool {
	m.gen++
	ran := m.cancellations.Run(ScopeDashboard)
	if m.cancellations.Run(ScopeToken) {
		ran = true
	}
	if ran {
		m.logger.Info("cancelled dashboard tasks", "chain", m.chain.Name)
	}
	return ran
}

// Close cancels everything and drops the connection
func (m *Model) Close() {
	m.Leave()
	m.closeClient()
}

func (m *Model) closeClient() {
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
}

// Update handles pipeline results, retries and table navigation
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	if cmd, handled := m.runner.Update(msg); handled {
		return cmd
	}

	switch msg := msg.(type) {
	case connectedMsg:
		if msg.gen != m.gen {
			if msg.conn.client != nil {
				msg.conn.client.Close()
			}
			return nil
		}
		m.client = msg.conn.client
		m.attempt = 0
		m.header.SetContent(fmt.Sprintf("chain id %s  block %d  wallet %s",
			msg.conn.chainID, msg.conn.block, markup.Escape(m.wallet.Name)))
		m.logger.Info("connected", "chain", m.chain.Name, "block", msg.conn.block)
		return m.Refresh()

	case connectFailedMsg:
		if msg.gen != m.gen {
			return nil
		}
		m.attempt++
		m.logger.Error("connect failed", "chain", m.chain.Name, "attempt", m.attempt, "err", msg.err)
		m.header.SetContent(markup.Wrap("red-fg", "Error: "+markup.Escape(msg.err.Error())))
		if m.attempt > m.opts.Retries {
			return nil
		}
		gen := m.gen
		return tea.Tick(m.opts.RetryDelay, func(time.Time) tea.Msg { return retryMsg{gen: gen} })

	case retryMsg:
		if msg.gen != m.gen {
			return nil
		}
		return m.connect()

	case balancesMsg:
		if msg.gen != m.gen {
			return nil
		}
		for contract, res := range msg.results {
			if res.Err != nil {
				m.logger.Warn("balance lookup failed", "token", res.Token.Label(), "err", res.Err)
			}
			m.balances[contract] = res
		}
		m.renderRows()
		return nil

	case detailsMsg:
		if msg.gen != m.gen {
			return nil
		}
		m.showDetails(msg.details)
		return nil

	case listview.SelectMsg:
		if msg.ListID != m.list.ID() || msg.Index >= len(m.rows) {
			return nil
		}
		return m.SelectToken(m.rows[msg.Index])

	case tea.KeyMsg, tea.MouseMsg:
		return m.list.Update(msg)
	}
	return nil
}

func (m *Model) showDetails(d domain.TokenDetails) {
	t := d.Token
	lines := []string{
		"Name:         " + markup.Escape(t.Name),
		"Symbol:       " + markup.Escape(t.Symbol),
		"Contract:     " + t.Contract,
		fmt.Sprintf("Decimals:     %d", t.Decimals),
		"Total supply: " + rpc.FormatUnits(d.TotalSupply, t.Decimals),
		"Balance:      " + markup.Wrap("green-fg", rpc.FormatUnits(d.Balance, t.Decimals)),
	}
	m.details.SetContent(strings.Join(lines, "\n"))

	// remember the metadata so rows show symbol and scaled balances
	if m.store != nil && (t.Name != "" || t.Symbol != "") {
		if err := m.store.UpdateToken(t); err != nil {
			m.logger.Warn("saving token metadata failed", "token", t.Contract, "err", err)
		}
	}
	for i, row := range m.rows {
		if row.Same(t) {
			m.rows[i] = t
		}
	}
	m.balances[strings.ToLower(t.Contract)] = rpc.BalanceResult{Token: t, Balance: d.Balance}
	m.renderRows()
}

func (m *Model) renderRows() {
	if len(m.rows) == 0 {
		m.list.SetItems(nil)
		m.list.SetMessage("No tokens")
		return
	}
	labels := make([]string, len(m.rows))
	for i, t := range m.rows {
		balance := "…"
		if res, ok := m.balances[strings.ToLower(t.Contract)]; ok {
			if res.Err != nil {
				balance = markup.Wrap("red-fg", "error")
			} else {
				balance = rpc.FormatUnits(res.Balance, t.Decimals)
			}
		}
		labels[i] = fmt.Sprintf("%-10s %s", markup.Escape(t.Label()), balance)
	}
	m.list.SetMessage("")
	m.list.SetItems(labels)
	if m.list.Selected() == listview.None {
		m.list.Select(0)
	}
}

// View renders header, tokens, details and the log pane
func (m *Model) View() string {
	_, body, logs := m.layout()
	half := m.width / 2

	header := lipgloss.NewStyle().Width(m.width).Render(
		markup.RenderWith(titleStyle, m.header.Label()) + "  " + markup.Render(m.header.Content()))

	tokens := renderPanel(m.tokens.Label(), m.list.View(), half, body, m.list.Focused())
	details := renderPanel(m.details.Label(), markup.Render(m.details.Content()), m.width-half, body, false)

	var logLines []string
	if m.sink != nil {
		logLines = m.sink.Tail(logs - 3)
	}
	logPane := renderPanel("Logs", strings.Join(logLines, "\n"), m.width, logs, false)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, tokens, details),
		logPane,
	)
}

func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
