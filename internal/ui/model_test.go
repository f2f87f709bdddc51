package ui

import (
	"context"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmsniper/internal/config"
	"evmsniper/internal/domain"
	"evmsniper/internal/eventbus"
	"evmsniper/internal/logging"
	"evmsniper/internal/rpc"
	"evmsniper/internal/store"
	"evmsniper/internal/ui/dashboard"
	"evmsniper/internal/ui/forms"
	"evmsniper/internal/ui/selector"
)

const (
	holder = "0x1111111111111111111111111111111111111111"
	usdt   = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

type fakeClient struct{}

func (fakeClient) ChainID(context.Context) (*big.Int, error)  { return big.NewInt(56), nil }
func (fakeClient) BlockNumber(context.Context) (uint64, error) { return 7, nil }
func (fakeClient) Close()                                    {}

func (fakeClient) Balance(context.Context, string) (*big.Int, error) { return big.NewInt(0), nil }

func (fakeClient) TokenBalance(context.Context, string, string) (*big.Int, error) {
	return big.NewInt(5), nil
}

func (fakeClient) TokenDetails(_ context.Context, t domain.Token) (domain.TokenDetails, error) {
	return domain.TokenDetails{Token: t, Balance: big.NewInt(5), TotalSupply: big.NewInt(10)}, nil
}

type fixture struct {
	model *Model
	store *store.Store
	bus   eventbus.EventBus
}

func newFixture(t *testing.T, session config.SessionSettings, dial dashboard.DialFunc) fixture {
	t.Helper()
	logger := log.New(io.Discard)
	bus := eventbus.New(logger)
	t.Cleanup(bus.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "data.yaml"), bus)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.UI.FetchBeforeShow = true
	cfg.UI.SpinnerInterval = config.Duration{Duration: time.Hour}
	cfg.Session = session

	if dial == nil {
		dial = func(context.Context, string) (rpc.Client, error) { return fakeClient{}, nil }
	}
	m := NewModel(Deps{Bus: bus, Config: cfg, Store: st, Logger: logger, Sink: logging.NewSink(50), Dial: dial})
	return fixture{model: m, store: st, bus: bus}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(50 * time.Millisecond):
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func pump(m *Model, cmd tea.Cmd, done func() bool) {
	queue := collect(cmd)
	for i := 0; i < 100 && len(queue) > 0 && !done(); i++ {
		msg := queue[0]
		queue = queue[1:]
		_, next := m.Update(msg)
		queue = append(queue, collect(next)...)
	}
}

func keys(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func pickerOpen(m *Model, id string) func() bool {
	return func() bool { return m.Prompt() != nil && m.Prompt().ID() == id && m.Prompt().IsOpen() }
}

func TestInitAsksForChain(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model

	pump(m, m.Init(), pickerOpen(m, pickChain))
	require.True(t, pickerOpen(m, pickChain)())
	assert.True(t, m.screen.GrabsKeys())
	assert.Contains(t, m.View(), "Ethereum")

	// the picker owns the keyboard, so q filters instead of quitting
	m.Update(keys("q"))
	assert.Equal(t, "q", m.Prompt().Query())
	assert.True(t, m.Prompt().IsOpen())
}

func TestChoosingChainPublishesAndAsksForWallet(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model
	events := make(chan eventbus.DomainEvent, 4)
	f.bus.Subscribe(eventbus.EventChainSelected, func(e eventbus.DomainEvent) { events <- e })

	pump(m, m.Init(), pickerOpen(m, pickChain))
	m.Update(keys("BSC"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	pump(m, cmd, pickerOpen(m, pickWallet))

	assert.Equal(t, "BSC", m.Chain().Name)
	require.True(t, pickerOpen(m, pickWallet)())
	assert.Contains(t, m.View(), selector.NoItems)

	select {
	case e := <-events:
		assert.Equal(t, "BSC", e.(eventbus.ChainSelectedEvent).Chain.Name)
	case <-time.After(time.Second):
		t.Fatal("ChainSelected was not published")
	}
}

func TestSessionRestoreConnects(t *testing.T) {
	f := newFixture(t, config.SessionSettings{Chain: "BSC", Wallet: "main"}, nil)
	require.NoError(t, f.store.AddWallet(domain.Wallet{Name: "main", Address: holder}))
	m := f.model

	pump(m, m.Init(), m.Dashboard().Connected)
	require.True(t, m.Dashboard().Connected())
	assert.Nil(t, m.Prompt(), "no picker when the session is complete")
	assert.Equal(t, "main", m.Wallet().Name)
}

func TestEscCancelsLoading(t *testing.T) {
	dialed := make(chan struct{})
	dial := func(ctx context.Context, _ string) (rpc.Client, error) {
		close(dialed)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newFixture(t, config.SessionSettings{Chain: "BSC", Wallet: "main"}, dial)
	require.NoError(t, f.store.AddWallet(domain.Wallet{Name: "main", Address: holder}))
	m := f.model

	cmd := m.Init()
	done := make(chan []tea.Msg, 1)
	go func() { done <- collect(cmd) }()
	<-dialed

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "Cancelled", m.Status())
	<-done
	assert.False(t, m.Dashboard().Connected())
}

func TestTokenKeysNeedSelection(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model

	_, cmd := m.Update(keys("a"))
	assert.Nil(t, cmd)
	assert.Nil(t, m.Form())
	assert.Equal(t, "{red-fg}Select a chain and a wallet first{/red-fg}", m.Status())

	m.Update(keys("t"))
	assert.Nil(t, m.Prompt())
}

func TestFormGrabsKeys(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model

	m.Update(keys("W"))
	require.NotNil(t, m.Form())
	require.True(t, m.Form().IsOpen())
	assert.True(t, m.screen.GrabsKeys())

	m.Update(keys("q"))
	assert.True(t, m.Form().IsOpen(), "q goes to the form")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Form().IsOpen())
	assert.False(t, m.screen.GrabsKeys())
	assert.Contains(t, collect(cmd), forms.CancelledMsg{Kind: forms.KindWallet})
}

func TestSubmitStoresWallet(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model
	values := map[string]string{forms.FieldName: "main", forms.FieldAddress: holder}

	m.Update(forms.SubmittedMsg{Kind: forms.KindWallet, Values: values})
	w, ok := f.store.Wallet("main")
	require.True(t, ok)
	assert.Equal(t, holder, w.Address)
	assert.Equal(t, "Added wallet", m.Status())

	m.Update(forms.SubmittedMsg{Kind: forms.KindWallet, Values: values})
	assert.True(t, strings.HasPrefix(m.Status(), "{red-fg}"))
	assert.Contains(t, m.Status(), "exists")
}

func TestTokenEventsRefreshDashboard(t *testing.T) {
	f := newFixture(t, config.SessionSettings{Chain: "BSC", Wallet: "main"}, nil)
	require.NoError(t, f.store.AddWallet(domain.Wallet{Name: "main", Address: holder}))
	m := f.model
	pump(m, m.Init(), m.Dashboard().Connected)
	require.True(t, m.Dashboard().Connected())

	token := domain.Token{Contract: usdt, Wallet: holder, ChainID: 56}
	require.NoError(t, f.store.AddToken(token))
	m.Update(EventMsg{Event: eventbus.TokenAddedEvent{Token: token}})
	require.Equal(t, 1, m.Dashboard().List().Len())

	other := domain.Token{Contract: usdt, Wallet: holder, ChainID: 1}
	_, cmd := m.Update(EventMsg{Event: eventbus.TokenAddedEvent{Token: other}})
	assert.Nil(t, cmd, "tokens of other chains are ignored")

	m.Update(keys("x"))
	_, ok := f.store.Token(holder, 56, usdt)
	assert.False(t, ok)
	m.Update(EventMsg{Event: eventbus.TokenRemovedEvent{Token: token}})
	assert.Zero(t, m.Dashboard().List().Len())
}

func TestPagersReturnCommands(t *testing.T) {
	f := newFixture(t, config.SessionSettings{}, nil)
	m := f.model
	_, cmd := m.Update(keys("L"))
	assert.NotNil(t, cmd)
	_, cmd = m.Update(keys("?"))
	assert.NotNil(t, cmd)

	m.Update(pagerClosedMsg{title: "help", err: io.ErrUnexpectedEOF})
	assert.Contains(t, m.Status(), "pager failed")
}

func TestHelp(t *testing.T) {
	md := helpMarkdown(DefaultKeyMap())
	assert.Contains(t, md, "| `c` | select chain |")
	assert.Contains(t, md, "| `x` | remove token |")

	out, err := renderHelp(DefaultKeyMap(), 80)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
