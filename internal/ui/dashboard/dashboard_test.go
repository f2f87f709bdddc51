package dashboard

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmsniper/internal/domain"
	"evmsniper/internal/logging"
	"evmsniper/internal/rpc"
	"evmsniper/internal/task"
	"evmsniper/internal/ui/listview"
)

const (
	holder = "0x1111111111111111111111111111111111111111"
	usdt   = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

var (
	bsc    = domain.Chain{Name: "BSC", ChainID: 56, RPC: domain.RPC{HTTP: "https://bsc-dataseed3.binance.org"}}
	wallet = domain.Wallet{Name: "main", Address: holder}
)

type fakeClient struct {
	chainID int64
	closed  bool
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error)  { return big.NewInt(f.chainID), nil }
func (f *fakeClient) BlockNumber(context.Context) (uint64, error) { return 1234, nil }
func (f *fakeClient) Close()                                    { f.closed = true }

func (f *fakeClient) Balance(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeClient) TokenBalance(context.Context, string, string) (*big.Int, error) {
	return big.NewInt(1_500_000), nil
}

func (f *fakeClient) TokenDetails(_ context.Context, t domain.Token) (domain.TokenDetails, error) {
	t.Name, t.Symbol, t.Decimals = "Tether USD", "USDT", 6
	return domain.TokenDetails{Token: t, Balance: big.NewInt(1_500_000), TotalSupply: big.NewInt(9_000_000)}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	tokens  []domain.Token
	updated []domain.Token
}

func (s *fakeStore) Tokens(w string, chainID uint64) []domain.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Token
	for _, t := range s.tokens {
		if strings.EqualFold(t.Wallet, w) && t.ChainID == chainID {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeStore) UpdateToken(t domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, t)
	for i := range s.tokens {
		if s.tokens[i].Same(t) {
			s.tokens[i] = t
		}
	}
	return nil
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

func pump(d *Model, cmd tea.Cmd, done func() bool) {
	queue := collect(cmd)
	for i := 0; i < 100 && len(queue) > 0 && !done(); i++ {
		msg := queue[0]
		queue = queue[1:]
		queue = append(queue, collect(d.Update(msg))...)
	}
}

func newDashboard(t *testing.T, store Store, dial DialFunc, opts Options) (*Model, *logging.Sink) {
	t.Helper()
	sink := logging.NewSink(100)
	logger := log.New(io.MultiWriter(sink, io.Discard))
	// frames never advance on their own
	opts.Spinner = spinner.Spinner{Frames: []string{"a", "b"}, FPS: time.Hour}
	return New(logger, sink, store, dial, task.NewCancellations(logger), opts), sink
}

func dialTo(c rpc.Client) DialFunc {
	return func(context.Context, string) (rpc.Client, error) { return c, nil }
}

func TestConnectLoadsBalances(t *testing.T) {
	store := &fakeStore{tokens: []domain.Token{{Contract: usdt, Wallet: holder, ChainID: 56}}}
	d, sink := newDashboard(t, store, dialTo(&fakeClient{chainID: 56}), Options{})

	cmd := d.Connect(bsc, wallet)
	assert.Equal(t, "a Connecting to BSC", d.Header().Label())

	pump(d, cmd, func() bool { return len(d.List().Items()) == 1 && strings.Contains(d.List().Items()[0], "1500000") })
	require.True(t, d.Connected())
	assert.Equal(t, "BSC", d.Header().Label())
	assert.Contains(t, d.Header().Content(), "block 1234")
	assert.Equal(t, "Tokens", d.Tokens().Label())
	require.Len(t, d.List().Items(), 1)
	assert.Contains(t, d.List().Items()[0], "1500000")
	assert.Contains(t, sink.String(), "connected")

	tok, ok := d.SelectedToken()
	require.True(t, ok)
	assert.Equal(t, usdt, tok.Contract)
	assert.NotEmpty(t, d.View())
}

func TestConnectRejectsWrongChain(t *testing.T) {
	d, _ := newDashboard(t, &fakeStore{}, dialTo(&fakeClient{chainID: 1}), Options{})
	pump(d, d.Connect(bsc, wallet), func() bool { return strings.Contains(d.Header().Content(), "mismatch") })
	assert.False(t, d.Connected())
	assert.Equal(t, "{red-fg}BSC (offline){/red-fg}", d.Header().Label())
	assert.Contains(t, d.Header().Content(), "chain id mismatch")
}

func TestConnectRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	dial := func(context.Context, string) (rpc.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return &fakeClient{chainID: 56}, nil
	}
	d, sink := newDashboard(t, &fakeStore{}, dial, Options{Retries: 2, RetryDelay: time.Millisecond})

	pump(d, d.Connect(bsc, wallet), d.Connected)
	require.True(t, d.Connected())
	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
	assert.Contains(t, sink.String(), "connection refused")
}

func TestConnectGivesUpAfterRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	dial := func(context.Context, string) (rpc.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil, errors.New("connection refused")
	}
	d, _ := newDashboard(t, &fakeStore{}, dial, Options{Retries: 1, RetryDelay: time.Millisecond})

	pump(d, d.Connect(bsc, wallet), func() bool { return false })
	assert.False(t, d.Connected())
	mu.Lock()
	assert.Equal(t, 2, attempts)
	mu.Unlock()
	assert.Equal(t, "{red-fg}BSC (offline){/red-fg}", d.Header().Label())
}

func TestLeaveCancelsConnect(t *testing.T) {
	dialed := make(chan struct{})
	dial := func(ctx context.Context, _ string) (rpc.Client, error) {
		close(dialed)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d, sink := newDashboard(t, &fakeStore{}, dial, Options{})

	cmd := d.Connect(bsc, wallet)
	msgs := make(chan []tea.Msg, 1)
	go func() { msgs <- collect(cmd) }()
	<-dialed

	assert.True(t, d.Leave())
	assert.Contains(t, sink.String(), "cancelled dashboard tasks")
	for _, msg := range <-msgs {
		assert.Nil(t, d.Update(msg))
	}
	assert.Equal(t, "a Connecting to BSC", d.Header().Label(), "the last frame stays")
	assert.False(t, d.Connected())
	assert.Zero(t, d.Pending())

	assert.False(t, d.Leave(), "nothing left to cancel")
}

func TestLeaveClosesConnectionThatArrivesLate(t *testing.T) {
	client := &fakeClient{chainID: 56}
	d, _ := newDashboard(t, &fakeStore{}, dialTo(client), Options{})

	// the dial finishes before the cancel, its settlement is still queued
	msgs := collect(d.Connect(bsc, wallet))
	require.NotEmpty(t, msgs)
	assert.True(t, d.Leave())

	for _, msg := range msgs {
		assert.Nil(t, d.Update(msg))
	}
	assert.True(t, client.closed, "the unused client is closed")
	assert.False(t, d.Connected())
	assert.Zero(t, d.Pending())
}

func TestSettledTasksLeaveNoCallbacks(t *testing.T) {
	store := &fakeStore{tokens: []domain.Token{{Contract: usdt, Wallet: holder, ChainID: 56}}}
	d, _ := newDashboard(t, store, dialTo(&fakeClient{chainID: 56}), Options{})
	pump(d, d.Connect(bsc, wallet), func() bool { return d.Connected() && d.Pending() == 0 })
	require.True(t, d.Connected())

	for i := 0; i < 5; i++ {
		pump(d, d.Refresh(), func() bool { return d.Pending() == 0 })
	}
	assert.Zero(t, d.cancellations.Len(ScopeDashboard))
}

func TestSelectTokenShowsDetails(t *testing.T) {
	store := &fakeStore{tokens: []domain.Token{{Contract: usdt, Wallet: holder, ChainID: 56}}}
	d, _ := newDashboard(t, store, dialTo(&fakeClient{chainID: 56}), Options{})
	pump(d, d.Connect(bsc, wallet), func() bool { return d.Connected() && d.Pending() == 0 })
	require.True(t, d.Connected())

	cmd := d.Update(listview.SelectMsg{ListID: d.List().ID(), Index: 0})
	assert.Equal(t, "a Loading "+usdt, d.Details().Content())
	pump(d, cmd, func() bool { return strings.Contains(d.Details().Content(), "Tether USD") })

	assert.Contains(t, d.Details().Content(), "Symbol:       USDT")
	assert.Contains(t, d.Details().Content(), "{green-fg}1.5{/green-fg}")
	require.Len(t, store.updated, 1)
	assert.Equal(t, "USDT", store.updated[0].Symbol)
	assert.Contains(t, d.List().Items()[0], "USDT")
	assert.Contains(t, d.List().Items()[0], "1.5")
}

func TestSelectTokenCancelsPrevious(t *testing.T) {
	d, _ := newDashboard(t, &fakeStore{}, dialTo(&fakeClient{chainID: 56}), Options{})
	pump(d, d.Connect(bsc, wallet), d.Connected)
	require.True(t, d.Connected())

	d.SelectToken(domain.Token{Contract: usdt, Wallet: holder, ChainID: 56})
	assert.Equal(t, 1, d.cancellations.Len(ScopeToken))
	d.SelectToken(domain.Token{Contract: usdt, Wallet: holder, ChainID: 56, Symbol: "USDT"})
	assert.Equal(t, 1, d.cancellations.Len(ScopeToken), "the first load was cancelled")
}

func TestSelectTokenWithoutConnection(t *testing.T) {
	d, _ := newDashboard(t, &fakeStore{}, nil, Options{})
	assert.Nil(t, d.SelectToken(domain.Token{Contract: usdt}))
	assert.Equal(t, "{red-fg}Not connected{/red-fg}", d.Details().Content())
}
