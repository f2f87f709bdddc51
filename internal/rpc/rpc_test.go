package rpc

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmsniper/internal/domain"
)

const (
	holder   = "0x1111111111111111111111111111111111111111"
	contract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

type fakeToken struct {
	name     string
	symbol   string
	decimals uint8
	supply   *big.Int
	holders  map[common.Address]*big.Int
}

type fakeBackend struct {
	tokens map[common.Address]fakeToken
	native map[common.Address]*big.Int
	closed bool
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(56), nil }
func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 42, nil }
func (f *fakeBackend) Close()                                   { f.closed = true }

func (f *fakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if b, ok := f.native[account]; ok {
		return b, nil
	}
	return new(big.Int), nil
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	tok, ok := f.tokens[*call.To]
	if !ok {
		return nil, nil
	}
	method, err := ERC20.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "name":
		return method.Outputs.Pack(tok.name)
	case "symbol":
		return method.Outputs.Pack(tok.symbol)
	case "decimals":
		return method.Outputs.Pack(tok.decimals)
	case "totalSupply":
		return method.Outputs.Pack(tok.supply)
	case "balanceOf":
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		bal, ok := tok.holders[args[0].(common.Address)]
		if !ok {
			bal = new(big.Int)
		}
		return method.Outputs.Pack(bal)
	}
	return nil, errors.New("unexpected method")
}

func newFake() *fakeBackend {
	return &fakeBackend{
		tokens: map[common.Address]fakeToken{
			common.HexToAddress(contract): {
				name:     "Tether USD",
				symbol:   "USDT",
				decimals: 6,
				supply:   big.NewInt(1_000_000_000_000),
				holders:  map[common.Address]*big.Int{common.HexToAddress(holder): big.NewInt(1_234_500)},
			},
		},
		native: map[common.Address]*big.Int{common.HexToAddress(holder): big.NewInt(7)},
	}
}

func TestTokenDetails(t *testing.T) {
	c := NewClient(newFake())
	details, err := c.TokenDetails(context.Background(), domain.Token{Contract: contract, Wallet: holder, ChainID: 56})
	require.NoError(t, err)
	assert.Equal(t, "Tether USD", details.Token.Name)
	assert.Equal(t, "USDT", details.Token.Symbol)
	assert.Equal(t, uint8(6), details.Token.Decimals)
	assert.Equal(t, "1000000000000", details.TotalSupply.String())
	assert.Equal(t, "1.2345", FormatUnits(details.Balance, details.Token.Decimals))
}

func TestNotAContract(t *testing.T) {
	c := NewClient(newFake())
	_, err := c.TokenDetails(context.Background(), domain.Token{
		Contract: "0x2222222222222222222222222222222222222222",
		Wallet:   holder,
	})
	assert.ErrorContains(t, err, "empty response")
}

func TestInvalidAddresses(t *testing.T) {
	c := NewClient(newFake())
	_, err := c.Balance(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = c.TokenBalance(context.Background(), contract, "0x12")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestChainInfoAndBalance(t *testing.T) {
	fake := newFake()
	c := NewClient(fake)
	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	bal, err := c.Balance(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bal.Int64())

	c.Close()
	assert.True(t, fake.closed)
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{nil, 18, "0"},
		{big.NewInt(0), 18, "0"},
		{big.NewInt(1), 18, "0.000000000000000001"},
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(2_000_000), 6, "2"},
		{big.NewInt(-25), 1, "-2.5"},
		{big.NewInt(12345), 0, "12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUnits(tt.value, tt.decimals))
	}
}

type slowClient struct {
	Client
	mu       sync.Mutex
	inflight int
	peak     int
}

func (s *slowClient) TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	if strings.HasSuffix(contract, "ff") {
		return nil, errors.New("reverted")
	}
	return big.NewInt(int64(len(contract))), nil
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var tokens []domain.Token
	for _, suffix := range []string{"01", "02", "03", "04", "05", "06", "07", "ff"} {
		tokens = append(tokens, domain.Token{Contract: "0x" + strings.Repeat("0", 38) + suffix, Wallet: holder})
	}
	client := &slowClient{}
	results := NewPool(2).Balances(context.Background(), client, tokens)

	require.Len(t, results, len(tokens))
	assert.LessOrEqual(t, client.peak, 2)
	assert.NoError(t, results[strings.ToLower(tokens[0].Contract)].Err)
	assert.Equal(t, int64(42), results[strings.ToLower(tokens[0].Contract)].Balance.Int64())
	assert.Error(t, results[strings.ToLower(tokens[7].Contract)].Err)
}

func TestPoolHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewPool(1)
	pool.workerPool <- struct{}{} // occupy the only worker

	results := pool.Balances(ctx, &slowClient{}, []domain.Token{{Contract: contract, Wallet: holder}})
	assert.ErrorIs(t, results[strings.ToLower(contract)].Err, context.Canceled)
}
