// Package rpc reads chain state and ERC-20 token data from an EVM node.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"evmsniper/internal/domain"
)

// ErrInvalidAddress is returned for strings that are not hex addresses
var ErrInvalidAddress = errors.New("invalid address")

const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// ERC20 is the parsed token ABI
var ERC20 = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing erc20 abi: %v", err))
	}
	return parsed
}

// Client is what the dashboard needs from a node
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account string) (*big.Int, error)
	TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error)
	TokenDetails(ctx context.Context, token domain.Token) (domain.TokenDetails, error)
	Close()
}

// Backend is the part of ethclient.Client used here
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EthClient implements Client on top of a Backend
type EthClient struct {
	backend Backend
}

// Dial connects to an http or websocket endpoint
func Dial(ctx context.Context, url string) (*EthClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewClient(c), nil
}

// NewClient wraps an existing backend
func NewClient(b Backend) *EthClient {
	return &EthClient{backend: b}
}

// ParseAddress validates and parses a hex address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q: %w", s, ErrInvalidAddress)
	}
	return common.HexToAddress(s), nil
}

// ChainID returns the chain id reported by the node
func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

// BlockNumber returns the latest block number
func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return n, nil
}

// Balance returns the native coin balance of account at the latest block
func (c *EthClient) Balance(ctx context.Context, account string) (*big.Int, error) {
	addr, err := ParseAddress(account)
	if err != nil {
		return nil, err
	}
	bal, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// TokenBalance returns holder's balance of an ERC-20 contract
func (c *EthClient) TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error) {
	to, err := ParseAddress(contract)
	if err != nil {
		return nil, err
	}
	owner, err := ParseAddress(holder)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, to, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return bigOut(out, "balanceOf")
}

// TokenDetails reads name, symbol, decimals, total supply and the balance of
// token.Wallet from the contract
func (c *EthClient) TokenDetails(ctx context.Context, token domain.Token) (domain.TokenDetails, error) {
	details := domain.TokenDetails{Token: token}
	to, err := ParseAddress(token.Contract)
	if err != nil {
		return details, err
	}

	out, err := c.call(ctx, to, "name")
	if err != nil {
		return details, err
	}
	details.Token.Name, _ = out[0].(string)

	if out, err = c.call(ctx, to, "symbol"); err != nil {
		return details, err
	}
	details.Token.Symbol, _ = out[0].(string)

	if out, err = c.call(ctx, to, "decimals"); err != nil {
		return details, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return details, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	details.Token.Decimals = decimals

	if out, err = c.call(ctx, to, "totalSupply"); err != nil {
		return details, err
	}
	if details.TotalSupply, err = bigOut(out, "totalSupply"); err != nil {
		return details, err
	}

	if details.Balance, err = c.TokenBalance(ctx, token.Contract, token.Wallet); err != nil {
		return details, err
	}
	return details, nil
}

// Close releases the connection
func (c *EthClient) Close() { c.backend.Close() }

func (c *EthClient) call(ctx context.Context, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := ERC20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, to.Hex(), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: empty response from %s, not an ERC-20 contract?", method, to.Hex())
	}
	out, err := ERC20.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no return values", method)
	}
	return out, nil
}

func bigOut(out []interface{}, method string) (*big.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, out[0])
	}
	return v, nil
}
