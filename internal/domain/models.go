package domain

import (
	"math/big"
	"strings"
)

// RPC holds the endpoints of a chain
type RPC struct {
	HTTP string `yaml:"http"`
	WS   string `yaml:"ws,omitempty"`
}

// Chain is an EVM network the wallet can connect to
type Chain struct {
	Name    string `yaml:"name"`
	ChainID uint64 `yaml:"chainId"`
	RPC     RPC    `yaml:"rpc"`
}

// Wallet is a watched address
type Wallet struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// Token is an ERC-20 contract tracked for a wallet on one chain
type Token struct {
	Contract string `yaml:"contract"`
	Wallet   string `yaml:"wallet"`
	ChainID  uint64 `yaml:"chainId"`
	Name     string `yaml:"name,omitempty"`
	Symbol   string `yaml:"symbol,omitempty"`
	Decimals uint8  `yaml:"decimals,omitempty"`
}

// Label is how a token is listed in pickers and tables
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Contract
}

// Same reports whether t and o are the same contract for the same wallet and chain
func (t Token) Same(o Token) bool {
	return t.ChainID == o.ChainID &&
		strings.EqualFold(t.Wallet, o.Wallet) &&
		strings.EqualFold(t.Contract, o.Contract)
}

// TokenDetails is the on-chain view of a token for one holder
type TokenDetails struct {
	Token       Token
	Balance     *big.Int
	TotalSupply *big.Int
}
