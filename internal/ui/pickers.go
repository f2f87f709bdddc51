package ui

import (
	"context"

	"evmsniper/internal/domain"
	"evmsniper/internal/ui/selector"
)

// Store is the persistence the UI works with
type Store interface {
	Chains() []domain.Chain
	Chain(name string) (domain.Chain, bool)
	AddChain(c domain.Chain) error
	Wallets() []domain.Wallet
	Wallet(name string) (domain.Wallet, bool)
	AddWallet(w domain.Wallet) error
	Tokens(wallet string, chainID uint64) []domain.Token
	Token(wallet string, chainID uint64, label string) (domain.Token, bool)
	AddToken(t domain.Token) error
	UpdateToken(t domain.Token) error
	RemoveToken(t domain.Token) error
}

// Picker ids
const (
	pickChain  = "chain"
	pickWallet = "wallet"
	pickToken  = "token"
)

func chainSource(s Store) (selector.FetchFunc, selector.LookupFunc) {
	fetch := func(context.Context) ([]selector.Candidate, error) {
		chains := s.Chains()
		out := make([]selector.Candidate, len(chains))
		for i, c := range chains {
			out[i] = selector.Candidate{Name: c.Name, Value: c}
		}
		return out, nil
	}
	lookup := func(name string) (selector.Candidate, bool) {
		c, ok := s.Chain(name)
		return selector.Candidate{Name: c.Name, Value: c}, ok
	}
	return fetch, lookup
}

func walletSource(s Store) (selector.FetchFunc, selector.LookupFunc) {
	fetch := func(context.Context) ([]selector.Candidate, error) {
		wallets := s.Wallets()
		out := make([]selector.Candidate, len(wallets))
		for i, w := range wallets {
			out[i] = selector.Candidate{Name: w.Name, Value: w}
		}
		return out, nil
	}
	lookup := func(name string) (selector.Candidate, bool) {
		w, ok := s.Wallet(name)
		return selector.Candidate{Name: w.Name, Value: w}, ok
	}
	return fetch, lookup
}

func tokenSource(s Store, wallet string, chainID uint64) (selector.FetchFunc, selector.LookupFunc) {
	fetch := func(context.Context) ([]selector.Candidate, error) {
		tokens := s.Tokens(wallet, chainID)
		out := make([]selector.Candidate, len(tokens))
		for i, t := range tokens {
			out[i] = selector.Candidate{Name: t.Label(), Value: t}
		}
		return out, nil
	}
	lookup := func(name string) (selector.Candidate, bool) {
		t, ok := s.Token(wallet, chainID, name)
		return selector.Candidate{Name: t.Label(), Value: t}, ok
	}
	return fetch, lookup
}
