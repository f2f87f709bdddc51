// Package store persists chains, wallets and tokens in a YAML file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"evmsniper/internal/domain"
	"evmsniper/internal/eventbus"
)

var (
	// ErrExists is returned when adding a duplicate entry
	ErrExists = errors.New("already exists")
	// ErrNotFound is returned when removing an unknown entry
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for entries missing required fields
	ErrInvalid = errors.New("invalid entry")
)

// Data is the persisted document
type Data struct {
	Chains  []domain.Chain  `yaml:"chains"`
	Wallets []domain.Wallet `yaml:"wallets"`
	Tokens  []domain.Token  `yaml:"tokens"`
}

// DefaultData is used when no file exists yet
func DefaultData() Data {
	return Data{
		Chains: []domain.Chain{
			{Name: "Ethereum", ChainID: 1, RPC: domain.RPC{HTTP: "https://rpc.mevblocker.io"}},
			{Name: "BSC", ChainID: 56, RPC: domain.RPC{HTTP: "https://bsc-dataseed3.binance.org"}},
		},
	}
}

// Store is a YAML-backed store safe for concurrent use
type Store struct {
	mu   sync.RWMutex
	path string
	data Data
	bus  eventbus.EventBus
}

// Open loads path, or starts from DefaultData when the file does not exist.
// A nil bus disables events.
func Open(path string, bus eventbus.EventBus) (*Store, error) {
	s := &Store{path: path, bus: bus}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.data = DefaultData()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file
func (s *Store) Path() string { return s.path }

// Chains returns all chains in insertion order
func (s *Store) Chains() []domain.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chain(nil), s.data.Chains...)
}

// Chain finds a chain by name
func (s *Store) Chain(name string) (domain.Chain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data.Chains {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Chain{}, false
}

// AddChain stores a new chain. Names are unique.
func (s *Store) AddChain(c domain.Chain) error {
	if strings.TrimSpace(c.Name) == "" || c.RPC.HTTP == "" {
		return fmt.Errorf("chain needs a name and an http rpc: %w", ErrInvalid)
	}
	return s.update(func(d *Data) error {
		for _, existing := range d.Chains {
			if existing.Name == c.Name {
				return fmt.Errorf("chain %q: %w", c.Name, ErrExists)
			}
		}
		d.Chains = append(d.Chains, c)
		return nil
	}, eventbus.ChainAddedEvent{Chain: c})
}

// RemoveChain deletes a chain by name
func (s *Store) RemoveChain(name string) error {
	return s.update(func(d *Data) error {
		for i, c := range d.Chains {
			if c.Name == name {
				d.Chains = append(d.Chains[:i:i], d.Chains[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("chain %q: %w", name, ErrNotFound)
	}, eventbus.ChainRemovedEvent{Name: name})
}

// Wallets returns all wallets in insertion order
func (s *Store) Wallets() []domain.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Wallet(nil), s.data.Wallets...)
}

// Wallet finds a wallet by name
func (s *Store) Wallet(name string) (domain.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.data.Wallets {
		if w.Name == name {
			return w, true
		}
	}
	return domain.Wallet{}, false
}

// AddWallet stores a new wallet. Names and addresses are unique.
func (s *Store) AddWallet(w domain.Wallet) error {
	if strings.TrimSpace(w.Name) == "" || w.Address == "" {
		return fmt.Errorf("wallet needs a name and an address: %w", ErrInvalid)
	}
	return s.update(func(d *Data) error {
		for _, existing := range d.Wallets {
			if existing.Name == w.Name || strings.EqualFold(existing.Address, w.Address) {
				return fmt.Errorf("wallet %q: %w", w.Name, ErrExists)
			}
		}
		d.Wallets = append(d.Wallets, w)
		return nil
	}, eventbus.WalletAddedEvent{Wallet: w})
}

// RemoveWallet deletes a wallet and its tokens
func (s *Store) RemoveWallet(name string) error {
	return s.update(func(d *Data) error {
		for i, w := range d.Wallets {
			if w.Name != name {
				continue
			}
			d.Wallets = append(d.Wallets[:i:i], d.Wallets[i+1:]...)
			kept := d.Tokens[:0:0]
			for _, t := range d.Tokens {
				if !strings.EqualFold(t.Wallet, w.Address) {
					kept = append(kept, t)
				}
			}
			d.Tokens = kept
			return nil
		}
		return fmt.Errorf("wallet %q: %w", name, ErrNotFound)
	}, eventbus.WalletRemovedEvent{Name: name})
}

// Tokens returns the tokens of a wallet address on a chain
func (s *Store) Tokens(wallet string, chainID uint64) []domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Token
	for _, t := range s.data.Tokens {
		if t.ChainID == chainID && strings.EqualFold(t.Wallet, wallet) {
			out = append(out, t)
		}
	}
	return out
}

// Token finds a token of a wallet on a chain by its label (symbol or contract)
func (s *Store) Token(wallet string, chainID uint64, label string) (domain.Token, bool) {
	for _, t := range s.Tokens(wallet, chainID) {
		if t.Label() == label {
			return t, true
		}
	}
	return domain.Token{}, false
}

// AddToken stores a token for a wallet and chain
func (s *Store) AddToken(t domain.Token) error {
	if t.Contract == "" || t.Wallet == "" {
		return fmt.Errorf("token needs a contract and a wallet: %w", ErrInvalid)
	}
	return s.update(func(d *Data) error {
		for _, existing := range d.Tokens {
			if existing.Same(t) {
				return fmt.Errorf("token %s: %w", t.Label(), ErrExists)
			}
		}
		d.Tokens = append(d.Tokens, t)
		return nil
	}, eventbus.TokenAddedEvent{Token: t})
}

// UpdateToken replaces the stored metadata of a token
func (s *Store) UpdateToken(t domain.Token) error {
	return s.update(func(d *Data) error {
		for i, existing := range d.Tokens {
			if existing.Same(t) {
				d.Tokens[i] = t
				return nil
			}
		}
		return fmt.Errorf("token %s: %w", t.Label(), ErrNotFound)
	}, nil)
}

// RemoveToken deletes a token
func (s *Store) RemoveToken(t domain.Token) error {
	return s.update(func(d *Data) error {
		for i, existing := range d.Tokens {
			if existing.Same(t) {
				d.Tokens = append(d.Tokens[:i:i], d.Tokens[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("token %s: %w", t.Label(), ErrNotFound)
	}, eventbus.TokenRemovedEvent{Token: t})
}

// update applies fn to a copy of the data, persists it and then publishes event
func (s *Store) update(fn func(*Data) error, event eventbus.DomainEvent) error {
	s.mu.Lock()
	next := Data{
		Chains:  append([]domain.Chain(nil), s.data.Chains...),
		Wallets: append([]domain.Wallet(nil), s.data.Wallets...),
		Tokens:  append([]domain.Token(nil), s.data.Tokens...),
	}
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := write(s.path, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.data = next
	s.mu.Unlock()

	if s.bus != nil && event != nil {
		s.bus.Publish(event)
	}
	return nil
}

// write replaces path atomically through a temp file in the same directory
func write(path string, data Data) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}
