package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the global key bindings. They apply only while no picker or
// form owns the keyboard.
type KeyMap struct {
	Chain       key.Binding
	Wallet      key.Binding
	Token       key.Binding
	AddChain    key.Binding
	AddWallet   key.Binding
	AddToken    key.Binding
	RemoveToken key.Binding
	Refresh     key.Binding
	Leave       key.Binding
	Logs        key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Chain:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "select chain")),
		Wallet:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "select wallet")),
		Token:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "find token")),
		AddChain:    key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "add chain")),
		AddWallet:   key.NewBinding(key.WithKeys("W"), key.WithHelp("W", "add wallet")),
		AddToken:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add token")),
		RemoveToken: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove token")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh balances")),
		Leave:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel loading")),
		Logs:        key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log history")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Chain, k.Wallet, k.Token, k.AddToken, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Chain, k.Wallet, k.Token},
		{k.AddChain, k.AddWallet, k.AddToken, k.RemoveToken},
		{k.Refresh, k.Leave, k.Logs, k.Help, k.Quit},
	}
}
