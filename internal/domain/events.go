package domain

// EventType represents the type of domain event
type EventType string

// Event types
const (
	EventChainSelected  EventType = "ChainSelected"
	EventWalletSelected EventType = "WalletSelected"
	EventChainAdded     EventType = "ChainAdded"
	EventChainRemoved   EventType = "ChainRemoved"
	EventWalletAdded    EventType = "WalletAdded"
	EventWalletRemoved  EventType = "WalletRemoved"
	EventTokenAdded     EventType = "TokenAdded"
	EventTokenRemoved   EventType = "TokenRemoved"
	EventError          EventType = "Error"
	EventConfigLoaded   EventType = "ConfigLoaded"
	EventConfigSaved    EventType = "ConfigSaved"
	EventConfigChanged  EventType = "ConfigChanged"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// ChainSelectedEvent is emitted when the user switches chain
type ChainSelectedEvent struct {
	Chain Chain
}

func (e ChainSelectedEvent) Type() EventType { return EventChainSelected }

// WalletSelectedEvent is emitted when the user switches wallet
type WalletSelectedEvent struct {
	Wallet Wallet
}

func (e WalletSelectedEvent) Type() EventType { return EventWalletSelected }

// ChainAddedEvent is emitted when a chain is stored
type ChainAddedEvent struct {
	Chain Chain
}

func (e ChainAddedEvent) Type() EventType { return EventChainAdded }

// ChainRemovedEvent is emitted when a chain is deleted
type ChainRemovedEvent struct {
	Name string
}

func (e ChainRemovedEvent) Type() EventType { return EventChainRemoved }

// WalletAddedEvent is emitted when a wallet is stored
type WalletAddedEvent struct {
	Wallet Wallet
}

func (e WalletAddedEvent) Type() EventType { return EventWalletAdded }

// WalletRemovedEvent is emitted when a wallet is deleted
type WalletRemovedEvent struct {
	Name string
}

func (e WalletRemovedEvent) Type() EventType { return EventWalletRemoved }

// TokenAddedEvent is emitted when a token is stored
type TokenAddedEvent struct {
	Token Token
}

func (e TokenAddedEvent) Type() EventType { return EventTokenAdded }

// TokenRemovedEvent is emitted when a token is deleted
type TokenRemovedEvent struct {
	Token Token
}

func (e TokenRemovedEvent) Type() EventType { return EventTokenRemoved }

// ErrorEvent is emitted when an error occurs
type ErrorEvent struct {
	Message string
	Err     error
}

func (e ErrorEvent) Type() EventType { return EventError }

// ConfigLoadedEvent is emitted when configuration is loaded
type ConfigLoadedEvent struct {
	Path    string
	Chain   string
	Wallet  string
	Default bool // no file existed
}

func (e ConfigLoadedEvent) Type() EventType { return EventConfigLoaded }

// ConfigSavedEvent is emitted when configuration is saved
type ConfigSavedEvent struct {
	Path string
}

func (e ConfigSavedEvent) Type() EventType { return EventConfigSaved }

// ConfigChangedEvent is emitted when a setting changes at runtime
type ConfigChangedEvent struct {
	Key   string
	Value string
}

func (e ConfigChangedEvent) Type() EventType { return EventConfigChanged }
