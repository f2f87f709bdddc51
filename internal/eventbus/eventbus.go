package eventbus

import (
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"

	"evmsniper/internal/domain"
)

// Re-export domain types for convenience
type DomainEvent = domain.DomainEvent
type EventType = domain.EventType

// Event type constants
const (
	EventChainSelected  = domain.EventChainSelected
	EventWalletSelected = domain.EventWalletSelected
	EventChainAdded     = domain.EventChainAdded
	EventChainRemoved   = domain.EventChainRemoved
	EventWalletAdded    = domain.EventWalletAdded
	EventWalletRemoved  = domain.EventWalletRemoved
	EventTokenAdded     = domain.EventTokenAdded
	EventTokenRemoved   = domain.EventTokenRemoved
	EventError          = domain.EventError
	EventConfigLoaded   = domain.EventConfigLoaded
	EventConfigSaved    = domain.EventConfigSaved
	EventConfigChanged  = domain.EventConfigChanged
)

// Re-export domain event types
type ChainSelectedEvent = domain.ChainSelectedEvent
type WalletSelectedEvent = domain.WalletSelectedEvent
type ChainAddedEvent = domain.ChainAddedEvent
type ChainRemovedEvent = domain.ChainRemovedEvent
type WalletAddedEvent = domain.WalletAddedEvent
type WalletRemovedEvent = domain.WalletRemovedEvent
type TokenAddedEvent = domain.TokenAddedEvent
type TokenRemovedEvent = domain.TokenRemovedEvent
type ErrorEvent = domain.ErrorEvent
type ConfigLoadedEvent = domain.ConfigLoadedEvent
type ConfigSavedEvent = domain.ConfigSavedEvent
type ConfigChangedEvent = domain.ConfigChangedEvent

// EventHandler is a function that handles domain events
type EventHandler func(DomainEvent)

// EventBus is the interface for the event bus
type EventBus interface {
	Publish(event DomainEvent)
	Subscribe(eventType EventType, handler EventHandler) func()
	Close()
}

// bufferSize bounds queued events; Publish drops when full
const bufferSize = 1000

type subscription struct {
	id      uint64
	handler EventHandler
}

// bus is the concrete implementation of EventBus
type bus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]subscription
	nextID    uint64
	eventChan chan DomainEvent
	wg        sync.WaitGroup
	running   sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger
}

// New creates a new event bus. A nil logger uses log.Default().
func New(logger *log.Logger) EventBus {
	if logger == nil {
		logger = log.Default()
	}
	b := &bus{
		handlers:  make(map[EventType][]subscription),
		eventChan: make(chan DomainEvent, bufferSize),
		quit:      make(chan struct{}),
		logger:    logger,
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish publishes an event to all subscribers
func (b *bus) Publish(event DomainEvent) {
	select {
	case <-b.quit:
		b.logger.Debug("event bus closed, dropping event", "type", event.Type())
		return
	default:
	}

	b.logger.Debug("publishing event", "type", event.Type())

	select {
	case b.eventChan <- event:
	default:
		b.logger.Warn("event bus channel full, dropping event", "type", event.Type())
	}
}

// Subscribe subscribes to events of a specific type.
// Returns an unsubscribe function
func (b *bus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close stops the dispatcher and waits for running handlers
func (b *bus) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
		b.wg.Wait()
		b.running.Wait()
	})
}

// dispatch handles event distribution to subscribers
func (b *bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.deliver(event)

		case <-b.quit:
			// deliver what was queued before Close
			for {
				select {
				case event := <-b.eventChan:
					b.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (b *bus) deliver(event DomainEvent) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type()]))
	copy(subs, b.handlers[event.Type()])
	b.mu.RUnlock()

	for _, s := range subs {
		b.running.Add(1)
		// Call handler in a goroutine to avoid blocking
		go func(h EventHandler, eventType EventType) {
			defer b.running.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", "type", eventType, "panic", r)
					b.logger.Debug("event handler stack", "stack", string(debug.Stack()))
				}
			}()
			h(event)
		}(s.handler, event.Type())
	}
}
