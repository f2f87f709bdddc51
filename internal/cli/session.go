package cli

import (
	"sync"

	"github.com/charmbracelet/log"

	"evmsniper/internal/config"
	"evmsniper/internal/eventbus"
)

// Config keys carried by ConfigChanged events
const (
	keySessionChain  = "session.chain"
	keySessionWallet = "session.wallet"
)

// sessionSaver remembers the last chain and wallet in the config file
type sessionSaver struct {
	mu     sync.Mutex
	cfg    *config.Config
	svc    config.ConfigService
	logger *log.Logger
}

func newSessionSaver(cfg *config.Config, svc config.ConfigService, bus eventbus.EventBus, logger *log.Logger) *sessionSaver {
	s := &sessionSaver{cfg: cfg, svc: svc, logger: logger}

	bus.Subscribe(eventbus.EventChainSelected, func(e eventbus.DomainEvent) {
		if event, ok := e.(eventbus.ChainSelectedEvent); ok {
			bus.Publish(eventbus.ConfigChangedEvent{Key: keySessionChain, Value: event.Chain.Name})
		}
	})
	bus.Subscribe(eventbus.EventWalletSelected, func(e eventbus.DomainEvent) {
		if event, ok := e.(eventbus.WalletSelectedEvent); ok {
			bus.Publish(eventbus.ConfigChangedEvent{Key: keySessionWallet, Value: event.Wallet.Name})
		}
	})
	bus.Subscribe(eventbus.EventConfigChanged, func(e eventbus.DomainEvent) {
		if event, ok := e.(eventbus.ConfigChangedEvent); ok {
			s.apply(event)
		}
	})
	return s
}

func (s *sessionSaver) apply(event eventbus.ConfigChangedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Key {
	case keySessionChain:
		s.cfg.Session.Chain = event.Value
	case keySessionWallet:
		s.cfg.Session.Wallet = event.Value
	default:
		return
	}

	if err := s.svc.Save(s.cfg); err != nil {
		s.logger.Error("failed to save config", "err", err)
		return
	}
	s.logger.Debug("config saved", "path", s.svc.Path(), "key", event.Key)
}
