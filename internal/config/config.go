package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"evmsniper/internal/eventbus"
)

// AppName names the config and data directories
const AppName = "evmsniper"

// Config represents the application configuration
type Config struct {
	Version  int             `toml:"version"`
	DataFile string          `toml:"data_file"`
	LogFile  string          `toml:"log_file"`
	LogLevel string          `toml:"log_level"`
	UI       UISettings      `toml:"ui"`
	RPC      RPCSettings     `toml:"rpc"`
	Session  SessionSettings `toml:"session"`
}

// UISettings represents UI-related configuration
type UISettings struct {
	FetchBeforeShow bool     `toml:"fetch_before_show"`
	SpinnerInterval Duration `toml:"spinner_interval"`
	ListThrottle    Duration `toml:"list_throttle"`
}

// RPCSettings controls node access
type RPCSettings struct {
	Timeout    Duration `toml:"timeout"`
	Retries    int      `toml:"retries"`
	RetryDelay Duration `toml:"retry_delay"`
	Workers    int      `toml:"workers"`
}

// SessionSettings remembers the last chain and wallet
type SessionSettings struct {
	Chain  string `toml:"chain"`
	Wallet string `toml:"wallet"`
}

// Duration is a time.Duration written as text ("1.5s")
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// ConfigService handles configuration management
type ConfigService interface {
	Load() (*Config, error)
	Save(config *Config) error
	LoadFromPath(path string) (*Config, error)
	SaveToPath(config *Config, path string) error
	Path() string
}

// configService is the concrete implementation
type configService struct {
	bus      eventbus.EventBus
	filePath string
}

// DefaultDir returns the per-user config directory
func DefaultDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			configDir = "."
		}
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, AppName)
}

// NewConfigService creates a config service for path; an empty path uses
// config.toml in DefaultDir.
func NewConfigService(path string) ConfigService {
	if path == "" {
		path = filepath.Join(DefaultDir(), "config.toml")
	}
	return &configService{filePath: path}
}

// NewConfigServiceWithBus creates a config service with event bus support
func NewConfigServiceWithBus(path string, bus eventbus.EventBus) ConfigService {
	cs := NewConfigService(path).(*configService)
	cs.bus = bus
	return cs
}

// Path returns the file the service reads and writes
func (cs *configService) Path() string { return cs.filePath }

// Load loads the configuration from file, falling back to defaults when it
// does not exist yet
func (cs *configService) Load() (*Config, error) {
	cfg, err := cs.LoadFromPath(cs.filePath)
	isDefault := false
	if errors.Is(err, os.ErrNotExist) {
		cfg, err, isDefault = DefaultConfig(), nil, true
	}
	if err != nil {
		return nil, err
	}

	if cs.bus != nil {
		cs.bus.Publish(eventbus.ConfigLoadedEvent{
			Path:    cs.filePath,
			Chain:   cfg.Session.Chain,
			Wallet:  cfg.Session.Wallet,
			Default: isDefault,
		})
	}
	return cfg, nil
}

// Save saves the configuration to file
func (cs *configService) Save(config *Config) error {
	if err := cs.SaveToPath(config, cs.filePath); err != nil {
		return err
	}
	if cs.bus != nil {
		cs.bus.Publish(eventbus.ConfigSavedEvent{Path: cs.filePath})
	}
	return nil
}

// LoadFromPath loads configuration from a specific path. Fields missing from
// the file keep their defaults.
func (cs *configService) LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// SaveToPath saves configuration to a specific path
func (cs *configService) SaveToPath(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Version:  1,
		DataFile: filepath.Join(dir, "data.yaml"),
		LogFile:  filepath.Join(dir, "evmsniper.log"),
		LogLevel: "info",
		UI: UISettings{
			FetchBeforeShow: false,
			SpinnerInterval: Duration{80 * time.Millisecond},
			ListThrottle:    Duration{30 * time.Millisecond},
		},
		RPC: RPCSettings{
			Timeout:    Duration{10 * time.Second},
			Retries:    3,
			RetryDelay: Duration{2 * time.Second},
			Workers:    4,
		},
	}
}

// normalize replaces unusable values with defaults
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.UI.SpinnerInterval.Duration <= 0 {
		c.UI.SpinnerInterval = def.UI.SpinnerInterval
	}
	if c.RPC.Timeout.Duration <= 0 {
		c.RPC.Timeout = def.RPC.Timeout
	}
	if c.RPC.Workers <= 0 {
		c.RPC.Workers = def.RPC.Workers
	}
	if c.RPC.Retries < 0 {
		c.RPC.Retries = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}
