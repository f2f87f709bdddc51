// Package cli wires configuration, logging, storage and the terminal UI
// behind the evmsniper command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"evmsniper/internal/config"
	"evmsniper/internal/eventbus"
	"evmsniper/internal/logging"
	"evmsniper/internal/store"
	"evmsniper/internal/ui"
	"evmsniper/internal/ui/dashboard"
)

// Version is set at build time
var Version = "dev"

// sinkLines is how much log history the Logs pane and pager keep
const sinkLines = 1000

type options struct {
	configPath string
	dataPath   string
	logFile    string
	logLevel   string
}

// environment holds what commands reach outside the process for
type environment struct {
	dial dashboard.DialFunc
}

// Execute runs the command line
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return newRootCommand(&environment{dial: dashboard.Dial}).ExecuteContext(ctx)
}

func newRootCommand(env *environment) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "evmsniper",
		Short:        "Watch ERC-20 balances of your wallets across EVM chains",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts, env)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is "+config.DefaultDir()+"/config.toml)")
	flags.StringVar(&opts.dataPath, "data", "", "file storing chains, wallets and tokens")
	flags.StringVar(&opts.logFile, "log-file", "", "log file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newVersionCommand())
	root.AddCommand(newChainsCommand(opts))
	root.AddCommand(newCheckCommand(opts, env))
	return root
}

// app is everything a command needs once configuration is loaded
type app struct {
	cfg       *config.Config
	configSvc config.ConfigService
	bus       eventbus.EventBus
	store     *store.Store
	logger    *log.Logger
	sink      *logging.Sink
	closers   []io.Closer
}

func setup(opts *options) (*app, error) {
	sink := logging.NewSink(sinkLines)
	logger, err := logging.New(sink, "info")
	if err != nil {
		return nil, err
	}
	a := &app{sink: sink, logger: logger, bus: eventbus.New(logger)}

	a.configSvc = config.NewConfigServiceWithBus(opts.configPath, a.bus)
	a.cfg, err = a.configSvc.Load()
	if err != nil {
		a.Close()
		return nil, err
	}
	if _, statErr := os.Stat(a.configSvc.Path()); errors.Is(statErr, os.ErrNotExist) {
		if err := a.configSvc.Save(a.cfg); err != nil {
			logger.Warn("could not write default config", "path", a.configSvc.Path(), "err", err)
		}
	}

	if opts.dataPath != "" {
		a.cfg.DataFile = opts.dataPath
	}
	if opts.logFile != "" {
		a.cfg.LogFile = opts.logFile
	}
	if opts.logLevel != "" {
		a.cfg.LogLevel = opts.logLevel
	}

	level, err := log.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	if a.cfg.LogFile != "" {
		f, err := logging.OpenFile(a.cfg.LogFile)
		if err != nil {
			logger.Warn("logging to the screen only", "err", err)
		} else {
			a.closers = append(a.closers, f)
			logger.SetOutput(io.MultiWriter(sink, f))
		}
	}

	a.store, err = store.Open(a.cfg.DataFile, a.bus)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("loaded", "config", a.configSvc.Path(), "data", a.cfg.DataFile)
	return a, nil
}

// Close stops the event bus and closes the log file
func (a *app) Close() error {
	a.bus.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func runTUI(ctx context.Context, opts *options, env *environment) error {
	a, err := setup(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	newSessionSaver(a.cfg, a.configSvc, a.bus, a.logger)

	model := ui.NewModel(ui.Deps{
		Bus:    a.bus,
		Config: a.cfg,
		Store:  a.store,
		Logger: a.logger,
		Sink:   a.sink,
		Dial:   env.dial,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	// store changes and errors reach the UI as messages
	for _, t := range []eventbus.EventType{eventbus.EventTokenAdded, eventbus.EventTokenRemoved, eventbus.EventError} {
		a.bus.Subscribe(t, func(e eventbus.DomainEvent) {
			p.Send(ui.EventMsg{Event: e})
		})
	}

	a.logger.Info("starting", "version", Version)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
