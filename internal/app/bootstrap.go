package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"estategate/internal/config"
	"estategate/internal/server"
	"estategate/pkg/logging"
)

// Application bootstraps and runs the gateway.
//
// Initialization happens in two phases:
//  1. Bootstrap: initialize logging, load configuration, build the server
//  2. Execution: serve until interrupted, reloading registrations on change
type Application struct {
	config *Config
	server *server.Server
}

// NewApplication loads configuration and builds the gateway. It returns an
// error wrapping *config.ConfigurationError when the configuration is unusable.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, cfg.LogOutput)

	if cfg.ConfigPath == "" {
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
		cfg.ConfigPath = path
	}

	gatewayCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Gateway = &gatewayCfg

	if !cfg.Debug {
		appLogLevel = logging.ParseLevel(gatewayCfg.Logging.Level)
	}
	logging.Init(appLogLevel, logging.Format(gatewayCfg.Logging.Format), cfg.LogOutput)

	srv, err := server.New(gatewayCfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize gateway")
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}

	return &Application{
		config: cfg,
		server: srv,
	}, nil
}

// Run serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.server.Close()

	if a.config.Watch {
		watcher := config.NewWatcher(a.config.ConfigPath, 0, a.server.Reload)
		if err := watcher.Start(ctx); err != nil {
			logging.Warn("Bootstrap", "Configuration reload disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	logging.Info("Bootstrap", "estategate listening on %s (public URL %s)",
		a.config.Gateway.Server.Address(), a.config.Gateway.Server.PublicURL)
	return a.server.Run(ctx)
}
