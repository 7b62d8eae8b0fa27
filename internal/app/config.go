package app

import (
	"io"

	"estategate/internal/config"
)

// Config holds the command-line settings for one gateway run.
type Config struct {
	// Debug forces debug logging regardless of the configuration file.
	Debug bool

	// ConfigPath is the directory holding config.yaml. Empty means the
	// default user configuration directory.
	ConfigPath string

	// Watch reloads registrations when config.yaml changes.
	Watch bool

	// LogOutput receives log output; nil means stderr.
	LogOutput io.Writer

	// Gateway is the loaded configuration, set during bootstrap.
	Gateway *config.GatewayConfig
}

// NewConfig creates a new application configuration.
func NewConfig(debug bool, configPath string, watch bool) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Watch:      watch,
	}
}
