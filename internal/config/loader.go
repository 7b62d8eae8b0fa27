package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"estategate/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/estategate"
	configFileName = "config.yaml"
)

// osUserHomeDir is swapped out in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/estategate.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}

	return filepath.Join(homeDir, userConfigDir), nil
}

// ConfigFilePath returns the path of config.yaml inside configPath.
func ConfigFilePath(configPath string) string {
	return filepath.Join(configPath, configFileName)
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result. A missing file yields the defaults.
func LoadConfig(configPath string) (GatewayConfig, error) {
	configFilePath := ConfigFilePath(configPath)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return GatewayConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeIO,
			Message:   "failed to read configuration file",
			Err:       err,
		}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return GatewayConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeParse,
			Message:   "malformed YAML",
			Err:       err,
		}
	}

	if err := config.Validate(); err != nil {
		return GatewayConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeValidation,
			Message:   "invalid configuration",
			Err:       err,
		}
	}

	logging.Info("Config", "Loaded configuration from %s (%d registrations, %d routes)",
		configFilePath, len(config.OAuth.Registrations), len(config.Routes))
	return config, nil
}
