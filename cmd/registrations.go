package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"estategate/internal/config"
	"estategate/internal/formatting"
	"estategate/internal/oauth"
)

// newRegistrationsCmd lists the client registrations from the configuration.
func newRegistrationsCmd() *cobra.Command {
	var (
		configPath string
		output     string
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "List configured OAuth2 client registrations",
		Long: `Loads config.yaml and prints the client registrations the gateway
would serve. Client secrets are never printed; the SECRET column only
shows whether one is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := formatting.ParseFormat(output)
			if err != nil {
				return err
			}

			if configPath == "" {
				configPath, err = config.GetDefaultConfigPath()
				if err != nil {
					return fmt.Errorf("failed to resolve configuration directory: %w", err)
				}
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			registry := oauth.NewRegistry(cfg.Registrations(), cfg.OAuth.DefaultRegistration)
			views := formatting.NewRegistrationViews(registry.List(), registry.DefaultID())

			formatter := formatting.NewFormatter(formatting.Options{Format: format, Color: !noColor})
			return formatter.FormatRegistrations(cmd.OutOrStdout(), views)
		},
	}

	cmd.Flags().StringVar(&configPath, "config-path", "", "Configuration directory containing config.yaml")
	cmd.Flags().StringVarP(&output, "output", "o", string(formatting.FormatTable), "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored table output")
	return cmd
}
