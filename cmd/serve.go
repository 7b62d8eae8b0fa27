package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"estategate/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
// The directory should contain config.yaml.
var serveConfigPath string

// serveWatch reloads registrations and routes when config.yaml changes.
var serveWatch bool

// serveCmd starts the gateway.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the estategate gateway.",
	Long: `Starts the gateway HTTP server.

The server exposes:
  /oauth2/authorization/{registration}   start a browser login
  /login/oauth2/code/{registration}      identity-provider callback
  /api/session/token/{registration}      token metadata for the session
  /logout                                end the session (POST)
  /healthz                               liveness and session-store health
  /metrics                               Prometheus metrics (when enabled)

and relays every configured route prefix to its upstream with a bearer
token for the route's registration.

Configuration:
  estategate loads config.yaml from ~/.config/estategate unless
  --config-path points at another directory. With --watch, changes to the
  file are applied without a restart; invalid edits are logged and skipped.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath, serveWatch)
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory containing config.yaml")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload configuration when config.yaml changes")
}
