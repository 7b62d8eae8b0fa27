package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"estategate/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates the configuration could not be read, parsed or validated.
	ExitCodeConfig = 2
)

// rootCmd represents the base command for the estategate application.
var rootCmd = &cobra.Command{
	Use:   "estategate",
	Short: "Session-aware OAuth2 gateway for the marketplace backend",
	Long: `estategate keeps one server-side session per browser, obtains and
refreshes identity-provider tokens on behalf of that session, and relays
requests to the downstream property and user services with a bearer token.

Concurrent token refreshes for the same session and registration are
collapsed into a single call to the identity provider.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "estategate version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRegistrationsCmd())
}
