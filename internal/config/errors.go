package config

import "fmt"

const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError reports why a configuration file could not be used.
type ConfigurationError struct {
	FilePath  string // Full path to the file that caused the error
	ErrorType string // io, parse or validation
	Message   string // Human-readable summary
	Err       error  // Underlying cause
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	if ce.Err == nil {
		return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FilePath, ce.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %v", ce.ErrorType, ce.FilePath, ce.Message, ce.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (ce *ConfigurationError) Unwrap() error {
	return ce.Err
}
