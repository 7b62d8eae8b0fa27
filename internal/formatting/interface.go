package formatting

import (
	"fmt"
	"io"
	"strings"

	"estategate/pkg/oauth"
)

// OutputFormat represents the different output formats available
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures formatting behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// RegistrationView is the printable form of a client registration. Client
// secrets are reduced to whether one is configured.
type RegistrationView struct {
	ID          string   `json:"id" yaml:"id"`
	GrantType   string   `json:"grantType" yaml:"grantType"`
	ClientID    string   `json:"clientId" yaml:"clientId"`
	HasSecret   bool     `json:"hasSecret" yaml:"hasSecret"`
	TokenURL    string   `json:"tokenUrl" yaml:"tokenUrl"`
	RedirectURL string   `json:"redirectUrl,omitempty" yaml:"redirectUrl,omitempty"`
	Scopes      []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	IsDefault   bool     `json:"default" yaml:"default"`
}

// NewRegistrationViews converts registrations for display.
func NewRegistrationViews(regs []oauth.Registration, defaultID string) []RegistrationView {
	views := make([]RegistrationView, 0, len(regs))
	for _, r := range regs {
		views = append(views, RegistrationView{
			ID:          r.ID,
			GrantType:   string(r.GrantType),
			ClientID:    r.ClientID,
			HasSecret:   r.ClientSecret != "",
			TokenURL:    r.TokenURL,
			RedirectURL: r.RedirectURL,
			Scopes:      r.Scopes,
			IsDefault:   r.ID == defaultID,
		})
	}
	return views
}

// Formatter writes registrations in one output format.
type Formatter interface {
	FormatRegistrations(w io.Writer, views []RegistrationView) error
}

// NewFormatter returns the formatter for options.Format.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
