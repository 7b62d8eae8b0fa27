package config

import (
	"strconv"
	"strings"
	"time"

	"estategate/pkg/oauth"
)

// GatewayConfig is the top-level configuration structure for estategate.
type GatewayConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Routes  []RouteConfig `yaml:"routes,omitempty"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig defines the HTTP listener and public identity of the gateway.
type ServerConfig struct {
	Host            string        `yaml:"host,omitempty"`            // Host to bind to (default: localhost)
	Port            int           `yaml:"port,omitempty"`            // Port to listen on (default: 8080)
	PublicURL       string        `yaml:"publicUrl,omitempty"`       // Externally visible base URL, used for OAuth redirects
	CookieName      string        `yaml:"cookieName,omitempty"`      // Session cookie name
	CookieSecure    bool          `yaml:"cookieSecure,omitempty"`    // Force the Secure cookie flag behind TLS-terminating proxies
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"` // Grace period for in-flight requests on shutdown
}

// Address returns host:port for the listener.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Store string        `yaml:"store,omitempty"` // "memory" or "redis"
	TTL   time.Duration `yaml:"ttl,omitempty"`   // Idle timeout
	Redis RedisConfig   `yaml:"redis,omitempty"`
}

// RedisConfig holds the connection settings for the redis session store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// OAuthConfig lists the identity-provider client registrations.
type OAuthConfig struct {
	DefaultRegistration string               `yaml:"defaultRegistration,omitempty"`
	ClockSkew           time.Duration        `yaml:"clockSkew,omitempty"` // Tokens expiring within this window are refreshed early
	Registrations       []RegistrationConfig `yaml:"registrations,omitempty"`
}

// RegistrationConfig is one OAuth client registration.
type RegistrationConfig struct {
	ID           string   `yaml:"id"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	AuthURL      string   `yaml:"authUrl,omitempty"`
	TokenURL     string   `yaml:"tokenUrl"`
	RedirectURL  string   `yaml:"redirectUrl,omitempty"` // Derived from server.publicUrl when empty
	Scopes       []string `yaml:"scopes,omitempty"`
	GrantType    string   `yaml:"grantType,omitempty"` // "authorization_code" (default) or "client_credentials"
}

// RouteConfig relays requests under Prefix to Upstream with a bearer token
// for Registration.
type RouteConfig struct {
	Prefix       string `yaml:"prefix"`
	Upstream     string `yaml:"upstream"`
	Registration string `yaml:"registration,omitempty"` // Empty means the default registration
	StripPrefix  bool   `yaml:"stripPrefix,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig controls log verbosity and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// CallbackPath returns the redirect path for a registration.
func CallbackPath(registrationID string) string {
	return DefaultCallbackPathPrefix + registrationID
}

// Registrations converts the configured registrations into oauth.Registration
// values, deriving redirect URLs from the public URL where none is set.
func (c GatewayConfig) Registrations() []oauth.Registration {
	publicURL := strings.TrimSuffix(c.Server.PublicURL, "/")

	out := make([]oauth.Registration, 0, len(c.OAuth.Registrations))
	for _, r := range c.OAuth.Registrations {
		grant := oauth.GrantType(r.GrantType)
		if grant == "" {
			grant = oauth.GrantAuthorizationCode
		}
		redirect := r.RedirectURL
		if redirect == "" && grant == oauth.GrantAuthorizationCode {
			redirect = publicURL + CallbackPath(r.ID)
		}
		out = append(out, oauth.Registration{
			ID:           r.ID,
			ClientID:     r.ClientID,
			ClientSecret: r.ClientSecret,
			AuthURL:      r.AuthURL,
			TokenURL:     r.TokenURL,
			RedirectURL:  redirect,
			Scopes:       append([]string(nil), r.Scopes...),
			GrantType:    grant,
		})
	}
	return out
}
