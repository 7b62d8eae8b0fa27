package config

import "time"

const (
	// DefaultPort is the default listener port.
	DefaultPort = 8080

	// DefaultLoginPathPrefix starts the authorization-code flow for a registration.
	DefaultLoginPathPrefix = "/oauth2/authorization/"

	// DefaultCallbackPathPrefix receives the identity provider's redirect.
	DefaultCallbackPathPrefix = "/login/oauth2/code/"

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// SessionStoreMemory keeps sessions in process memory.
	SessionStoreMemory = "memory"

	// SessionStoreRedis keeps sessions in Redis.
	SessionStoreRedis = "redis"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() GatewayConfig {
	return GatewayConfig{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            DefaultPort,
			PublicURL:       "http://localhost:8080",
			CookieName:      "ESTATEGATE_SESSION",
			ShutdownTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			Store: SessionStoreMemory,
			TTL:   30 * time.Minute,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "estategate",
			},
		},
		OAuth: OAuthConfig{
			ClockSkew: 60 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    DefaultMetricsPath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
