package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() GatewayConfig {
	cfg := GetDefaultConfig()
	cfg.OAuth.DefaultRegistration = "keycloak"
	cfg.OAuth.Registrations = []RegistrationConfig{
		{
			ID:       "keycloak",
			ClientID: "web",
			AuthURL:  "https://idp.example.com/auth",
			TokenURL: "https://idp.example.com/token",
		},
		{
			ID:        "service",
			ClientID:  "svc",
			TokenURL:  "https://idp.example.com/token",
			GrantType: "client_credentials",
		},
	}
	cfg.Routes = []RouteConfig{
		{Prefix: "/api/properties/", Upstream: "http://properties:8081"},
		{Prefix: "/api/users/", Upstream: "http://users:8082", Registration: "service"},
	}
	return cfg
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %v", err)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	return fields
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
		field  string
	}{
		{"port out of range", func(c *GatewayConfig) { c.Server.Port = 70000 }, "server.port"},
		{"relative public url", func(c *GatewayConfig) { c.Server.PublicURL = "/gateway" }, "server.publicUrl"},
		{"unknown store", func(c *GatewayConfig) { c.Session.Store = "etcd" }, "session.store"},
		{"zero ttl", func(c *GatewayConfig) { c.Session.TTL = 0 }, "session.ttl"},
		{"redis without addr", func(c *GatewayConfig) {
			c.Session.Store = SessionStoreRedis
			c.Session.Redis.Addr = ""
		}, "session.redis.addr"},
		{"negative clock skew", func(c *GatewayConfig) { c.OAuth.ClockSkew = -1 }, "oauth.clockSkew"},
		{"registration without id", func(c *GatewayConfig) { c.OAuth.Registrations[1].ID = "" }, "oauth.registrations[1].id"},
		{"duplicate registration", func(c *GatewayConfig) { c.OAuth.Registrations[1].ID = "keycloak" }, "oauth.registrations[1].id"},
		{"registration id with colon", func(c *GatewayConfig) {
			c.OAuth.Registrations[1].ID = "svc:internal"
			c.Routes[1].Registration = "svc:internal"
		}, "oauth.registrations[1].id"},
		{"missing client id", func(c *GatewayConfig) { c.OAuth.Registrations[0].ClientID = "" }, "oauth.registrations[0].clientId"},
		{"missing token url", func(c *GatewayConfig) { c.OAuth.Registrations[0].TokenURL = "" }, "oauth.registrations[0].tokenUrl"},
		{"authorization code without auth url", func(c *GatewayConfig) { c.OAuth.Registrations[0].AuthURL = "" }, "oauth.registrations[0].authUrl"},
		{"unknown grant", func(c *GatewayConfig) { c.OAuth.Registrations[1].GrantType = "password" }, "oauth.registrations[1].grantType"},
		{"unknown default registration", func(c *GatewayConfig) { c.OAuth.DefaultRegistration = "okta" }, "oauth.defaultRegistration"},
		{"route prefix without slash", func(c *GatewayConfig) { c.Routes[0].Prefix = "api" }, "routes[0].prefix"},
		{"duplicate route prefix", func(c *GatewayConfig) { c.Routes[1].Prefix = "/api/properties/" }, "routes[1].prefix"},
		{"route upstream not a url", func(c *GatewayConfig) { c.Routes[0].Upstream = "properties" }, "routes[0].upstream"},
		{"route unknown registration", func(c *GatewayConfig) { c.Routes[0].Registration = "okta" }, "routes[0].registration"},
		{"metrics path", func(c *GatewayConfig) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, "metrics.path"},
		{"log level", func(c *GatewayConfig) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *GatewayConfig) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, []string{tc.field}, fieldsOf(t, err))
		})
	}
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.Session.Store = "etcd"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, []string{"server.port", "session.store", "logging.level"}, fieldsOf(t, err))
	assert.Contains(t, err.Error(), "validation failed:")
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "field 'x': bad", ValidationError{Field: "x", Message: "bad"}.Error())
	assert.Equal(t, "bad", ValidationError{Message: "bad"}.Error())
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}
