package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// addErr appends err when it is a ValidationError, ignoring nil.
func (ve *ValidationErrors) addErr(err error) {
	if err == nil {
		return
	}
	if v, ok := err.(ValidationError); ok {
		*ve = append(*ve, v)
		return
	}
	ve.Add("", err.Error())
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks that value is one of the allowed values.
func ValidateOneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateAbsoluteURL checks that value parses as an absolute http(s) URL.
func ValidateAbsoluteURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be an absolute http(s) URL",
		}
	}
	return nil
}

// Validate checks the whole configuration and returns every problem found.
func (c GatewayConfig) Validate() error {
	var errs ValidationErrors

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	errs.addErr(ValidateAbsoluteURL("server.publicUrl", c.Server.PublicURL))
	if c.Server.ShutdownTimeout < 0 {
		errs.Add("server.shutdownTimeout", "must not be negative", c.Server.ShutdownTimeout)
	}

	errs.addErr(ValidateOneOf("session.store", c.Session.Store, []string{SessionStoreMemory, SessionStoreRedis}))
	if c.Session.TTL <= 0 {
		errs.Add("session.ttl", "must be positive", c.Session.TTL)
	}
	if c.Session.Store == SessionStoreRedis {
		errs.addErr(ValidateRequired("session.redis.addr", c.Session.Redis.Addr, "redis session store"))
	}

	if c.OAuth.ClockSkew < 0 {
		errs.Add("oauth.clockSkew", "must not be negative", c.OAuth.ClockSkew)
	}

	ids := make(map[string]bool, len(c.OAuth.Registrations))
	for i, r := range c.OAuth.Registrations {
		prefix := fmt.Sprintf("oauth.registrations[%d]", i)
		if err := ValidateRequired(prefix+".id", r.ID, "registration"); err != nil {
			errs.addErr(err)
		} else if strings.Contains(r.ID, ":") {
			errs.Add(prefix+".id", "must not contain ':'", r.ID)
		} else if ids[r.ID] {
			errs.Add(prefix+".id", fmt.Sprintf("duplicate registration id '%s'", r.ID), r.ID)
		}
		ids[r.ID] = true

		errs.addErr(ValidateRequired(prefix+".clientId", r.ClientID, "registration"))
		errs.addErr(ValidateAbsoluteURL(prefix+".tokenUrl", r.TokenURL))

		grant := r.GrantType
		if grant == "" {
			grant = "authorization_code"
		}
		errs.addErr(ValidateOneOf(prefix+".grantType", grant, []string{"authorization_code", "client_credentials"}))
		if grant == "authorization_code" {
			errs.addErr(ValidateAbsoluteURL(prefix+".authUrl", r.AuthURL))
		}
	}

	if def := c.OAuth.DefaultRegistration; def != "" && !ids[def] {
		errs.Add("oauth.defaultRegistration", fmt.Sprintf("unknown registration '%s'", def), def)
	}

	prefixes := make(map[string]bool, len(c.Routes))
	for i, route := range c.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if !strings.HasPrefix(route.Prefix, "/") {
			errs.Add(field+".prefix", "must start with '/'", route.Prefix)
		} else if prefixes[route.Prefix] {
			errs.Add(field+".prefix", fmt.Sprintf("duplicate route prefix '%s'", route.Prefix), route.Prefix)
		}
		prefixes[route.Prefix] = true

		errs.addErr(ValidateAbsoluteURL(field+".upstream", route.Upstream))
		if route.Registration != "" && !ids[route.Registration] {
			errs.Add(field+".registration", fmt.Sprintf("unknown registration '%s'", route.Registration), route.Registration)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs.Add("metrics.path", "must start with '/'", c.Metrics.Path)
	}

	errs.addErr(ValidateOneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "error"}))
	errs.addErr(ValidateOneOf("logging.format", strings.ToLower(c.Logging.Format), []string{"text", "json"}))

	if errs.HasErrors() {
		return errs
	}
	return nil
}
