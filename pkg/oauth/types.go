package oauth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the default margin when checking token expiry.
// This accounts for clock skew between the gateway and the identity provider.
const DefaultExpiryMargin = 60 * time.Second

// DefaultRegistrationKey is used in place of an empty registration id when
// requests are grouped, so that requests without a registration id share
// one slot per session.
const DefaultRegistrationKey = "default"

// GrantType is the OAuth 2.0 grant a registration is configured for.
type GrantType string

const (
	// GrantAuthorizationCode requires an interactive browser login first;
	// afterwards the stored refresh token keeps the client authorized.
	GrantAuthorizationCode GrantType = "authorization_code"

	// GrantClientCredentials obtains tokens without user interaction.
	GrantClientCredentials GrantType = "client_credentials"
)

// Registration is one configured identity-provider client (e.g. "keycloak").
type Registration struct {
	ID           string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	GrantType    GrantType
}

// OAuth2Config converts the registration into a golang.org/x/oauth2 config.
// Client credentials are sent with HTTP basic auth (client_secret_basic).
func (r *Registration) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		RedirectURL:  r.RedirectURL,
		Scopes:       r.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   r.AuthURL,
			TokenURL:  r.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthorizationRequest describes a caller that needs a valid credential
// for one registration.
type AuthorizationRequest struct {
	// RegistrationID selects the identity-provider client configuration.
	// Empty means the configured default registration.
	RegistrationID string

	// SessionID identifies the caller's session. Empty means the session is
	// resolved from the request context, if any.
	SessionID string

	// Principal is the authenticated user name, passed through untouched.
	Principal string

	// Attributes carries additional context for the Authorizer.
	Attributes map[string]string
}

// RegistrationKey returns the registration id, or DefaultRegistrationKey when unset.
func (r *AuthorizationRequest) RegistrationKey() string {
	if r == nil || r.RegistrationID == "" {
		return DefaultRegistrationKey
	}
	return r.RegistrationID
}

// Token represents an OAuth access token with associated metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the expiration timestamp.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`
}

// IsExpired checks if the token has expired or will within DefaultExpiryMargin.
func (t *Token) IsExpired() bool {
	return t.IsExpiredWithMargin(DefaultExpiryMargin)
}

// IsExpiredWithMargin checks if the token has expired or will expire within the margin.
func (t *Token) IsExpiredWithMargin(margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false // Tokens without expiration don't expire
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token for use with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// TokenFromOAuth2 converts an oauth2.Token returned by a token endpoint.
// A missing refresh token is taken from previous, since identity providers
// may omit it when it was not rotated.
func TokenFromOAuth2(tok *oauth2.Token, previous *Token) *Token {
	if tok == nil {
		return nil
	}

	out := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}

	if previous != nil {
		if out.RefreshToken == "" {
			out.RefreshToken = previous.RefreshToken
		}
		if out.Scope == "" {
			out.Scope = previous.Scope
		}
		if out.IDToken == "" {
			out.IDToken = previous.IDToken
		}
	}

	return out
}

// AuthorizedClient is the credential bundle for one (principal, registration).
type AuthorizedClient struct {
	RegistrationID string `json:"registration_id"`
	Principal      string `json:"principal,omitempty"`
	Token          *Token `json:"token"`
}

// AccessToken returns the bearer token, or "" when the client holds none.
func (c *AuthorizedClient) AccessToken() string {
	if c == nil || c.Token == nil {
		return ""
	}
	return c.Token.AccessToken
}

// Authorizer obtains an authorized client for a request, performing the
// authorization-code or refresh-token exchange as needed.
type Authorizer interface {
	Authorize(ctx context.Context, req *AuthorizationRequest) (*AuthorizedClient, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, req *AuthorizationRequest) (*AuthorizedClient, error)

// Authorize calls f(ctx, req).
func (f AuthorizerFunc) Authorize(ctx context.Context, req *AuthorizationRequest) (*AuthorizedClient, error) {
	return f(ctx, req)
}
