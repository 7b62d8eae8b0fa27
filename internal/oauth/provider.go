package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"estategate/internal/session"
	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

// Provider is the Authorizer that talks to identity providers. It returns
// the session's stored client while its access token is usable, refreshes it
// otherwise, and obtains client_credentials tokens on demand.
//
// Provider does not deduplicate; wrap it in a refresh.Coordinator.
type Provider struct {
	registry   *Registry
	clients    *ClientRepository
	clockSkew  time.Duration
	httpClient *http.Client
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithClockSkew treats tokens expiring within skew as already expired.
func WithClockSkew(skew time.Duration) ProviderOption {
	return func(p *Provider) { p.clockSkew = skew }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.httpClient = c }
}

// NewProvider creates a Provider.
func NewProvider(registry *Registry, clients *ClientRepository, opts ...ProviderOption) *Provider {
	p := &Provider{
		registry:  registry,
		clients:   clients,
		clockSkew: oauth.DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authorize implements oauth.Authorizer.
func (p *Provider) Authorize(ctx context.Context, req *oauth.AuthorizationRequest) (*oauth.AuthorizedClient, error) {
	if req == nil {
		req = &oauth.AuthorizationRequest{}
	}

	reg, err := p.registry.Get(req.RegistrationID)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID, _ = session.IDFromContext(ctx)
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	var stored *oauth.AuthorizedClient
	if sessionID != "" {
		stored, err = p.clients.Load(ctx, sessionID, reg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load authorized client: %w", err)
		}
		if stored != nil && !stored.Token.IsExpiredWithMargin(p.clockSkew) {
			return stored, nil
		}
	}

	switch reg.GrantType {
	case oauth.GrantClientCredentials:
		return p.clientCredentials(ctx, reg, sessionID, req.Principal)
	default:
		if stored == nil {
			return nil, oauth.ErrAuthorizationRequired
		}
		return p.refresh(ctx, reg, sessionID, stored)
	}
}

func (p *Provider) refresh(ctx context.Context, reg *oauth.Registration, sessionID string, stored *oauth.AuthorizedClient) (*oauth.AuthorizedClient, error) {
	if stored.Token == nil || stored.Token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %w", oauth.ErrAuthorizationRequired, oauth.ErrNoRefreshToken)
	}

	logging.Debug("OAuth", "Refreshing token for session=%s registration=%s",
		logging.TruncateSessionID(sessionID), reg.ID)

	// An empty access token forces the token source to use the refresh token.
	src := reg.OAuth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: stored.Token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		p.audit("token_refresh", "failure", sessionID, reg.ID, err)

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			if rmErr := p.clients.Remove(ctx, sessionID, reg.ID); rmErr != nil {
				logging.Warn("OAuth", "Failed to remove rejected client: %v", rmErr)
			}
			return nil, fmt.Errorf("%w: refresh token rejected: %w", oauth.ErrAuthorizationRequired, err)
		}
		return nil, fmt.Errorf("token refresh for %s failed: %w", reg.ID, err)
	}

	client := &oauth.AuthorizedClient{
		RegistrationID: reg.ID,
		Principal:      stored.Principal,
		Token:          oauth.TokenFromOAuth2(tok, stored.Token),
	}
	if err := p.clients.Save(ctx, sessionID, client); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session ended during refresh: %w", oauth.ErrAuthorizationRequired, err)
		}
		return nil, err
	}

	p.audit("token_refresh", "success", sessionID, reg.ID, nil)
	return client, nil
}

func (p *Provider) clientCredentials(ctx context.Context, reg *oauth.Registration, sessionID, principal string) (*oauth.AuthorizedClient, error) {
	cfg := clientcredentials.Config{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		TokenURL:     reg.TokenURL,
		Scopes:       reg.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		p.audit("client_credentials", "failure", sessionID, reg.ID, err)
		return nil, fmt.Errorf("client credentials grant for %s failed: %w", reg.ID, err)
	}

	client := &oauth.AuthorizedClient{
		RegistrationID: reg.ID,
		Principal:      principal,
		Token:          oauth.TokenFromOAuth2(tok, nil),
	}
	if sessionID != "" {
		if err := p.clients.Save(ctx, sessionID, client); err != nil {
			return nil, err
		}
	}

	p.audit("client_credentials", "success", sessionID, reg.ID, nil)
	return client, nil
}

func (p *Provider) audit(action, outcome, sessionID, registrationID string, err error) {
	event := logging.AuditEvent{
		Action:       action,
		Outcome:      outcome,
		SessionID:    logging.TruncateSessionID(sessionID),
		Registration: registrationID,
	}
	if err != nil {
		event.Error = err.Error()
	}
	logging.Audit(event)
}
