package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"estategate/internal/session"
	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

// clientAttributePrefix namespaces authorized clients in the session attribute bag.
const clientAttributePrefix = "oauth2_client:"

// ClientAttribute returns the session attribute name holding the authorized
// client for a registration.
func ClientAttribute(registrationID string) string {
	return clientAttributePrefix + registrationID
}

// ClientRepository keeps authorized clients in the session they belong to.
// Each registration is stored under its own attribute, so concurrent updates
// for different registrations of one session never overwrite each other.
type ClientRepository struct {
	store session.Store
}

// NewClientRepository creates a repository backed by store.
func NewClientRepository(store session.Store) *ClientRepository {
	return &ClientRepository{store: store}
}

// Load returns the stored client, or nil when the session holds none.
func (cr *ClientRepository) Load(ctx context.Context, sessionID, registrationID string) (*oauth.AuthorizedClient, error) {
	s, err := cr.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	raw, ok := s.Attribute(ClientAttribute(registrationID))
	if !ok {
		return nil, nil
	}

	var client oauth.AuthorizedClient
	if err := json.Unmarshal([]byte(raw), &client); err != nil {
		logging.Warn("OAuth", "Discarding unreadable client for session=%s registration=%s: %v",
			logging.TruncateSessionID(sessionID), registrationID, err)
		return nil, nil
	}
	return &client, nil
}

// Save stores client in the session. A changed access token is recorded as
// an audit event.
func (cr *ClientRepository) Save(ctx context.Context, sessionID string, client *oauth.AuthorizedClient) error {
	if client == nil {
		return errors.New("authorized client is nil")
	}

	previous, err := cr.Load(ctx, sessionID, client.RegistrationID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to encode authorized client: %w", err)
	}
	if err := cr.store.SetAttribute(ctx, sessionID, ClientAttribute(client.RegistrationID), string(data)); err != nil {
		return fmt.Errorf("failed to store authorized client: %w", err)
	}

	if previous.AccessToken() != client.AccessToken() {
		logging.Audit(logging.AuditEvent{
			Action:       "token_changed",
			Outcome:      "success",
			SessionID:    logging.TruncateSessionID(sessionID),
			Registration: client.RegistrationID,
		})
	}
	return nil
}

// Remove deletes the stored client for a registration.
func (cr *ClientRepository) Remove(ctx context.Context, sessionID, registrationID string) error {
	err := cr.store.RemoveAttribute(ctx, sessionID, ClientAttribute(registrationID))
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	return nil
}
