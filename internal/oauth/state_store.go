package oauth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"estategate/internal/session"
	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

// DefaultStateExpiry bounds how long a user may take to log in.
const DefaultStateExpiry = 10 * time.Minute

const pendingAttributePrefix = "oauth2_pending:"

// PendingAttribute returns the session attribute holding the pending
// authorization for state.
func PendingAttribute(state string) string {
	return pendingAttributePrefix + state
}

// PendingAuthorization is an authorization-code flow that has been started
// but not completed. It links the callback back to the session that began it.
type PendingAuthorization struct {
	State          string    `json:"state"`
	SessionID      string    `json:"session_id"`
	RegistrationID string    `json:"registration_id"`
	CodeVerifier   string    `json:"code_verifier"`
	RedirectTo     string    `json:"redirect_to"`
	CreatedAt      time.Time `json:"created_at"`
}

// StateStore keeps pending authorizations in the session that started them,
// so any gateway replica sharing the session store can complete the login.
// Each state can be consumed exactly once.
type StateStore struct {
	store       session.Store
	stateExpiry time.Duration
	now         func() time.Time
}

// NewStateStore creates a state store backed by store.
func NewStateStore(store session.Store) *StateStore {
	return &StateStore{
		store:       store,
		stateExpiry: DefaultStateExpiry,
		now:         time.Now,
	}
}

// Begin records a new pending authorization on the session and returns it
// with a fresh random state. Expired pending authorizations of the same
// session are dropped.
func (ss *StateStore) Begin(ctx context.Context, sessionID, registrationID, codeVerifier, redirectTo string) (*PendingAuthorization, error) {
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, err
	}

	pending := &PendingAuthorization{
		State:          state,
		SessionID:      sessionID,
		RegistrationID: registrationID,
		CodeVerifier:   codeVerifier,
		RedirectTo:     redirectTo,
		CreatedAt:      ss.now(),
	}
	data, err := json.Marshal(pending)
	if err != nil {
		return nil, err
	}

	ss.prune(ctx, sessionID)

	if err := ss.store.SetAttribute(ctx, sessionID, PendingAttribute(state), string(data)); err != nil {
		return nil, err
	}

	logging.Debug("OAuth", "Started authorization for session=%s registration=%s",
		logging.TruncateSessionID(sessionID), registrationID)

	return pending, nil
}

// Consume returns and removes the pending authorization for state on the
// given session. It returns nil for unknown, already consumed or expired
// states, and for states begun by a different session.
func (ss *StateStore) Consume(ctx context.Context, sessionID, state string) *PendingAuthorization {
	if sessionID == "" || state == "" {
		return nil
	}

	data, ok, err := ss.store.TakeAttribute(ctx, sessionID, PendingAttribute(state))
	if err != nil {
		logging.Error("OAuth", err, "Failed to load authorization state for session=%s",
			logging.TruncateSessionID(sessionID))
		return nil
	}
	if !ok {
		logging.Warn("OAuth", "Unknown or replayed authorization state for session=%s",
			logging.TruncateSessionID(sessionID))
		return nil
	}

	var pending PendingAuthorization
	if err := json.Unmarshal([]byte(data), &pending); err != nil {
		logging.Warn("OAuth", "Discarding unreadable authorization state: %v", err)
		return nil
	}

	if age := ss.now().Sub(pending.CreatedAt); age > ss.stateExpiry {
		logging.Warn("OAuth", "Authorization state expired after %v", age)
		return nil
	}

	return &pending
}

// prune removes expired or unreadable pending authorizations from the session.
func (ss *StateStore) prune(ctx context.Context, sessionID string) {
	s, err := ss.store.Get(ctx, sessionID)
	if err != nil {
		return
	}

	now := ss.now()
	for name, value := range s.Attributes {
		if !strings.HasPrefix(name, pendingAttributePrefix) {
			continue
		}
		var pending PendingAuthorization
		if json.Unmarshal([]byte(value), &pending) == nil && now.Sub(pending.CreatedAt) <= ss.stateExpiry {
			continue
		}
		if err := ss.store.RemoveAttribute(ctx, sessionID, name); err != nil {
			logging.Warn("OAuth", "Failed to drop expired authorization state: %v", err)
		}
	}
}
