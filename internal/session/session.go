package session

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// Session is the server-side state associated with one browser session.
// Attributes is a free-form key/value bag; the OAuth layer keeps authorized
// clients in it.
type Session struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Attribute returns the named attribute and whether it was set.
func (s *Session) Attribute(name string) (string, bool) {
	if s == nil || s.Attributes == nil {
		return "", false
	}
	v, ok := s.Attributes[name]
	return v, ok
}

// Clone returns a deep copy so callers can't mutate store-owned state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Attributes = maps.Clone(s.Attributes)
	return &out
}

// Store persists sessions. Attribute updates are applied individually so
// concurrent requests of the same session don't overwrite each other.
type Store interface {
	// Create starts a new session with a random id.
	Create(ctx context.Context) (*Session, error)

	// Get returns the session, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch records access and extends the session's lifetime.
	Touch(ctx context.Context, id string) error

	// SetAttribute stores one attribute. It fails with ErrSessionNotFound
	// rather than resurrecting a deleted session.
	SetAttribute(ctx context.Context, id, name, value string) error

	// RemoveAttribute deletes one attribute; removing a missing one is not an error.
	RemoveAttribute(ctx context.Context, id, name string) error

	// TakeAttribute atomically reads and deletes one attribute. Of several
	// concurrent takers at most one sees ok == true.
	TakeAttribute(ctx context.Context, id, name string) (value string, ok bool, err error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastAccessed: now,
		Attributes:   make(map[string]string),
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// IDFromContext returns the id of the session carried by ctx.
func IDFromContext(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok || s.ID == "" {
		return "", false
	}
	return s.ID, true
}
