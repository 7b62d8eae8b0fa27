package session

import (
	"context"
	"sync"
	"time"

	"estategate/pkg/logging"
)

// MemoryStore provides thread-safe in-memory session storage.
// Sessions are lost on restart; use RedisStore when running more than one
// gateway replica.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time

	// Cleanup configuration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates a new in-memory session store.
// It starts a background goroutine for periodic cleanup of expired sessions.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ms := &MemoryStore{
		sessions:        make(map[string]*Session),
		ttl:             ttl,
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go ms.cleanupLoop()

	return ms
}

func (ms *MemoryStore) expired(s *Session) bool {
	return ms.now().Sub(s.LastAccessed) > ms.ttl
}

// Create starts a new session.
func (ms *MemoryStore) Create(_ context.Context) (*Session, error) {
	s := newSession(ms.now())

	ms.mu.Lock()
	ms.sessions[s.ID] = s
	ms.mu.Unlock()

	logging.Debug("Session", "Created session=%s", logging.TruncateSessionID(s.ID))
	return s.Clone(), nil
}

// Get returns a copy of the session.
func (ms *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.sessions[id]
	if !ok || ms.expired(s) {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

// Touch extends the session's lifetime.
func (ms *MemoryStore) Touch(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.sessions[id]
	if !ok || ms.expired(s) {
		return ErrSessionNotFound
	}
	s.LastAccessed = ms.now()
	return nil
}

// SetAttribute stores one attribute on a live session.
func (ms *MemoryStore) SetAttribute(_ context.Context, id, name, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.sessions[id]
	if !ok || ms.expired(s) {
		return ErrSessionNotFound
	}
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[name] = value
	return nil
}

// RemoveAttribute deletes one attribute.
func (ms *MemoryStore) RemoveAttribute(_ context.Context, id, name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if s, ok := ms.sessions[id]; ok {
		delete(s.Attributes, name)
	}
	return nil
}

// TakeAttribute reads and deletes one attribute under the store lock.
func (ms *MemoryStore) TakeAttribute(_ context.Context, id, name string) (string, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.sessions[id]
	if !ok || ms.expired(s) {
		return "", false, nil
	}
	value, ok := s.Attributes[name]
	delete(s.Attributes, name)
	return value, ok, nil
}

// Delete removes a session.
func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.sessions, id)
	logging.Debug("Session", "Deleted session=%s", logging.TruncateSessionID(id))
	return nil
}

// Count returns the number of sessions held, including expired ones not yet cleaned up.
func (ms *MemoryStore) Count() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.sessions)
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (ms *MemoryStore) Stop() {
	ms.stopOnce.Do(func() {
		close(ms.stopCleanup)
	})
}

// cleanupLoop periodically removes expired sessions from the store.
func (ms *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.cleanup()
		case <-ms.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired sessions from the store.
func (ms *MemoryStore) cleanup() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	count := 0
	for id, s := range ms.sessions {
		if ms.expired(s) {
			delete(ms.sessions, id)
			count++
		}
	}

	if count > 0 {
		logging.Debug("Session", "Cleaned up %d expired sessions", count)
	}
}
