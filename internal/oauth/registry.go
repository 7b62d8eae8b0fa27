package oauth

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

// Registry holds the configured client registrations. It is safe for
// concurrent use and can be replaced wholesale when configuration reloads.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]oauth.Registration
	defaultID     string
}

// NewRegistry creates a registry. defaultID names the registration used for
// requests that don't name one; when empty and exactly one registration is
// configured, that one is the default.
func NewRegistry(registrations []oauth.Registration, defaultID string) *Registry {
	r := &Registry{}
	r.Replace(registrations, defaultID)
	return r
}

// Replace swaps in a new set of registrations.
func (r *Registry) Replace(registrations []oauth.Registration, defaultID string) {
	byID := make(map[string]oauth.Registration, len(registrations))
	for _, reg := range registrations {
		byID[reg.ID] = reg
	}
	if defaultID == "" && len(registrations) == 1 {
		defaultID = registrations[0].ID
	}

	r.mu.Lock()
	r.registrations = byID
	r.defaultID = defaultID
	r.mu.Unlock()

	logging.Debug("OAuth", "Registry holds %d registrations (default=%q)", len(byID), defaultID)
}

// Get returns a copy of the registration. An empty id or "default" selects
// the default registration.
func (r *Registry) Get(id string) (*oauth.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lookup := id
	if _, exists := r.registrations[id]; !exists && (id == "" || id == oauth.DefaultRegistrationKey) {
		lookup = r.defaultID
	}

	reg, ok := r.registrations[lookup]
	if !ok {
		return nil, fmt.Errorf("%w: %q", oauth.ErrUnknownRegistration, id)
	}
	reg.Scopes = slices.Clone(reg.Scopes)
	return &reg, nil
}

// DefaultID returns the id of the default registration, or "".
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// List returns all registrations sorted by id.
func (r *Registry) List() []oauth.Registration {
	r.mu.RLock()
	out := make([]oauth.Registration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		reg.Scopes = slices.Clone(reg.Scopes)
		out = append(out, reg)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b oauth.Registration) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
