package oauth

import (
	"net/http"

	"estategate/internal/config"
	"estategate/internal/session"
	"estategate/pkg/logging"
)

// Manager wires the OAuth components for one gateway instance.
type Manager struct {
	registry *Registry
	states   *StateStore
	clients  *ClientRepository
	provider *Provider
	handler  *Handler
}

// NewManager creates a Manager from configuration. Authorized clients and
// pending logins are kept in store.
func NewManager(cfg config.GatewayConfig, store session.Store, opts ...ProviderOption) *Manager {
	registry := NewRegistry(cfg.Registrations(), cfg.OAuth.DefaultRegistration)
	states := NewStateStore(store)
	clients := NewClientRepository(store)

	opts = append([]ProviderOption{WithClockSkew(cfg.OAuth.ClockSkew)}, opts...)
	provider := NewProvider(registry, clients, opts...)

	logging.Info("OAuth", "OAuth manager initialized with %d registrations (default=%q)",
		len(cfg.OAuth.Registrations), registry.DefaultID())

	return &Manager{
		registry: registry,
		states:   states,
		clients:  clients,
		provider: provider,
		handler:  NewHandler(registry, states, clients),
	}
}

// Provider returns the upstream Authorizer. It does not deduplicate.
func (m *Manager) Provider() *Provider {
	return m.provider
}

// Registry returns the registration registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Clients returns the authorized client repository.
func (m *Manager) Clients() *ClientRepository {
	return m.clients
}

// RegisterRoutes adds the login and callback endpoints to mux.
func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	m.handler.Register(mux)
}

// Reload applies the registrations of a reloaded configuration. Clients
// already stored in sessions are kept; they are refreshed against the new
// registration the next time they expire.
func (m *Manager) Reload(cfg config.GatewayConfig) {
	m.registry.Replace(cfg.Registrations(), cfg.OAuth.DefaultRegistration)
	logging.Info("OAuth", "Reloaded %d registrations", len(cfg.OAuth.Registrations))
}
