package server

import (
	"net/http"
	"time"

	"estategate/internal/session"
	"estategate/pkg/logging"
	pkgoauth "estategate/pkg/oauth"
)

// tokenMetadata describes the session's token without revealing it.
type tokenMetadata struct {
	Registration string     `json:"registration"`
	Principal    string     `json:"principal,omitempty"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
}

// handleTokenMetadata authorizes the session for a registration, refreshing
// if needed, and reports what it holds.
func (s *Server) handleTokenMetadata(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("registration")
	reg, err := s.oauth.Registry().Get(requested)
	if err != nil {
		writeAuthorizeError(w, r, requested, err)
		return
	}

	sessionID, _ := session.IDFromContext(r.Context())
	client, err := s.coordinator.Authorize(r.Context(), &pkgoauth.AuthorizationRequest{
		RegistrationID: reg.ID,
		SessionID:      sessionID,
	})
	if err != nil {
		writeAuthorizeError(w, r, reg.ID, err)
		return
	}

	meta := tokenMetadata{
		Registration: client.RegistrationID,
		Principal:    client.Principal,
		TokenType:    "Bearer",
	}
	if client.Token != nil {
		if client.Token.TokenType != "" {
			meta.TokenType = client.Token.TokenType
		}
		if !client.Token.ExpiresAt.IsZero() {
			expiry := client.Token.ExpiresAt.UTC()
			meta.ExpiresAt = &expiry
		}
		meta.Scopes = client.Token.Scopes()
	}
	writeJSON(w, http.StatusOK, meta)
}

// handleLogout deletes the session with every token it holds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := session.IDFromContext(r.Context()); ok {
		if err := s.store.Delete(r.Context(), sessionID); err != nil {
			logging.Error("Gateway", err, "Failed to delete session on logout")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session_store_unavailable"})
			return
		}
		logging.Audit(logging.AuditEvent{
			Action:    "logout",
			Outcome:   "success",
			SessionID: logging.TruncateSessionID(sessionID),
		})
	}
	session.ClearCookie(w, s.cookieConfig())
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports liveness and, with a Redis store, backend reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			logging.Warn("Gateway", "Health check: redis unreachable: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "session_store": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
