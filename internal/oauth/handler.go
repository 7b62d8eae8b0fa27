package oauth

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"estategate/internal/session"
	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

const (
	// LoginPattern starts the authorization-code flow for a registration.
	LoginPattern = "GET /oauth2/authorization/{registration}"

	// CallbackPattern receives the identity provider's redirect.
	CallbackPattern = "GET /login/oauth2/code/{registration}"
)

// LoginPath returns the path that starts a login for registrationID.
func LoginPath(registrationID string) string {
	return "/oauth2/authorization/" + registrationID
}

// Handler serves the browser side of the authorization-code flow.
type Handler struct {
	registry *Registry
	states   *StateStore
	clients  *ClientRepository
}

// NewHandler creates a new OAuth HTTP handler.
func NewHandler(registry *Registry, states *StateStore, clients *ClientRepository) *Handler {
	return &Handler{
		registry: registry,
		states:   states,
		clients:  clients,
	}
}

// Register adds the login and callback routes to mux. The routes must run
// behind session.Middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(LoginPattern, h.HandleLogin)
	mux.HandleFunc(CallbackPattern, h.HandleCallback)
}

// HandleLogin redirects the browser to the identity provider with a fresh
// state and PKCE challenge.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := session.IDFromContext(r.Context())
	if !ok {
		h.renderErrorPage(w, http.StatusInternalServerError, "No session is available for this request.")
		return
	}

	reg, err := h.registry.Get(r.PathValue("registration"))
	if err != nil {
		logging.Warn("OAuth", "Login requested for unknown registration %q", r.PathValue("registration"))
		h.renderErrorPage(w, http.StatusNotFound, "Unknown login provider.")
		return
	}
	if reg.GrantType != oauth.GrantAuthorizationCode {
		h.renderErrorPage(w, http.StatusBadRequest, "This provider does not support interactive login.")
		return
	}

	verifier := oauth2.GenerateVerifier()
	pending, err := h.states.Begin(r.Context(), sessionID, reg.ID, verifier, safeRedirect(r.URL.Query().Get("redirect")))
	if err != nil {
		logging.Error("OAuth", err, "Failed to generate authorization state")
		h.renderErrorPage(w, http.StatusInternalServerError, "Failed to start authentication. Please try again.")
		return
	}

	authURL := reg.OAuth2Config().AuthCodeURL(pending.State, oauth2.S256ChallengeOption(verifier))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback handles the OAuth callback endpoint.
// This is called by the browser after the user authenticates with the IdP.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	stateParam := query.Get("state")
	errorParam := query.Get("error")
	errorDesc := query.Get("error_description")
	sessionID, _ := session.IDFromContext(r.Context())

	if errorParam != "" {
		logging.Warn("OAuth", "OAuth callback received error: %s - %s", errorParam, errorDesc)
		if stateParam != "" {
			h.states.Consume(r.Context(), sessionID, stateParam)
		}
		if errorDesc == "" {
			errorDesc = errorParam
		}
		h.renderErrorPage(w, http.StatusBadRequest, fmt.Sprintf("Authentication failed: %s", errorDesc))
		return
	}

	if code == "" || stateParam == "" {
		logging.Warn("OAuth", "OAuth callback missing code or state parameter")
		h.renderErrorPage(w, http.StatusBadRequest, "Invalid callback: missing required parameters")
		return
	}

	// Pending logins live in the session that started them, so a callback
	// from another session finds nothing.
	pending := h.states.Consume(r.Context(), sessionID, stateParam)
	if pending == nil {
		h.renderErrorPage(w, http.StatusBadRequest, "Authentication session expired or invalid. Please try again.")
		return
	}

	if pending.SessionID != sessionID || pending.RegistrationID != r.PathValue("registration") {
		logging.Warn("OAuth", "OAuth callback does not match the session that started it (registration=%s)",
			pending.RegistrationID)
		h.renderErrorPage(w, http.StatusBadRequest, "Authentication session invalid. Please try again.")
		return
	}

	reg, err := h.registry.Get(pending.RegistrationID)
	if err != nil {
		h.renderErrorPage(w, http.StatusBadRequest, "Unknown login provider.")
		return
	}

	tok, err := reg.OAuth2Config().Exchange(r.Context(), code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		logging.Error("OAuth", err, "Failed to exchange authorization code")
		logging.Audit(logging.AuditEvent{
			Action:       "code_exchange",
			Outcome:      "failure",
			SessionID:    logging.TruncateSessionID(sessionID),
			Registration: reg.ID,
			Error:        err.Error(),
		})
		h.renderErrorPage(w, http.StatusBadGateway, "Failed to complete authentication. Please try again.")
		return
	}

	token := oauth.TokenFromOAuth2(tok, nil)
	client := &oauth.AuthorizedClient{
		RegistrationID: reg.ID,
		Principal:      PrincipalFromToken(token),
		Token:          token,
	}
	if err := h.clients.Save(r.Context(), sessionID, client); err != nil {
		logging.Error("OAuth", err, "Failed to store authorized client")
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionNotFound) {
			status = http.StatusBadRequest
		}
		h.renderErrorPage(w, status, "Failed to complete authentication. Please try again.")
		return
	}

	logging.Audit(logging.AuditEvent{
		Action:       "code_exchange",
		Outcome:      "success",
		SessionID:    logging.TruncateSessionID(sessionID),
		Registration: reg.ID,
	})

	http.Redirect(w, r, pending.RedirectTo, http.StatusFound)
}

// safeRedirect only allows same-origin absolute paths.
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	return target
}

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// renderErrorPage renders an HTML page indicating an authentication error.
func (h *Handler) renderErrorPage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	// Messages may echo IdP-provided text.
	safeMessage := html.EscapeString(message)

	htmlContent := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sign-in Failed - estategate</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f4f1ea;
            min-height: 100vh;
            margin: 0;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #2d2a26;
        }
        .card {
            text-align: center;
            padding: 2.5rem;
            background: #fff;
            border-radius: 12px;
            box-shadow: 0 4px 24px rgba(0, 0, 0, 0.08);
            max-width: 460px;
        }
        .message { color: #b3261e; font-weight: 500; }
        a { color: #2f6f4f; }
    </style>
</head>
<body>
    <div class="card">
        <h1>Sign-in failed</h1>
        <p class="message">%s</p>
        <p><a href="/">Back to the marketplace</a></p>
    </div>
</body>
</html>`, safeMessage)

	w.Write([]byte(htmlContent))
}
