package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"estategate/internal/oauth"
	"estategate/internal/refresh"
	"estategate/pkg/logging"
	pkgoauth "estategate/pkg/oauth"
)

// errorResponse is the JSON body of every gateway error.
type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	LoginURL string `json:"login_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug("Gateway", "Failed to write response: %v", err)
	}
}

// writeAuthorizeError maps an authorization failure to a response.
func writeAuthorizeError(w http.ResponseWriter, r *http.Request, registrationID string, err error) {
	switch {
	case errors.Is(err, pkgoauth.ErrAuthorizationRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:    "authorization_required",
			Message:  "sign in to continue",
			LoginURL: oauth.LoginPath(registrationID) + "?redirect=" + url.QueryEscape(r.URL.RequestURI()),
		})
	case errors.Is(err, pkgoauth.ErrUnknownRegistration):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown_registration"})
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		logging.Debug("Gateway", "Client went away while waiting for a token")
	case errors.Is(err, refresh.ErrAuthorizerPanic):
		logging.Error("Gateway", err, "Authorization failed for registration=%s", registrationID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	default:
		logging.Warn("Gateway", "Token unavailable for registration=%s: %v", registrationID, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "token_unavailable",
			Message: "the identity provider could not issue a token",
		})
	}
}
