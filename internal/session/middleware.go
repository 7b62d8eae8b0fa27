package session

import (
	"errors"
	"net/http"
	"time"

	"estategate/pkg/logging"
)

// DefaultCookieName is the cookie carrying the session id.
const DefaultCookieName = "ESTATEGATE_SESSION"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	MaxAge time.Duration
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// Middleware resolves the caller's session from the session cookie,
// creating one when the cookie is missing or names an expired session,
// and attaches it to the request context.
func Middleware(store Store, cfg CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var s *Session
			if cookie, err := r.Cookie(cfg.name()); err == nil && cookie.Value != "" {
				s, err = store.Get(ctx, cookie.Value)
				switch {
				case err == nil:
					if err := store.Touch(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
						logging.Warn("Session", "Failed to touch session=%s: %v", logging.TruncateSessionID(s.ID), err)
					}
				case errors.Is(err, ErrSessionNotFound):
					logging.Debug("Session", "Session cookie refers to unknown session, starting a new one")
					s = nil
				default:
					logging.Error("Session", err, "Failed to load session")
					http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
					return
				}
			}

			if s == nil {
				created, err := store.Create(ctx)
				if err != nil {
					logging.Error("Session", err, "Failed to create session")
					http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
					return
				}
				s = created
				SetCookie(w, cfg, s.ID, r.TLS != nil)
			}

			next.ServeHTTP(w, r.WithContext(NewContext(ctx, s)))
		})
	}
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, cfg CookieConfig, id string, tls bool) {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	cookie := &http.Cookie{
		Name:     cfg.name(),
		Value:    id,
		Path:     path,
		HttpOnly: true,
		Secure:   cfg.Secure || tls,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.MaxAge > 0 {
		cookie.MaxAge = int(cfg.MaxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

// ClearCookie expires the session cookie in the browser.
func ClearCookie(w http.ResponseWriter, cfg CookieConfig) {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
