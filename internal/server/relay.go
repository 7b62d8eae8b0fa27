package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"estategate/internal/config"
	"estategate/internal/oauth"
	"estategate/internal/session"
	"estategate/pkg/logging"
	pkgoauth "estategate/pkg/oauth"
)

// TokenRelay forwards requests under one route prefix to an upstream service
// with the session's access token for the route's registration.
type TokenRelay struct {
	route      config.RouteConfig
	upstream   *url.URL
	registry   *oauth.Registry
	authorizer pkgoauth.Authorizer
	cookieName string
	proxy      *httputil.ReverseProxy
	requests   metric.Int64Counter
}

// NewTokenRelay creates a relay for route. authorizer is normally a
// refresh.Coordinator so that parallel requests share one refresh.
func NewTokenRelay(route config.RouteConfig, registry *oauth.Registry, authorizer pkgoauth.Authorizer, cookieName string, meter metric.Meter) (*TokenRelay, error) {
	upstream, err := url.Parse(route.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream for route %s: %w", route.Prefix, err)
	}
	if cookieName == "" {
		cookieName = session.DefaultCookieName
	}

	requests, err := meter.Int64Counter("estategate_relay_requests_total",
		metric.WithDescription("Requests relayed to upstream services, by route and outcome."))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay counter: %w", err)
	}

	tr := &TokenRelay{
		route:      route,
		upstream:   upstream,
		registry:   registry,
		authorizer: authorizer,
		cookieName: cookieName,
		requests:   requests,
	}
	tr.proxy = &httputil.ReverseProxy{
		Rewrite:        tr.rewrite,
		ModifyResponse: tr.relayed,
		ErrorHandler:   tr.proxyError,
	}
	return tr, nil
}

// Prefix returns the path prefix this relay serves.
func (tr *TokenRelay) Prefix() string {
	return tr.route.Prefix
}

func (tr *TokenRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reg, err := tr.registry.Get(tr.route.Registration)
	if err != nil {
		tr.count(r.Context(), "unknown_registration")
		writeAuthorizeError(w, r, tr.route.Registration, err)
		return
	}

	sessionID, _ := session.IDFromContext(r.Context())
	client, err := tr.authorizer.Authorize(r.Context(), &pkgoauth.AuthorizationRequest{
		RegistrationID: reg.ID,
		SessionID:      sessionID,
	})
	if err != nil {
		tr.count(r.Context(), "unauthorized")
		writeAuthorizeError(w, r, reg.ID, err)
		return
	}

	out := r.Clone(r.Context())
	out.Header.Set("Authorization", "Bearer "+client.AccessToken())

	logging.Debug("Gateway", "Relaying %s %s to %s (session=%s token=%s)", r.Method, r.URL.Path,
		tr.upstream.Host, logging.TruncateSessionID(sessionID), logging.RedactToken(client.AccessToken()))

	tr.proxy.ServeHTTP(w, out)
}

func (tr *TokenRelay) rewrite(pr *httputil.ProxyRequest) {
	if tr.route.StripPrefix {
		trimmed := strings.TrimPrefix(pr.In.URL.Path, strings.TrimSuffix(tr.route.Prefix, "/"))
		if !strings.HasPrefix(trimmed, "/") {
			trimmed = "/" + trimmed
		}
		pr.Out.URL.Path = trimmed
		pr.Out.URL.RawPath = ""
	}
	pr.SetURL(tr.upstream)
	pr.SetXForwarded()
	pr.Out.Host = tr.upstream.Host
	stripCookie(pr.Out, tr.cookieName)
}

func (tr *TokenRelay) relayed(resp *http.Response) error {
	tr.count(resp.Request.Context(), "relayed")
	return nil
}

func (tr *TokenRelay) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	logging.Warn("Gateway", "Upstream %s failed for %s: %v", tr.upstream.Host, r.URL.Path, err)
	tr.count(r.Context(), "upstream_error")
	writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream_unavailable"})
}

func (tr *TokenRelay) count(ctx context.Context, outcome string) {
	tr.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", tr.route.Prefix),
		attribute.String("outcome", outcome),
	))
}

// stripCookie removes the gateway's session cookie so it never reaches
// upstream services.
func stripCookie(r *http.Request, name string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name != name {
			r.AddCookie(c)
		}
	}
}
