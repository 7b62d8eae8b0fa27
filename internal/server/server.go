package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"estategate/internal/config"
	"estategate/internal/oauth"
	"estategate/internal/refresh"
	"estategate/internal/session"
	"estategate/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	// TokenMetadataPattern reports the session's token for a registration.
	TokenMetadataPattern = "GET /api/session/token/{registration}"
	// LogoutPattern ends the session.
	LogoutPattern = "POST /logout"
	// HealthPath is served without a session.
	HealthPath = "/healthz"

	redisPingTimeout = 5 * time.Second
)

// Server is the estategate HTTP gateway.
type Server struct {
	cfg         config.GatewayConfig
	store       session.Store
	redis       redis.UniversalClient
	oauth       *oauth.Manager
	coordinator *refresh.Coordinator
	relays      []*TokenRelay
	telemetry   *telemetry
	handler     http.Handler

	stopStore func()
}

// Option configures a Server.
type Option func(*options)

type options struct {
	store      session.Store
	httpClient *http.Client
}

// WithSessionStore uses store instead of building one from configuration.
func WithSessionStore(store session.Store) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient sets the client used to reach identity providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds the gateway: session store, OAuth components, the refresh
// coordinator, token relays and the HTTP routes.
func New(cfg config.GatewayConfig, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{cfg: cfg, stopStore: func() {}}

	if o.store != nil {
		s.store = o.store
	} else if err := s.initSessionStore(); err != nil {
		return nil, err
	}

	tel, err := newTelemetry(cfg.Metrics.Enabled)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.telemetry = tel

	var providerOpts []oauth.ProviderOption
	if o.httpClient != nil {
		providerOpts = append(providerOpts, oauth.WithHTTPClient(o.httpClient))
	}
	s.oauth = oauth.NewManager(cfg, s.store, providerOpts...)
	s.coordinator = refresh.NewCoordinator(s.oauth.Provider(), refresh.WithMeter(tel.meter()))

	for _, route := range cfg.Routes {
		relay, err := NewTokenRelay(route, s.oauth.Registry(), s.coordinator, cfg.Server.CookieName, tel.meter())
		if err != nil {
			s.Close()
			return nil, err
		}
		s.relays = append(s.relays, relay)
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) initSessionStore() error {
	sc := s.cfg.Session
	switch sc.Store {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Username: sc.Redis.Username,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", sc.Redis.Addr, err)
		}
		s.redis = client
		s.store = session.NewRedisStore(client, sc.Redis.Prefix, sc.TTL)
		logging.Info("Gateway", "Using redis session store at %s", sc.Redis.Addr)
	default:
		mem := session.NewMemoryStore(sc.TTL)
		s.store = mem
		s.stopStore = mem.Stop
		logging.Info("Gateway", "Using in-memory session store")
	}
	return nil
}

func (s *Server) cookieConfig() session.CookieConfig {
	return session.CookieConfig{
		Name:   s.cfg.Server.CookieName,
		Secure: s.cfg.Server.CookieSecure,
	}
}

func (s *Server) routes() http.Handler {
	sessionMux := http.NewServeMux()
	s.oauth.RegisterRoutes(sessionMux)
	sessionMux.HandleFunc(TokenMetadataPattern, s.handleTokenMetadata)
	sessionMux.HandleFunc(LogoutPattern, s.handleLogout)
	for _, relay := range s.relays {
		prefix := relay.Prefix()
		sessionMux.Handle(prefix, relay)
		if !strings.HasSuffix(prefix, "/") {
			sessionMux.Handle(prefix+"/", relay)
		}
		logging.Info("Gateway", "Relaying %s to %s", prefix, relay.upstream.Redacted())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	if s.telemetry.handler != nil {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.telemetry.handler)
	}
	mux.Handle("/", session.Middleware(s.store, s.cookieConfig())(sessionMux))
	return mux
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Coordinator returns the refresh coordinator shared by all routes.
func (s *Server) Coordinator() *refresh.Coordinator {
	return s.coordinator
}

// Reload applies a changed configuration. Only registrations are reloaded;
// listener, session and route changes need a restart.
func (s *Server) Reload(cfg config.GatewayConfig) {
	s.oauth.Reload(cfg)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	logging.Info("Gateway", "Listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("Gateway", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases the stores, background loops and the meter provider.
func (s *Server) Close() error {
	s.stopStore()

	var errs []error
	if s.telemetry != nil {
		errs = append(errs, s.telemetry.shutdown(context.Background()))
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
