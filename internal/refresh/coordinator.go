package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"estategate/internal/session"
	"estategate/pkg/logging"
	"estategate/pkg/oauth"
)

// ErrAuthorizerPanic is returned to every waiter when the delegate panics.
var ErrAuthorizerPanic = errors.New("authorizer panicked")

// SessionResolver returns the session id a request belongs to, or false
// when the request carries no session.
type SessionResolver func(ctx context.Context, req *oauth.AuthorizationRequest) (string, bool)

// ResolveSession uses the request's SessionID and falls back to the session
// attached to ctx by session.Middleware.
func ResolveSession(ctx context.Context, req *oauth.AuthorizationRequest) (string, bool) {
	if req != nil && req.SessionID != "" {
		return req.SessionID, true
	}
	return session.IDFromContext(ctx)
}

// Key is the dedup key for a session and the request's registration. The
// session id is length-prefixed so ids containing ':' never collide.
func Key(sessionID string, req *oauth.AuthorizationRequest) string {
	return strconv.Itoa(len(sessionID)) + ":" + sessionID + ":" + req.RegistrationKey()
}

// Stats is a point-in-time snapshot of coordinator counters.
type Stats struct {
	// UpstreamCalls counts delegate invocations made on behalf of sessions.
	UpstreamCalls int64
	// Joined counts callers that received another caller's in-flight result.
	Joined int64
	// Bypassed counts requests without a session, forwarded directly.
	Bypassed int64
	// Abandoned counts callers that stopped waiting because their context ended.
	Abandoned int64
	// InFlight is the number of keys with an outstanding upstream call.
	InFlight int64
}

// Coordinator wraps an Authorizer so that, per session and registration,
// at most one authorization is outstanding at a time. Callers arriving while
// one is in flight wait for it and receive the identical result or error.
// Once the call completes the key is forgotten, so the next caller starts a
// fresh authorization.
//
// The in-flight slot is reserved before the delegate starts, so two racing
// first callers never produce two upstream calls.
type Coordinator struct {
	delegate oauth.Authorizer
	resolver SessionResolver
	meter    metric.Meter

	group       singleflight.Group
	instruments *instruments

	upstreamCalls atomic.Int64
	joined        atomic.Int64
	bypassed      atomic.Int64
	abandoned     atomic.Int64
	inFlight      atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSessionResolver replaces ResolveSession.
func WithSessionResolver(resolver SessionResolver) Option {
	return func(c *Coordinator) {
		c.resolver = resolver
	}
}

// WithMeter records coordinator metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(c *Coordinator) {
		c.meter = meter
	}
}

// NewCoordinator creates a Coordinator delegating to delegate.
func NewCoordinator(delegate oauth.Authorizer, opts ...Option) *Coordinator {
	c := &Coordinator{
		delegate: delegate,
		resolver: ResolveSession,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.instruments = newInstruments(c.meter)

	return c
}

var _ oauth.Authorizer = (*Coordinator)(nil)

// Authorize returns an authorized client for req. Requests without a session
// go straight to the delegate. Otherwise the caller either starts the upstream
// call for its key or joins the one already running.
//
// If ctx ends first the caller gets ctx.Err(), but the upstream call keeps
// running for the other waiters and is cleaned up normally.
func (c *Coordinator) Authorize(ctx context.Context, req *oauth.AuthorizationRequest) (*oauth.AuthorizedClient, error) {
	if req == nil {
		req = &oauth.AuthorizationRequest{}
	}
	registration := req.RegistrationKey()

	sessionID, ok := c.resolver(ctx, req)
	if !ok {
		c.bypassed.Add(1)
		c.instruments.bypassed.Add(ctx, 1, registrationAttr(registration))
		logging.Debug("Refresh", "No session for registration=%s, authorizing without dedup", registration)
		return c.delegate.Authorize(ctx, req)
	}

	key := Key(sessionID, req)
	upstreamCtx := context.WithoutCancel(ctx)

	// leader is only written by the goroutine running the upstream call,
	// which finishes before its result is delivered on ch.
	leader := false
	ch := c.group.DoChan(key, func() (interface{}, error) {
		leader = true
		return c.call(upstreamCtx, sessionID, req)
	})

	select {
	case res := <-ch:
		if !leader {
			c.joined.Add(1)
			c.instruments.joined.Add(ctx, 1, registrationAttr(registration))
			logging.Debug("Refresh", "Joined in-flight authorization session=%s registration=%s",
				logging.TruncateSessionID(sessionID), registration)
		}
		client, _ := res.Val.(*oauth.AuthorizedClient)
		if res.Err != nil {
			return nil, res.Err
		}
		return client, nil
	case <-ctx.Done():
		c.abandoned.Add(1)
		c.instruments.abandoned.Add(ctx, 1, registrationAttr(registration))
		logging.Debug("Refresh", "Stopped waiting for authorization session=%s registration=%s: %v",
			logging.TruncateSessionID(sessionID), registration, ctx.Err())
		return nil, ctx.Err()
	}
}

// call runs the delegate for one in-flight window.
func (c *Coordinator) call(ctx context.Context, sessionID string, req *oauth.AuthorizationRequest) (client *oauth.AuthorizedClient, err error) {
	registration := req.RegistrationKey()
	start := time.Now()

	c.upstreamCalls.Add(1)
	c.inFlight.Add(1)
	c.instruments.upstreamCalls.Add(ctx, 1, registrationAttr(registration))
	c.instruments.inFlight.Add(ctx, 1)

	defer func() {
		c.inFlight.Add(-1)
		c.instruments.inFlight.Add(ctx, -1)
		c.instruments.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(outcomeAttrs(registration, err)...))
	}()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Refresh", fmt.Errorf("%v", r), "Authorizer panicked for session=%s registration=%s",
				logging.TruncateSessionID(sessionID), registration)
			client = nil
			err = fmt.Errorf("%w: %v", ErrAuthorizerPanic, r)
		}
	}()

	logging.Debug("Refresh", "Starting authorization session=%s registration=%s",
		logging.TruncateSessionID(sessionID), registration)

	return c.delegate.Authorize(ctx, req)
}

// Stats returns the current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		UpstreamCalls: c.upstreamCalls.Load(),
		Joined:        c.joined.Load(),
		Bypassed:      c.bypassed.Load(),
		Abandoned:     c.abandoned.Load(),
		InFlight:      c.inFlight.Load(),
	}
}
