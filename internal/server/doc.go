// Package server is the estategate HTTP gateway.
//
// It holds a server-side session per browser (see package session), lets the
// browser sign in with a configured identity provider (see package oauth),
// and relays API requests to upstream services with the session's bearer
// token attached.
//
// # Routes
//
//   - GET /healthz: liveness, plus Redis reachability when Redis holds sessions
//   - GET /metrics: Prometheus metrics, when enabled
//   - GET /oauth2/authorization/{registration}: start a login
//   - GET /login/oauth2/code/{registration}: login callback
//   - GET /api/session/token/{registration}: token metadata, never the token
//   - POST /logout: delete the session
//   - one prefix per configured route: relayed upstream by a TokenRelay
//
// # Token relay
//
// Every relayed request asks the refresh.Coordinator for a credential. A
// browser opening a page fires many API calls at once; when the access token
// has expired they all need a refresh at the same moment, and the coordinator
// collapses them into a single call to the identity provider. Requests with
// no usable credential get 401 with a login_url; identity-provider failures
// get 502.
//
// The gateway's session cookie is removed before requests leave for upstream
// services.
package server
