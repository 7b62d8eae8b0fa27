// Package oauth obtains and keeps OAuth 2.0 credentials for browser sessions.
//
// # Flow
//
//  1. The browser visits /oauth2/authorization/{registration}. Handler
//     records a PendingAuthorization (state nonce, PKCE verifier, return
//     path) and redirects to the identity provider.
//  2. The identity provider redirects back to /login/oauth2/code/{registration}.
//     Handler consumes the state, checks it belongs to the calling session,
//     exchanges the code and stores the AuthorizedClient in the session.
//  3. Later requests ask the Provider for a credential. It returns the stored
//     client while its access token is usable, and otherwise refreshes it
//     with the refresh token and stores the result.
//
// Registrations using the client_credentials grant skip the browser steps.
//
// # Components
//
//   - Registry: configured registrations, replaceable on configuration reload
//   - ClientRepository: authorized clients kept as session attributes
//   - Provider: the oauth.Authorizer doing refresh and client credentials
//   - StateStore: one-time state parameters kept in the session store, so
//     any replica sharing it can finish a login
//   - Handler: login and callback endpoints
//   - Manager: wires the above from configuration
//
// Provider performs no deduplication of its own. Concurrent requests of one
// session would each refresh, and with rotating refresh tokens all but one
// would fail; callers wrap it in refresh.Coordinator.
//
// # Security
//
// State parameters expire after ten minutes and can be consumed once. A
// callback is only accepted from the session that started the flow. Error
// pages escape all provider-supplied text and set restrictive headers.
// Tokens never appear in logs; session ids are truncated.
package oauth
