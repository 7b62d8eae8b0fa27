// Package refresh deduplicates concurrent token authorizations.
//
// Browsers fan out: a single page load can send a dozen API calls through
// the gateway at the moment the session's access token expires. Without
// coordination each of them would present the same refresh token to the
// identity provider, and providers that rotate refresh tokens reject every
// exchange after the first.
//
// Coordinator wraps an oauth.Authorizer and groups requests by
// "<session id>:<registration id>" (an empty registration id becomes
// "default"). Per key the lifecycle is
//
//	ABSENT -> IN_FLIGHT -> ABSENT
//
// The first caller reserves the key and starts the upstream call; callers
// arriving while it runs wait for it and receive the same client or the
// same error. The key is released before any waiter sees the result, so a
// caller arriving afterwards always triggers a new authorization rather
// than replaying a stale one.
//
// Requests that carry no session (background jobs, service-to-service
// calls) bypass the table entirely.
//
// Cancellation only affects the caller whose context ended. The upstream
// call runs on a context detached from cancellation so that other waiters
// still get their result.
package refresh
