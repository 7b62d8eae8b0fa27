// Package session implements the gateway's server-side sessions.
//
// A session is identified by a random id carried in an HttpOnly cookie and
// owns a string key/value attribute bag. Two Store implementations exist:
//
//   - MemoryStore: process-local map with idle expiry and a cleanup loop
//   - RedisStore: one Redis hash per session, shared between replicas
//
// Middleware loads (or creates) the session for every request and puts it
// on the request context, where FromContext and IDFromContext find it. The
// token refresh coordinator uses the session id as half of its dedup key.
package session
