// Package logging provides the process-wide structured logger used by every
// estategate subsystem.
//
// It is a thin facade over log/slog. Messages carry a subsystem attribute
// ("Refresh", "OAuth", "Session", "Gateway", "Config") so operators can
// filter by component:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Gateway", "Listening on %s", addr)
//	logging.Error("OAuth", err, "Token refresh failed for registration=%s", id)
//
// Session identifiers and tokens must never be logged verbatim. Use
// TruncateSessionID and RedactToken:
//
//	logging.Debug("Refresh", "Joined in-flight refresh session=%s",
//	    logging.TruncateSessionID(sessionID))
//
// # Audit Logging
//
// Security-sensitive operations (token refresh, code exchange, logout) are
// recorded with Audit:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:       "token_refresh",
//	    Outcome:      "success",
//	    SessionID:    logging.TruncateSessionID(sessionID),
//	    Registration: "keycloak",
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix for easy
// filtering by log aggregation systems.
package logging
