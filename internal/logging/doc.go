// Package logging provides structured logging with OpenTelemetry integration.
//
// The Logger wraps zap with context-aware methods. Every call pulls
// correlation fields out of the context: the active trace and span, the
// conversation session, the turn being processed, and the workflow stage.
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	ctx = logging.WithStage(ctx, "scoping")
//	logger.Info(ctx, "proposal generated", zap.Int("comparables", n))
//
// Output is written to stdout (json or console encoding, with redaction of
// sensitive field names and value patterns) and, when a LoggerProvider is
// supplied, to the OpenTelemetry logs bridge. Levels below error are sampled.
package logging
