// Package extraction turns free model text into structured workflow data.
//
// It provides the extraction collaborators (discovery summary and scoping
// output), the classification collaborators (recap confirmation and scope
// intent), and a pattern-based detector for replies that look like a
// structured document instead of conversation.
//
// # Degradation
//
// Model output is never trusted to be well formed. A reply that is not a
// JSON object yields an empty structure, unexpected value types are coerced,
// and classification falls back to the conservative answer (not confirmed,
// PUSHBACK). Only a missing credential and context cancellation propagate as
// errors; every other failure is logged and degraded.
package extraction
