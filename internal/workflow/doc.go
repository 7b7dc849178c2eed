// Package workflow holds the data model and pure rules of the
// discovery → scoping → spec pipeline.
//
// A ConversationState is owned by exactly one session. Stage handlers
// mutate the state they are given; the orchestrator hands them a clone and
// commits it only when the whole turn succeeds. Everything in this package is
// deterministic and free of I/O: completeness scoring, summary merging, raw
// extraction coercion, RICE scoring and search reconciliation.
package workflow
