package http

import (
	"time"

	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SessionResponse is the response body for session reads.
type SessionResponse struct {
	ID                string                    `json:"id"`
	Stage             workflow.Stage            `json:"stage"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
	UserTurns         int                       `json:"user_turns"`
	Completeness      workflow.Completeness     `json:"completeness"`
	SpecReady         bool                      `json:"spec_ready"`
	NegotiationRounds int                       `json:"negotiation_rounds"`
	Messages          []workflow.Message        `json:"messages"`
	Discovery         workflow.DiscoverySummary `json:"discovery"`
	Scoping           *workflow.ScopingOutput   `json:"scoping,omitempty"`
}

// MessageRequest is the request body for POST /api/v1/sessions/:id/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse is the response body for POST /api/v1/sessions/:id/messages.
type MessageResponse struct {
	Reply         string                `json:"reply"`
	Stage         workflow.Stage        `json:"stage"`
	PreviousStage workflow.Stage        `json:"previous_stage"`
	Steps         []string              `json:"steps"`
	Skipped       bool                  `json:"skipped"`
	SpecReady     bool                  `json:"spec_ready"`
	Completeness  workflow.Completeness `json:"completeness"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
