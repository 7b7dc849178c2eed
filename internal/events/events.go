// Package events publishes session lifecycle events to NATS.
//
// Events are published to subjects:
//   - {prefix}.sessions.{session_id}.created
//   - {prefix}.sessions.{session_id}.turn
//   - {prefix}.sessions.{session_id}.stage_changed
//   - {prefix}.sessions.{session_id}.spec_ready
//   - {prefix}.sessions.{session_id}.deleted
//
// Publishing is fire-and-forget. Failures are logged and never surface to
// the caller, so a broken broker cannot fail a conversation turn.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/logging"
)

// Kind identifies a lifecycle event.
type Kind string

const (
	KindCreated      Kind = "created"
	KindTurn         Kind = "turn"
	KindStageChanged Kind = "stage_changed"
	KindSpecReady    Kind = "spec_ready"
	KindDeleted      Kind = "deleted"
)

// Event is the JSON payload of every message.
type Event struct {
	ID            string    `json:"event_id"`
	Kind          Kind      `json:"kind"`
	SessionID     string    `json:"session_id"`
	Stage         string    `json:"stage"`
	PreviousStage string    `json:"previous_stage,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Subject returns the subject an event for sessionID is published on.
func Subject(prefix, sessionID string, kind Kind) string {
	return fmt.Sprintf("%s.sessions.%s.%s", prefix, sessionID, kind)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
func (Noop) Close()                         {}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *logging.Logger
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership
// of nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if prefix == "" {
		prefix = "specd"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// Connect returns a publisher for cfg: a Noop when events are disabled,
// otherwise a NATSPublisher owning a fresh connection.
func Connect(cfg config.EventsConfig, logger *logging.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("specd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATSURL, err)
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// Publish fills in the event id and timestamp when missing and publishes
// the event.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	subject := Subject(p.prefix, event.SessionID, event.Kind)
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn(ctx, "marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "publish event", zap.String("subject", subject), zap.Error(err))
		return
	}
	p.logger.Debug(ctx, "event published", zap.String("subject", subject))
}

// Close drains the connection when the publisher opened it.
func (p *NATSPublisher) Close() {
	if p.owned {
		_ = p.nc.Drain()
	}
}

var (
	_ Publisher = Noop{}
	_ Publisher = (*NATSPublisher)(nil)
)
