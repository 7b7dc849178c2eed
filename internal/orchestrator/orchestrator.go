package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/orchestrator"

// Fixed replies.
const (
	SkipReply = "Sticking to the plan will get you the best result: discovery first, then scoping, then the spec. " +
		"Going through each step with the AI will make the final spec much more useful. " +
		"Let's continue from where we are: if you're in discovery, I'll keep asking; if you're in scoping, we'll lock the scope next."
	DoneReply        = "We're done! You can download your spec below or start a new conversation."
	HandoffSeparator = "\n\n---\n\n"
)

// handoffNotices are shown when the conversation enters a stage.
var handoffNotices = map[workflow.Stage]string{
	workflow.StageScoping: "Discovery is complete. I'm now handing off to the Scoping Agent, who will research comparable products, " +
		"propose a phased MVP scope with RICE-scored features, and work with you to finalize the build plan.",
	workflow.StageSpec: "Scope is agreed. I'm now handing off to the Spec Writer, who will produce a detailed, phased product spec " +
		"you can feed directly into a code generation tool.",
}

// handoffSteps are reported before the next agent starts working.
var handoffSteps = map[workflow.Stage]string{
	workflow.StageScoping: "Researching comparable products and preparing scope…",
	workflow.StageSpec:    "Writing your phased product spec…",
}

// Orchestrator dispatches turns to stage handlers.
type Orchestrator struct {
	handlers map[workflow.Stage]workflow.StageHandler
	gates    []Gate
	logger   *logging.Logger
	tracer   trace.Tracer
}

// New creates an orchestrator with no handlers or gates.
func New(logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		handlers: make(map[workflow.Stage]workflow.StageHandler),
		logger:   logger.Named("orchestrator"),
		tracer:   otel.Tracer(instrumentationName),
	}
}

// RegisterHandler registers a stage handler, replacing any previous handler
// for the same stage.
func (o *Orchestrator) RegisterHandler(handler workflow.StageHandler) {
	o.handlers[handler.Stage()] = handler
}

// RegisterGate adds a gate checked before every turn.
func (o *Orchestrator) RegisterGate(gate Gate) {
	o.gates = append(o.gates, gate)
}

// Handle runs one user turn. state is never modified; the returned result
// carries the new state. step may be nil.
func (o *Orchestrator) Handle(ctx context.Context, state *workflow.ConversationState, input string, step StepFunc) (*TurnResult, error) {
	from := state.Stage
	ctx = logging.WithStage(ctx, string(from))
	ctx, span := o.tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("stage.from", string(from)),
	))
	defer span.End()

	result := &TurnResult{State: state, PreviousStage: from}

	if from.Terminal() {
		result.Reply = DoneReply
		return result, nil
	}

	violations, err := o.checkGates(ctx, state, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gate check failed")
		return nil, err
	}
	if len(violations) > 0 {
		o.logger.Info(ctx, "turn refused", zap.String("gate", violations[0].Gate),
			zap.String("reason", violations[0].Description))
		span.SetAttributes(attribute.Bool("turn.skipped", true))
		result.Reply = SkipReply
		result.Skipped = true
		result.Violations = violations
		return result, nil
	}

	work := state.Clone()
	reply, err := o.dispatch(ctx, work, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		return nil, err
	}

	if work.Stage != from {
		if _, ok := o.handlers[work.Stage]; ok {
			to := work.Stage
			o.logger.Info(ctx, "handing off", zap.String("from", string(from)), zap.String("to", string(to)))
			if msg, ok := handoffSteps[to]; ok {
				result.Steps = append(result.Steps, msg)
				if step != nil {
					step(msg)
				}
			}
			opening, err := o.dispatch(logging.WithStage(ctx, string(to)), work, "")
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "handoff failed")
				return nil, fmt.Errorf("handoff to %s: %w", to, err)
			}
			reply = handoffNotices[to] + HandoffSeparator + opening
		}
	}

	span.SetAttributes(attribute.String("stage.to", string(work.Stage)))
	result.Reply = reply
	result.State = work
	return result, nil
}

// dispatch runs the handler for the state's stage and verifies it moved at
// most one stage forward.
func (o *Orchestrator) dispatch(ctx context.Context, state *workflow.ConversationState, input string) (string, error) {
	before := state.Stage
	handler, ok := o.handlers[before]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, before)
	}
	reply, err := handler.Handle(ctx, state, input)
	if err != nil {
		return "", fmt.Errorf("%s turn: %w", before, err)
	}
	if !workflow.CanTransition(before, state.Stage) {
		return "", fmt.Errorf("%s handler: %w: %s -> %s", before, workflow.ErrInvalidTransition, before, state.Stage)
	}
	return reply, nil
}

// checkGates runs all gates and collects their violations
func (o *Orchestrator) checkGates(ctx context.Context, state *workflow.ConversationState, input string) ([]Violation, error) {
	var all []Violation
	for _, gate := range o.gates {
		violations, err := gate.Check(ctx, state, input)
		if err != nil {
			return nil, fmt.Errorf("gate %s check failed: %w", gate.Name(), err)
		}
		all = append(all, violations...)
	}
	return all, nil
}
