// Package orchestrator routes each user turn to the agent that owns the
// conversation's current stage and enforces the stage order.
//
// # Overview
//
// A conversation moves through four stages:
//
//	discovery → scoping → spec → done
//
// Stages only ever advance one step at a time. When an agent advances the
// stage, the orchestrator hands off to the next agent within the same turn
// and returns a combined reply: a short handoff notice followed by the next
// agent's opening message.
//
// # Gates
//
// Gates run before a turn is dispatched. The SkipGate refuses requests to
// jump ahead ("just write the spec") and the turn is answered with a fixed
// explanation instead. A refused message is not recorded.
//
// # Atomic turns
//
// Handle never mutates the state it is given. The turn runs against a deep
// copy that is returned only when every step, including any handoff,
// succeeded. On error the caller keeps its previous state.
//
// # Usage Example
//
//	orch := orchestrator.New(logger)
//	orch.RegisterHandler(discovery.New(gen, ex, ex, settings, logger))
//	orch.RegisterHandler(scoping.New(gen, ex, ex, searcher, settings, logger))
//	orch.RegisterHandler(specwriter.New(gen, logger))
//	orch.RegisterGate(orchestrator.NewSkipGate())
//
//	result, err := orch.Handle(ctx, state, "I want to build an invoicing app", nil)
//	if err != nil {
//	    return err
//	}
//	state = result.State
package orchestrator
