package plugin

import (
	"context"
	"encoding/json"

	"github.com/remcore/rem/internal/schema"
)

// Core is the restricted surface of the engine a plugin action handler is
// allowed to call. It is intentionally narrow: a handler cannot reach the
// store or index directly, only these few operations, each still subject
// to the engine's own validation and locking.
type Core interface {
	SaveNote(ctx context.Context, input SaveNoteInput) (schema.Note, error)
	CreateProposal(ctx context.Context, p schema.Proposal) (schema.Proposal, error)
	GetNote(ctx context.Context, noteID string) (schema.Note, error)
}

// SaveNoteInput mirrors the engine's saveNote parameters that a plugin
// action is allowed to set. OverrideReason/ApprovedBy are required for an
// agent actor to bypass the proposal-first guardrail.
type SaveNoteInput struct {
	Note           schema.Note
	OverrideReason string
	ApprovedBy     string
	SourcePlugin   string
}

// Host dispatches a declared action to its implementation. rem's contract
// (timeouts, size caps, permission gating, trust policy) is host-agnostic:
// an implementation might shell out to a subprocess over stdio JSON, call
// an embedded scripting runtime, or invoke a Go closure registered for
// tests.
type Host interface {
	Dispatch(ctx context.Context, namespace, actionID string, input json.RawMessage, invocation Invocation) (json.RawMessage, error)
}

// Invocation is the context an action handler receives alongside its input.
type Invocation struct {
	RequestID   string
	ActorKind   string
	ActorID     string
	Host        string
	Namespace   string
	Permissions []string
	Core        Core
}

// scopedCore wraps a Core with the invoking plugin's namespace and actor,
// so the engine's proposal-first guardrail and sourcePlugin bookkeeping
// see who is actually calling without the action handler having to
// supply it itself.
type scopedCore struct {
	Core
	Namespace string
	Actor     schema.Actor
}

func (s *scopedCore) SaveNote(ctx context.Context, input SaveNoteInput) (schema.Note, error) {
	input.Note.Author = s.Actor
	input.SourcePlugin = s.Namespace
	return s.Core.SaveNote(ctx, input)
}

// HostFunc adapts a plain function to Host, for tests and simple in-process
// actions.
type HostFunc func(ctx context.Context, namespace, actionID string, input json.RawMessage, invocation Invocation) (json.RawMessage, error)

func (f HostFunc) Dispatch(ctx context.Context, namespace, actionID string, input json.RawMessage, invocation Invocation) (json.RawMessage, error) {
	return f(ctx, namespace, actionID, input, invocation)
}
