package core

import (
	"context"

	"github.com/remcore/rem/internal/plugin"
	"github.com/remcore/rem/internal/schema"
)

// pluginFacade adapts Engine to plugin.Core: the narrow set of operations
// a plugin action handler may call, each still subject to Engine's own
// validation, locking, and the proposal-first guardrail.
type pluginFacade struct {
	engine *Engine
}

func (f *pluginFacade) SaveNote(ctx context.Context, input plugin.SaveNoteInput) (schema.Note, error) {
	n := input.Note
	return f.engine.SaveNote(SaveNoteInput{
		NoteID:         n.NoteID,
		Title:          n.Title,
		NoteType:       n.NoteType,
		Tags:           n.Tags,
		Plugins:        n.Plugins,
		Document:       n.Document,
		Actor:          n.Author,
		OverrideReason: input.OverrideReason,
		ApprovedBy:     input.ApprovedBy,
		SourcePlugin:   input.SourcePlugin,
	})
}

func (f *pluginFacade) CreateProposal(ctx context.Context, p schema.Proposal) (schema.Proposal, error) {
	return f.engine.CreateProposal(p)
}

func (f *pluginFacade) GetNote(ctx context.Context, noteID string) (schema.Note, error) {
	n, _, err := f.engine.GetCanonicalNote(noteID)
	return n, err
}
