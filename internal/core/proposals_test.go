package core

import (
	"encoding/json"
	"testing"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textContent(t *testing.T, text string) schema.ProposalContent {
	t.Helper()
	raw, err := json.Marshal(text)
	require.NoError(t, err)
	return schema.ProposalContent{Format: schema.FormatText, Content: raw}
}

func TestCreateProposalRejectsUnknownNote(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateProposal(schema.Proposal{
		Target:       schema.ProposalTarget{NoteID: "missing"},
		ProposalType: schema.ProposalAnnotate,
		Content:      textContent(t, "hello"),
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodeNoteNotFound, rerr.CodeOf(err))
}

func TestAcceptProposalAnnotateAppendsAndTags(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{Title: "Base", Document: paragraphDoc("original")})

	p, err := e.CreateProposal(schema.Proposal{
		Actor:        schema.Actor{Kind: schema.ActorAgent, ID: "bot"},
		Target:       schema.ProposalTarget{NoteID: note.NoteID},
		ProposalType: schema.ProposalAnnotate,
		Content: schema.ProposalContent{
			Format: schema.FormatText, Content: mustMarshal(t, "addendum"),
			TagsToAdd: []string{"reviewed"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, schema.ProposalOpen, p.Status)

	accepted, updatedNote, err := e.AcceptProposal(p.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProposalAccepted, accepted.Status)
	assert.Contains(t, updatedNote.Tags, "reviewed")

	text, err := e.GetNote(note.NoteID, FormatNoteText)
	require.NoError(t, err)
	assert.Contains(t, text, "original")
	assert.Contains(t, text, "addendum")
}

func TestAcceptProposalReplaceSectionRequiresTarget(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{Title: "Base", Document: paragraphDoc("original")})

	p, err := e.CreateProposal(schema.Proposal{
		Target:       schema.ProposalTarget{NoteID: note.NoteID},
		ProposalType: schema.ProposalReplaceSection,
		Content:      textContent(t, "replacement"),
	})
	require.NoError(t, err)

	_, _, err = e.AcceptProposal(p.ID)
	require.Error(t, err)
	assert.Equal(t, rerr.CodeSectionNotFound, rerr.CodeOf(err))
}

func TestRejectProposalIsTerminal(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{Title: "Base", Document: paragraphDoc("x")})
	p, err := e.CreateProposal(schema.Proposal{
		Target: schema.ProposalTarget{NoteID: note.NoteID}, ProposalType: schema.ProposalAnnotate,
		Content: textContent(t, "y"),
	})
	require.NoError(t, err)

	rejected, err := e.RejectProposal(p.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ProposalRejected, rejected.Status)

	_, err = e.RejectProposal(p.ID)
	require.Error(t, err)
	assert.Equal(t, rerr.CodeInvalidTransition, rerr.CodeOf(err))
}

func TestListProposalsFiltersByStatus(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{Title: "Base", Document: paragraphDoc("x")})
	p1, err := e.CreateProposal(schema.Proposal{Target: schema.ProposalTarget{NoteID: note.NoteID}, ProposalType: schema.ProposalAnnotate, Content: textContent(t, "a")})
	require.NoError(t, err)
	_, err = e.CreateProposal(schema.Proposal{Target: schema.ProposalTarget{NoteID: note.NoteID}, ProposalType: schema.ProposalAnnotate, Content: textContent(t, "b")})
	require.NoError(t, err)

	_, err = e.RejectProposal(p1.ID)
	require.NoError(t, err)

	open, err := e.ListProposals(index.ProposalFilter{NoteID: note.NoteID, Status: schema.ProposalOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
