package core

import (
	"testing"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveNoteCreateThenUpdate(t *testing.T) {
	e := newTestEngine(t)

	created := mustSaveNote(t, e, SaveNoteInput{
		Title: "First", NoteType: "generic", Tags: []string{"a", "b"},
		Actor: schema.Actor{Kind: schema.ActorHuman}, Document: paragraphDoc("v1"),
	})
	require.NotEmpty(t, created.NoteID)
	assert.Equal(t, 1, created.SectionIndexVersion)

	updated, err := e.SaveNote(SaveNoteInput{
		NoteID: created.NoteID, Title: "Second", NoteType: "generic",
		Actor: schema.Actor{Kind: schema.ActorHuman}, Document: paragraphDoc("v2"),
	})
	require.NoError(t, err)
	assert.Equal(t, created.NoteID, updated.NoteID)
	assert.Equal(t, "Second", updated.Title)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 2, updated.SectionIndexVersion)
}

func TestSaveNoteRejectsAgentWithoutOverride(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SaveNote(SaveNoteInput{
		Title: "X", Actor: schema.Actor{Kind: schema.ActorAgent, ID: "bot"}, Document: paragraphDoc("v1"),
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginTrustViolate, rerr.CodeOf(err))
}

func TestSaveNoteUpdateUnknownIDFails(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SaveNote(SaveNoteInput{NoteID: "does-not-exist", Document: paragraphDoc("x")})
	require.Error(t, err)
}

func TestGetNoteFormats(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{
		Title: "Doc", Document: headingThenParagraphDoc("Heading", "Body text"),
	})

	text, err := e.GetNote(note.NoteID, FormatNoteText)
	require.NoError(t, err)
	assert.Contains(t, text, "Body text")

	lexical, err := e.GetNote(note.NoteID, FormatNoteLexical)
	require.NoError(t, err)
	assert.Contains(t, lexical, "\"root\"")

	md, err := e.GetNote(note.NoteID, FormatNoteMD)
	require.NoError(t, err)
	assert.Contains(t, md, "Heading")
}

func TestListSectionsAndFindSection(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{
		Title: "Sectioned", Document: headingThenParagraphDoc("Intro", "Body"),
	})

	sections, err := e.ListSections(note.NoteID)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	found, err := e.FindSection(FindSectionParams{NoteID: note.NoteID, SectionID: sections[0].SectionID})
	require.NoError(t, err)
	assert.Equal(t, sections[0].SectionID, found.SectionID)

	_, err = e.FindSection(FindSectionParams{NoteID: note.NoteID, SectionID: "nope"})
	require.Error(t, err)
}

func TestSearchNotesFiltersByTag(t *testing.T) {
	e := newTestEngine(t)
	mustSaveNote(t, e, SaveNoteInput{Title: "Tagged", Tags: []string{"project"}, Document: paragraphDoc("alpha project notes")})
	mustSaveNote(t, e, SaveNoteInput{Title: "Untagged", Document: paragraphDoc("alpha unrelated notes")})

	results, err := e.SearchNotes("alpha", index.NoteFilter{Tags: []string{"project"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Tagged", results[0].Title)
}

func TestListEventsAfterNoteCreate(t *testing.T) {
	e := newTestEngine(t)
	note := mustSaveNote(t, e, SaveNoteInput{Title: "Evented", Document: paragraphDoc("x")})

	events, err := e.ListEvents(index.EventFilter{EntityKind: "note", EntityID: note.NoteID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schema.EventNoteCreated, events[0].Type)
}
