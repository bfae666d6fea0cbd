package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildIndexRehydratesCounts(t *testing.T) {
	e := newTestEngine(t)
	mustSaveNote(t, e, SaveNoteInput{Title: "One", Document: paragraphDoc("a")})
	mustSaveNote(t, e, SaveNoteInput{Title: "Two", Document: paragraphDoc("b")})

	stats, err := e.RebuildIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Notes)
	assert.GreaterOrEqual(t, stats.Events, 2)
}

func TestMigrateSectionIdentityVisitsEveryNote(t *testing.T) {
	e := newTestEngine(t)
	mustSaveNote(t, e, SaveNoteInput{Title: "One", Document: headingThenParagraphDoc("H", "B")})
	mustSaveNote(t, e, SaveNoteInput{Title: "Two", Document: paragraphDoc("c")})

	result, err := e.MigrateSectionIdentity()
	require.NoError(t, err)
	assert.Equal(t, 2, result.NotesVisited)
}
