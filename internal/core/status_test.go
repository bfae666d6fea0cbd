package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatusOKWhenIndexCurrent(t *testing.T) {
	e := newTestEngine(t)
	mustSaveNote(t, e, SaveNoteInput{Title: "One", Document: paragraphDoc("a")})

	status, err := e.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.OK)
	assert.Equal(t, 1, status.Notes)
	assert.Empty(t, status.HealthHints)
	assert.Equal(t, e.Root(), status.StoreRoot)
}
