package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateDailyNoteIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, created, err := e.GetOrCreateDailyNote(now, "UTC")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "daily-2026-03-01", first.NoteID)

	second, created, err := e.GetOrCreateDailyNote(now, "UTC")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.NoteID, second.NoteID)
}

func TestGetOrCreateDailyNoteRejectsBadTimeZone(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.GetOrCreateDailyNote(time.Now(), "Not/AZone")
	require.Error(t, err)
}
