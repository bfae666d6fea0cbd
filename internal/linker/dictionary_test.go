package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeFoldsCaseAndJoiners(t *testing.T) {
	assert.Equal(t, "o'brien", Canonicalize("O'Brien"))
	assert.Equal(t, "new york", Canonicalize("New   York"))
}

func TestScanFindsRegisteredEntity(t *testing.T) {
	dict, err := Compile([]EntityRef{
		{Namespace: "people", EntityType: "person", EntityID: "alice", Label: "Alice"},
	})
	require.NoError(t, err)

	matches := dict.Scan("Meeting notes: Alice will lead the sprint.")
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].Entity.EntityID)
	assert.Equal(t, "Alice", matches[0].Surface)
}

func TestScanNoMatchesWhenDictionaryEmpty(t *testing.T) {
	dict, err := Compile(nil)
	require.NoError(t, err)
	assert.Empty(t, dict.Scan("anything at all"))
}
