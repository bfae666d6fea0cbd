package index

import (
	"testing"
	"time"

	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestUpsertAndSearchNotes(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now().UTC()
	note := schema.Note{
		NoteID: "n1", Title: "Sprint Plan", NoteType: "doc", Tags: []string{"work", "q3"},
		Author: schema.Actor{Kind: schema.ActorHuman}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, idx.UpsertNote(note, "roadmap and milestones"))

	results, err := idx.SearchNotes("roadmap", NoteFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "n1", results[0].NoteID)

	filtered, err := idx.ListNotes(NoteFilter{Tags: []string{"q3"}})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	none, err := idx.ListNotes(NoteFilter{Tags: []string{"nonexistent"}})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSectionsRoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	sections := []schema.Section{
		{SectionID: "s1", NoteID: "n1", HeadingText: "Plan", FallbackPath: []string{"Plan"}, Position: 0},
		{SectionID: "s2", NoteID: "n1", HeadingText: "Budget", FallbackPath: []string{"Plan", "Budget"}, Position: 1},
	}
	require.NoError(t, idx.UpsertSections("n1", sections))

	got, err := idx.ListSections("n1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "s2", got[1].SectionID)

	found, ok, err := idx.FindSectionByFallbackPath("n1", []string{"Plan", "Budget"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "s2", found.SectionID)
}

func TestProposalStatusLookup(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now().UTC()
	p := schema.Proposal{ID: "p1", Status: schema.ProposalOpen, Target: schema.ProposalTarget{NoteID: "n1"},
		ProposalType: schema.ProposalAnnotate, Actor: schema.Actor{Kind: schema.ActorHuman}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, idx.UpsertProposal(p))

	status, ok, err := idx.GetProposalStatus("p1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, schema.ProposalOpen, status)

	_, ok, err = idx.GetProposalStatus("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCountsStartAtZero(t *testing.T) {
	idx := newTestIndex(t)
	n, err := idx.CountNotes()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
