package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(dir)
}

func TestSaveAndGetNoteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	note := schema.Note{
		NoteID: "n1", Title: "Sprint", NoteType: "doc", Tags: []string{"work"},
		Author: schema.Actor{Kind: schema.ActorHuman}, CreatedAt: now, UpdatedAt: now,
		Document: richtext.Document{Root: richtext.Node{Children: []richtext.Node{
			{Type: "paragraph", Children: []richtext.Node{{Type: "text", Text: "First"}}},
		}}},
	}
	sections := []schema.Section{{SectionID: "s1", NoteID: "n1", HeadingText: "Intro"}}

	require.NoError(t, s.SaveNote(note, sections))
	require.True(t, s.NoteExists("n1"))

	got, gotSections, err := s.GetNote("n1")
	require.NoError(t, err)
	require.Equal(t, "Sprint", got.Title)
	require.Equal(t, []string{"work"}, got.Tags)
	require.Len(t, gotSections, 1)
	require.Equal(t, "s1", gotSections[0].SectionID)
}

func TestRejectsUnsafeIDs(t *testing.T) {
	s := newTestStore(t)
	note := schema.Note{NoteID: "../escape"}
	err := s.SaveNote(note, nil)
	require.Error(t, err)
}

func TestAppendAndReadEventsTruncatedFinalLine(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	e1 := schema.Event{EventID: "e1", SchemaVersion: "v1", Timestamp: ts, Type: schema.EventNoteCreated,
		Entity: schema.EventEntityRef{Kind: "note", ID: "n1"}, Payload: []byte(`{}`)}
	require.NoError(t, s.AppendEvent(e1))

	paths, err := s.EventFilePaths()
	require.NoError(t, err)
	require.Len(t, paths, 1)

	// Simulate a crash mid-write of a second event: append a truncated JSON line.
	f, err := os.OpenFile(paths[0], os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"eventId":"e2","type":"note.upd`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := s.ReadAllEvents()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "e1", events[0].EventID)
}

func TestLedgerIdempotentAppend(t *testing.T) {
	s := newTestStore(t)
	entry := schema.SchedulerLedgerEntry{DedupeKey: "ns:task:calendar_slot:slot1", Namespace: "ns", TaskID: "task"}
	require.NoError(t, s.AppendLedgerEntry(entry))
	require.NoError(t, s.AppendLedgerEntry(entry))

	l, err := s.ReadLedger()
	require.NoError(t, err)
	require.Len(t, l.Entries, 1)
}

func TestLockSerializesSameKey(t *testing.T) {
	s := newTestStore(t)
	unlock := s.Lock("note:n1")
	done := make(chan struct{})
	go func() {
		unlock2 := s.Lock("note:n1")
		unlock2()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired before first was released")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`)))

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "file.json", entries[0].Name())
}
