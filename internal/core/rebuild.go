package core

import (
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/store"
)

// RebuildStats reports what a rebuildIndex run reconstructed.
type RebuildStats struct {
	Notes     int
	Proposals int
	Entities  int
	Plugins   int
	Events    int
}

// RebuildIndex truncates and rehydrates the derived index entirely from
// canonical files and the event log. Safe to run at any time; concurrent
// writers may race with a rebuild in progress, in which case a second
// rebuild converges the index.
func (e *Engine) RebuildIndex() (RebuildStats, error) {
	stats, err := e.index.Rebuild(e.store, store.ReadEventFile)
	if err != nil {
		return RebuildStats{}, rerr.Wrap(rerr.CodeIOFailure, err, "rebuild index")
	}
	return RebuildStats{
		Notes: stats.Notes, Proposals: stats.Proposals,
		Entities: stats.Entities, Plugins: stats.Plugins, Events: stats.Events,
	}, nil
}

// MigrateSectionIdentityResult reports how many notes had their section
// identity recomputed.
type MigrateSectionIdentityResult struct {
	NotesVisited int
}

// MigrateSectionIdentity re-extracts and reassigns section identity for
// every note in the store, against each note's own previous section index,
// and rewrites the derived sections the index exposes. It never rewrites a
// note's document or bumps sectionIndexVersion: the document is untouched,
// only the derived section map is recomputed and persisted.
func (e *Engine) MigrateSectionIdentity() (MigrateSectionIdentityResult, error) {
	ids, err := e.store.ListNoteIDs()
	if err != nil {
		return MigrateSectionIdentityResult{}, rerr.Wrap(rerr.CodeIOFailure, err, "list note ids")
	}
	var result MigrateSectionIdentityResult
	for _, id := range ids {
		unlock := e.store.Lock("note:" + id)
		note, prevSections, err := e.store.GetNote(id)
		if err != nil {
			unlock()
			return result, rerr.Wrap(rerr.CodeIOFailure, err, "load note %q", id)
		}
		sections := recomputeSections(id, note.Document, prevSections)
		if err := e.store.SaveNote(note, sections); err != nil {
			unlock()
			return result, rerr.Wrap(rerr.CodeIOFailure, err, "save note %q", id)
		}
		unlock()

		if err := e.index.UpsertSections(id, sections); err != nil {
			e.log.Warn().Err(err).Str("noteId", id).Msg("index sections upsert failed during migration")
		}
		plainText := richtext.ExtractPlainText(note.Document)
		if err := e.index.UpsertNote(note, plainText); err != nil {
			e.log.Warn().Err(err).Str("noteId", id).Msg("index note upsert failed during migration")
		}
		result.NotesVisited++
	}
	return result, nil
}
