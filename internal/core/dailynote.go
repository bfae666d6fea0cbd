package core

import (
	"encoding/json"
	"time"

	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

const (
	dailyNotesNamespace = "daily-notes"
	dailyNoteType       = "daily"
)

// GetOrCreateDailyNote returns the day's note for (now, timeZone), creating
// it on first call. The note id is deterministic ("daily-YYYY-MM-DD" in the
// given zone), so concurrent callers serialize on the same lock key and
// exactly one produces created=true.
func (e *Engine) GetOrCreateDailyNote(now time.Time, timeZone string) (schema.Note, bool, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return schema.Note{}, false, rerr.Wrap(rerr.CodeInvalidInput, err, "timeZone %q", timeZone)
	}
	date := now.In(loc).Format("2006-01-02")
	noteID := "daily-" + date

	unlock := e.store.Lock("daily:" + date)
	defer unlock()

	if e.store.NoteExists(noteID) {
		note, _, err := e.store.GetNote(noteID)
		if err != nil {
			return schema.Note{}, false, rerr.Wrap(rerr.CodeIOFailure, err, "load daily note %q", noteID)
		}
		if note.NoteType != dailyNoteType {
			return schema.Note{}, false, rerr.Err(rerr.CodeDailyNoteIDConflict, "note %q already exists and is not a daily note", noteID)
		}
		return note, false, nil
	}

	if err := e.ensureDailyNotesPlugin(); err != nil {
		return schema.Note{}, false, err
	}

	doc := richtext.Document{
		Root: richtext.Node{
			Type: "root",
			Children: []richtext.Node{
				{Type: "heading", Tag: "h1", Children: []richtext.Node{{Type: "text", Text: date}}},
			},
		},
	}
	nowUTC := time.Now().UTC()
	note := schema.Note{
		NoteID:              noteID,
		Title:               date,
		NoteType:            dailyNoteType,
		Tags:                []string{dailyNotesNamespace},
		Author:              schema.Actor{Kind: schema.ActorHuman},
		Document:            doc,
		CreatedAt:           nowUTC,
		UpdatedAt:           nowUTC,
		SectionIndexVersion: 1,
	}
	sections := recomputeSections(noteID, note.Document, nil)

	if err := e.store.SaveNote(note, sections); err != nil {
		return schema.Note{}, false, rerr.Wrap(rerr.CodeIOFailure, err, "save daily note %q", noteID)
	}
	plainText := richtext.ExtractPlainText(note.Document)
	if err := e.index.UpsertNote(note, plainText); err != nil {
		e.log.Warn().Err(err).Str("noteId", noteID).Msg("index note upsert failed")
	}
	if err := e.index.UpsertSections(noteID, sections); err != nil {
		e.log.Warn().Err(err).Str("noteId", noteID).Msg("index sections upsert failed")
	}

	payload, _ := json.Marshal(noteEventPayload{NoteID: noteID, Title: note.Title, SourcePlugin: dailyNotesNamespace})
	if _, err := e.appendEvent(schema.Event{
		Type:    schema.EventNoteCreated,
		Actor:   note.Author,
		Entity:  schema.EventEntityRef{Kind: "note", ID: noteID},
		Payload: payload,
	}); err != nil {
		return schema.Note{}, false, err
	}

	e.enrichEntityLinks(noteID, plainText)
	return note, true, nil
}

// ensureDailyNotesPlugin registers, installs, and enables a built-in
// daily-notes manifest the first time a daily note is requested, so the
// lifecycle invariants hold for it just like any other plugin.
func (e *Engine) ensureDailyNotesPlugin() error {
	_, found, err := e.loadPlugin(dailyNotesNamespace)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	manifest := schema.Manifest{Namespace: dailyNotesNamespace, SchemaVersion: "v1"}
	if _, err := e.registry.Register(manifest); err != nil {
		return err
	}
	if _, err := e.registry.Install(dailyNotesNamespace); err != nil {
		return err
	}
	if _, err := e.registry.Enable(dailyNotesNamespace); err != nil {
		return err
	}
	return nil
}
