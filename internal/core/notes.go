package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/remcore/rem/internal/store"
)

// SaveNoteInput is the caller-supplied shape for saveNote. NoteID empty
// means create; non-empty updates an existing note.
type SaveNoteInput struct {
	NoteID         string
	Title          string
	NoteType       string
	Tags           []string
	Plugins        map[string]json.RawMessage
	Document       richtext.Document
	Actor          schema.Actor
	OverrideReason string
	ApprovedBy     string
	SourcePlugin   string
}

// SaveNote validates input, enforces the proposal-first policy for agent
// actors, writes the canonical note triple, upserts the index, and appends
// note.created or note.updated.
func (e *Engine) SaveNote(input SaveNoteInput) (schema.Note, error) {
	if input.Actor.Kind == schema.ActorAgent && (input.OverrideReason == "" || input.ApprovedBy == "") {
		return schema.Note{}, rerr.Err(rerr.CodePluginTrustViolate, "agent actor must use core.createProposal")
	}

	for ns, payload := range input.Plugins {
		p, found, err := e.loadPlugin(ns)
		if err != nil {
			return schema.Note{}, err
		}
		if !found {
			return schema.Note{}, rerr.Err(rerr.CodeMissingNamespace, "plugin namespace %q is not registered", ns)
		}
		if err := schema.ValidatePayload(p.Manifest.PayloadSchema, payload); err != nil {
			return schema.Note{}, rerr.Wrap(rerr.CodeInvalidInput, err, "plugins[%q] payload", ns)
		}
	}

	now := time.Now().UTC()
	var prev schema.Note
	var prevSections []schema.Section
	isCreate := input.NoteID == ""
	noteID := input.NoteID

	if isCreate {
		noteID = uuid.NewString()
	} else {
		if err := store.ValidateID(noteID); err != nil {
			return schema.Note{}, rerr.Wrap(rerr.CodeInvalidInput, err, "noteId")
		}
	}

	unlock := e.store.Lock("note:" + noteID)
	defer unlock()

	if !isCreate {
		if !e.store.NoteExists(noteID) {
			return schema.Note{}, rerr.Err(rerr.CodeNoteNotFound, "note %q not found", noteID)
		}
		var err error
		prev, prevSections, err = e.store.GetNote(noteID)
		if err != nil {
			return schema.Note{}, rerr.Wrap(rerr.CodeIOFailure, err, "load note %q", noteID)
		}
		if prev.NoteID != noteID {
			return schema.Note{}, rerr.Err(rerr.CodeNoteIDMismatch, "canonical note id %q does not match requested %q", prev.NoteID, noteID)
		}
	}

	note := schema.Note{
		NoteID:              noteID,
		Title:               input.Title,
		NoteType:            input.NoteType,
		Tags:                dedupeTags(input.Tags),
		Plugins:             input.Plugins,
		Author:              input.Actor,
		Document:            input.Document,
		CreatedAt:           now,
		UpdatedAt:           now,
		SectionIndexVersion: 1,
	}
	if !isCreate {
		note.CreatedAt = prev.CreatedAt
		note.SectionIndexVersion = prev.SectionIndexVersion + 1
		if note.Author == (schema.Actor{}) {
			note.Author = prev.Author
		}
	}

	sections := recomputeSections(noteID, note.Document, prevSections)

	if err := e.store.SaveNote(note, sections); err != nil {
		return schema.Note{}, rerr.Wrap(rerr.CodeIOFailure, err, "save note %q", noteID)
	}

	plainText := richtext.ExtractPlainText(note.Document)
	if err := e.index.UpsertNote(note, plainText); err != nil {
		e.log.Warn().Err(err).Str("noteId", noteID).Msg("index note upsert failed")
	}
	if err := e.index.UpsertSections(noteID, sections); err != nil {
		e.log.Warn().Err(err).Str("noteId", noteID).Msg("index sections upsert failed")
	}

	eventType := schema.EventNoteCreated
	if !isCreate {
		eventType = schema.EventNoteUpdated
	}
	payload := noteEventPayload{
		NoteID: noteID, Title: note.Title,
		OverrideReason: input.OverrideReason, ApprovedBy: input.ApprovedBy, SourcePlugin: input.SourcePlugin,
	}
	payloadJSON, _ := json.Marshal(payload)
	if _, err := e.appendEvent(schema.Event{
		Type:    eventType,
		Actor:   input.Actor,
		Entity:  schema.EventEntityRef{Kind: "note", ID: noteID},
		Payload: payloadJSON,
	}); err != nil {
		return schema.Note{}, err
	}

	e.enrichEntityLinks(noteID, plainText)

	return note, nil
}

type noteEventPayload struct {
	NoteID         string `json:"noteId"`
	Title          string `json:"title,omitempty"`
	OverrideReason string `json:"overrideReason,omitempty"`
	ApprovedBy     string `json:"approvedBy,omitempty"`
	SourcePlugin   string `json:"sourcePlugin,omitempty"`
	SourceProposalID string `json:"sourceProposalId,omitempty"`
}

// GetCanonicalNote returns the raw canonical note and its section index.
func (e *Engine) GetCanonicalNote(noteID string) (schema.Note, []schema.Section, error) {
	if !e.store.NoteExists(noteID) {
		return schema.Note{}, nil, rerr.Err(rerr.CodeNoteNotFound, "note %q not found", noteID)
	}
	n, sections, err := e.store.GetNote(noteID)
	if err != nil {
		return schema.Note{}, nil, rerr.Wrap(rerr.CodeIOFailure, err, "load note %q", noteID)
	}
	return n, sections, nil
}

// NoteFormat selects the rendering GetNote returns.
type NoteFormat string

const (
	FormatNoteLexical NoteFormat = "lexical"
	FormatNoteText    NoteFormat = "text"
	FormatNoteMD      NoteFormat = "md"
)

// GetNote renders a note's document in the requested format.
func (e *Engine) GetNote(noteID string, format NoteFormat) (string, error) {
	n, _, err := e.GetCanonicalNote(noteID)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatNoteText:
		return richtext.ExtractPlainText(n.Document), nil
	case FormatNoteMD:
		return richtext.ExtractMarkdown(n.Document), nil
	case FormatNoteLexical, "":
		b, err := json.Marshal(n.Document)
		if err != nil {
			return "", rerr.Wrap(rerr.CodeIOFailure, err, "marshal document")
		}
		return string(b), nil
	default:
		return "", rerr.Err(rerr.CodeInvalidFormat, "unknown format %q", format)
	}
}

// ListSections returns a note's section index.
func (e *Engine) ListSections(noteID string) ([]schema.Section, error) {
	if !e.store.NoteExists(noteID) {
		return nil, rerr.Err(rerr.CodeNoteNotFound, "note %q not found", noteID)
	}
	sections, err := e.index.ListSections(noteID)
	if err == nil && len(sections) > 0 {
		return sections, nil
	}
	_, sections, err = e.store.GetNote(noteID)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "load sections for %q", noteID)
	}
	return sections, nil
}

// FindSectionParams selects a section by id first, falling back to a
// fallback-path sequence.
type FindSectionParams struct {
	NoteID       string
	SectionID    string
	FallbackPath []string
}

// FindSection locates a section within a note by id, then by fallback path.
func (e *Engine) FindSection(p FindSectionParams) (schema.Section, error) {
	sections, err := e.ListSections(p.NoteID)
	if err != nil {
		return schema.Section{}, err
	}
	if p.SectionID != "" {
		for _, s := range sections {
			if s.SectionID == p.SectionID {
				return s, nil
			}
		}
	}
	if len(p.FallbackPath) > 0 {
		for _, s := range sections {
			if fallbackPathEqual(s.FallbackPath, p.FallbackPath) {
				return s, nil
			}
		}
	}
	return schema.Section{}, rerr.Err(rerr.CodeSectionNotFound, "section not found in note %q", p.NoteID)
}

func fallbackPathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SearchNotes delegates to the index's full-text search with structured
// filters.
func (e *Engine) SearchNotes(query string, filter index.NoteFilter) ([]index.NoteSummary, error) {
	results, err := e.index.SearchNotes(query, filter)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "search notes")
	}
	return results, nil
}

// ListEvents returns events matching filter in reverse-chronological order.
func (e *Engine) ListEvents(filter index.EventFilter) ([]schema.Event, error) {
	events, err := e.index.ListEvents(filter)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "list events")
	}
	return events, nil
}
