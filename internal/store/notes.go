package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/schema"
)

type noteFile struct {
	NoteID   string            `json:"noteId"`
	Document richtext.Document `json:"document"`
}

type noteMetaFile struct {
	NoteID              string                     `json:"noteId"`
	Title               string                     `json:"title"`
	NoteType            string                     `json:"noteType"`
	Tags                []string                   `json:"tags"`
	Plugins             map[string]json.RawMessage `json:"plugins"`
	Author              schema.Actor               `json:"author"`
	CreatedAt           string                     `json:"createdAt"`
	UpdatedAt           string                     `json:"updatedAt"`
	SectionIndexVersion int                        `json:"sectionIndexVersion"`
}

type sectionsFile struct {
	NoteID   string           `json:"noteId"`
	Sections []schema.Section `json:"sections"`
}

func (s *Store) notePaths(id string) (note, meta, sections string) {
	dir := s.path("notes", id)
	return dir + "/note.json", dir + "/meta.json", dir + "/sections.json"
}

// SaveNote writes note.json, meta.json and sections.json atomically (each
// file is independently atomic; the triple becomes durable before the
// caller appends the corresponding event, preserving write ordering).
func (s *Store) SaveNote(n schema.Note, sections []schema.Section) error {
	if err := ValidateID(n.NoteID); err != nil {
		return err
	}
	notePath, metaPath, sectionsPath := s.notePaths(n.NoteID)

	nf := noteFile{NoteID: n.NoteID, Document: n.Document}
	nb, err := json.MarshalIndent(nf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	if err := WriteFileAtomic(notePath, append(nb, '\n')); err != nil {
		return err
	}

	mf := noteMetaFile{
		NoteID:              n.NoteID,
		Title:               n.Title,
		NoteType:            n.NoteType,
		Tags:                n.Tags,
		Plugins:             n.Plugins,
		Author:              n.Author,
		CreatedAt:           formatTime(n.CreatedAt),
		UpdatedAt:           formatTime(n.UpdatedAt),
		SectionIndexVersion: n.SectionIndexVersion,
	}
	mb, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal note meta: %w", err)
	}
	if err := WriteFileAtomic(metaPath, append(mb, '\n')); err != nil {
		return err
	}

	sf := sectionsFile{NoteID: n.NoteID, Sections: sections}
	sb, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	if err := WriteFileAtomic(sectionsPath, append(sb, '\n')); err != nil {
		return err
	}
	return nil
}

// GetNote reads the canonical triple for id and reassembles a schema.Note
// plus its section index. Returns os.ErrNotExist (wrapped) if the note
// does not exist.
func (s *Store) GetNote(id string) (schema.Note, []schema.Section, error) {
	if err := ValidateID(id); err != nil {
		return schema.Note{}, nil, err
	}
	notePath, metaPath, sectionsPath := s.notePaths(id)

	var nf noteFile
	if err := readJSON(notePath, &nf); err != nil {
		return schema.Note{}, nil, err
	}
	var mf noteMetaFile
	if err := readJSON(metaPath, &mf); err != nil {
		return schema.Note{}, nil, err
	}
	var sf sectionsFile
	if err := readJSON(sectionsPath, &sf); err != nil {
		// sections.json can lag behind a crash between the note/meta
		// writes and the sections write; treat absence as "no sections yet".
		if !os.IsNotExist(err) {
			return schema.Note{}, nil, err
		}
	}

	createdAt, err := parseTime(mf.CreatedAt)
	if err != nil {
		return schema.Note{}, nil, fmt.Errorf("parse createdAt: %w", err)
	}
	updatedAt, err := parseTime(mf.UpdatedAt)
	if err != nil {
		return schema.Note{}, nil, fmt.Errorf("parse updatedAt: %w", err)
	}

	note := schema.Note{
		NoteID:              nf.NoteID,
		Title:               mf.Title,
		NoteType:            mf.NoteType,
		Tags:                mf.Tags,
		Plugins:             mf.Plugins,
		Author:              mf.Author,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
		SectionIndexVersion: mf.SectionIndexVersion,
		Document:            nf.Document,
	}
	return note, sf.Sections, nil
}

// NoteExists reports whether a note's canonical note.json is present.
func (s *Store) NoteExists(id string) bool {
	notePath, _, _ := s.notePaths(id)
	return fileExists(notePath)
}

// ListNoteIDs enumerates every note directory under the store root.
func (s *Store) ListNoteIDs() ([]string, error) {
	return listDirNames(s.path("notes"))
}
