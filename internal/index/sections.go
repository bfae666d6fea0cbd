package index

import (
	"encoding/json"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

// UpsertSections replaces every section row for noteId.
func (idx *Index) UpsertSections(noteID string, sections []schema.Section) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sections WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	for _, s := range sections {
		pathJSON, err := json.Marshal(s.FallbackPath)
		if err != nil {
			return fmt.Errorf("marshal fallback path: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO sections (note_id, section_id, position, heading_text, heading_level, start_idx, end_idx, fallback_path_json)
			VALUES (?,?,?,?,?,?,?,?)`,
			noteID, s.SectionID, s.Position, s.HeadingText, s.HeadingLevel, s.StartNodeIndex, s.EndNodeIndex, string(pathJSON)); err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
	}
	return tx.Commit()
}

// ListSections returns every section of noteId in document order.
func (idx *Index) ListSections(noteID string) ([]schema.Section, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query(`SELECT section_id, position, heading_text, heading_level, start_idx, end_idx, fallback_path_json
		FROM sections WHERE note_id = ? ORDER BY position`, noteID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []schema.Section
	for rows.Next() {
		var s schema.Section
		var pathJSON string
		s.NoteID = noteID
		if err := rows.Scan(&s.SectionID, &s.Position, &s.HeadingText, &s.HeadingLevel, &s.StartNodeIndex, &s.EndNodeIndex, &pathJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(pathJSON), &s.FallbackPath); err != nil {
			return nil, fmt.Errorf("unmarshal fallback path: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindSectionByID returns the section with sectionId within noteId, if any.
func (idx *Index) FindSectionByID(noteID, sectionID string) (schema.Section, bool, error) {
	sections, err := idx.ListSections(noteID)
	if err != nil {
		return schema.Section{}, false, err
	}
	for _, s := range sections {
		if s.SectionID == sectionID {
			return s, true, nil
		}
	}
	return schema.Section{}, false, nil
}

// FindSectionByFallbackPath returns the section whose fallbackPath matches
// path exactly, if any.
func (idx *Index) FindSectionByFallbackPath(noteID string, path []string) (schema.Section, bool, error) {
	sections, err := idx.ListSections(noteID)
	if err != nil {
		return schema.Section{}, false, err
	}
	for _, s := range sections {
		if pathEqual(s.FallbackPath, path) {
			return s, true, nil
		}
	}
	return schema.Section{}, false, nil
}

func pathEqual(a, b []string) bool {
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
