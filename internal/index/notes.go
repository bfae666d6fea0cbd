package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/remcore/rem/internal/schema"
)

// NoteFilter narrows ListNotes/SearchNotes results, mirroring searchNotes's
// options.
type NoteFilter struct {
	Tags             []string
	NoteTypes        []string
	PluginNamespaces []string
	CreatedSince     *time.Time
	CreatedUntil     *time.Time
	UpdatedSince     *time.Time
	UpdatedUntil     *time.Time
	Limit            int
}

// NoteSummary is the projection ListNotes/SearchNotes return: enough to
// render a result list without a round-trip to the canonical store.
type NoteSummary struct {
	NoteID    string
	Title     string
	NoteType  string
	Author    schema.Actor
	CreatedAt time.Time
	UpdatedAt time.Time
	Tags      []string
	Plugins   []string
}

// UpsertNote replaces a note's index rows: the notes row, its tag and
// plugin-namespace rows, and its notes_fts entry. Section rows are written
// separately by UpsertSections. plainText is the extracted body used for
// full-text search.
func (idx *Index) UpsertNote(n schema.Note, plainText string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	pluginsJSON, err := json.Marshal(n.Plugins)
	if err != nil {
		return fmt.Errorf("marshal plugins: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO notes (id, title, note_type, author_kind, author_id, created_at, updated_at, plugins_json)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, note_type=excluded.note_type,
			author_kind=excluded.author_kind, author_id=excluded.author_id,
			updated_at=excluded.updated_at, plugins_json=excluded.plugins_json`,
		n.NoteID, n.Title, n.NoteType, n.Author.Kind, nullString(n.Author.ID),
		formatRFC3339(n.CreatedAt), formatRFC3339(n.UpdatedAt), string(pluginsJSON)); err != nil {
		return fmt.Errorf("upsert notes: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, n.NoteID); err != nil {
		return err
	}
	for _, tag := range n.Tags {
		if _, err := tx.Exec(`INSERT INTO note_tags (note_id, tag) VALUES (?,?)`, n.NoteID, tag); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM note_plugins WHERE note_id = ?`, n.NoteID); err != nil {
		return err
	}
	for ns := range n.Plugins {
		if _, err := tx.Exec(`INSERT INTO note_plugins (note_id, namespace) VALUES (?,?)`, n.NoteID, ns); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, n.NoteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (note_id, title, body) VALUES (?,?,?)`, n.NoteID, n.Title, plainText); err != nil {
		return fmt.Errorf("upsert notes_fts: %w", err)
	}

	return tx.Commit()
}

// DeleteNote removes a note and all its derived rows.
func (idx *Index) DeleteNote(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM notes WHERE id = ?`,
		`DELETE FROM note_tags WHERE note_id = ?`,
		`DELETE FROM note_plugins WHERE note_id = ?`,
		`DELETE FROM notes_fts WHERE note_id = ?`,
		`DELETE FROM sections WHERE note_id = ?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListNotes returns notes matching filter, most-recently-updated first.
func (idx *Index) ListNotes(filter NoteFilter) ([]NoteSummary, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	query, args := buildNoteFilterQuery(filter)
	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	return scanNoteSummaries(idx.db, rows)
}

// SearchNotes runs a notes_fts MATCH query scoped by filter.
func (idx *Index) SearchNotes(ftsQuery string, filter NoteFilter) ([]NoteSummary, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := idx.db.Query(`
		SELECT n.id, n.title, n.note_type, n.author_kind, n.author_id, n.created_at, n.updated_at
		FROM notes_fts f
		JOIN notes n ON n.id = f.note_id
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()
	summaries, err := scanNoteSummaries(idx.db, rows)
	if err != nil {
		return nil, err
	}
	return filterSummaries(summaries, filter), nil
}

// CountNotes returns the total number of indexed notes.
func (idx *Index) CountNotes() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var n int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}

func buildNoteFilterQuery(f NoteFilter) (string, []any) {
	var b strings.Builder
	var args []any
	b.WriteString(`SELECT id, title, note_type, author_kind, author_id, created_at, updated_at FROM notes WHERE 1=1`)

	if len(f.NoteTypes) > 0 {
		b.WriteString(" AND note_type IN (" + placeholders(len(f.NoteTypes)) + ")")
		for _, t := range f.NoteTypes {
			args = append(args, t)
		}
	}
	if f.CreatedSince != nil {
		b.WriteString(" AND created_at >= ?")
		args = append(args, formatRFC3339(*f.CreatedSince))
	}
	if f.CreatedUntil != nil {
		b.WriteString(" AND created_at <= ?")
		args = append(args, formatRFC3339(*f.CreatedUntil))
	}
	if f.UpdatedSince != nil {
		b.WriteString(" AND updated_at >= ?")
		args = append(args, formatRFC3339(*f.UpdatedSince))
	}
	if f.UpdatedUntil != nil {
		b.WriteString(" AND updated_at <= ?")
		args = append(args, formatRFC3339(*f.UpdatedUntil))
	}
	if len(f.Tags) > 0 {
		b.WriteString(" AND id IN (SELECT note_id FROM note_tags WHERE tag IN (" + placeholders(len(f.Tags)) + "))")
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if len(f.PluginNamespaces) > 0 {
		b.WriteString(" AND id IN (SELECT note_id FROM note_plugins WHERE namespace IN (" + placeholders(len(f.PluginNamespaces)) + "))")
		for _, ns := range f.PluginNamespaces {
			args = append(args, ns)
		}
	}
	b.WriteString(" ORDER BY updated_at DESC")
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanNoteSummaries(db *sql.DB, rows *sql.Rows) ([]NoteSummary, error) {
	var out []NoteSummary
	for rows.Next() {
		var s NoteSummary
		var authorID sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&s.NoteID, &s.Title, &s.NoteType, &s.Author.Kind, &authorID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.Author.ID = authorID.String
		var err error
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, err
		}
		tagRows, err := db.Query(`SELECT tag FROM note_tags WHERE note_id = ?`, s.NoteID)
		if err != nil {
			return nil, err
		}
		for tagRows.Next() {
			var tag string
			if err := tagRows.Scan(&tag); err != nil {
				tagRows.Close()
				return nil, err
			}
			s.Tags = append(s.Tags, tag)
		}
		tagRows.Close()

		pluginRows, err := db.Query(`SELECT namespace FROM note_plugins WHERE note_id = ?`, s.NoteID)
		if err != nil {
			return nil, err
		}
		for pluginRows.Next() {
			var ns string
			if err := pluginRows.Scan(&ns); err != nil {
				pluginRows.Close()
				return nil, err
			}
			s.Plugins = append(s.Plugins, ns)
		}
		pluginRows.Close()

		out = append(out, s)
	}
	return out, rows.Err()
}

func filterSummaries(in []NoteSummary, f NoteFilter) []NoteSummary {
	if len(f.NoteTypes) == 0 && len(f.Tags) == 0 && len(f.PluginNamespaces) == 0 &&
		f.CreatedSince == nil && f.CreatedUntil == nil && f.UpdatedSince == nil && f.UpdatedUntil == nil {
		return in
	}
	var out []NoteSummary
	for _, s := range in {
		if (f.CreatedSince != nil && s.CreatedAt.Before(*f.CreatedSince)) || (f.CreatedUntil != nil && s.CreatedAt.After(*f.CreatedUntil)) {
			continue
		}
		if (f.UpdatedSince != nil && s.UpdatedAt.Before(*f.UpdatedSince)) || (f.UpdatedUntil != nil && s.UpdatedAt.After(*f.UpdatedUntil)) {
			continue
		}
		if len(f.NoteTypes) > 0 && !containsStr(f.NoteTypes, s.NoteType) {
			continue
		}
		if len(f.Tags) > 0 && !anyContains(f.Tags, s.Tags) {
			continue
		}
		if len(f.PluginNamespaces) > 0 && !anyContains(f.PluginNamespaces, s.Plugins) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func anyContains(want, have []string) bool {
	for _, w := range want {
		if containsStr(have, w) {
			return true
		}
	}
	return false
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
