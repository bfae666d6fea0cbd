package index

import (
	"database/sql"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

// UpsertEntity replaces an entity's row, its link rows, and its
// entities_fts entry. ftsBody is the text built from the fields the owning
// entity type declared in its indexes.textFields; an empty ftsBody leaves
// no entities_fts entry.
func (idx *Index) UpsertEntity(e schema.Entity, ftsBody string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO entities (namespace, entity_type, entity_id, schema_version, updated_at, data_json)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(namespace, entity_type, entity_id) DO UPDATE SET
			schema_version=excluded.schema_version, updated_at=excluded.updated_at, data_json=excluded.data_json`,
		e.Namespace, e.EntityType, e.ID, e.SchemaVersion, formatRFC3339(e.Meta.UpdatedAt), string(e.Data)); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM entity_links WHERE namespace=? AND entity_type=? AND entity_id=?`, e.Namespace, e.EntityType, e.ID); err != nil {
		return err
	}
	for _, l := range e.Meta.Links {
		if _, err := tx.Exec(`INSERT INTO entity_links (namespace, entity_type, entity_id, link_kind, note_id, target_ns, target_type, target_id)
			VALUES (?,?,?,?,?,?,?,?)`,
			e.Namespace, e.EntityType, e.ID, l.Kind, nullString(l.NoteID), nullString(l.TargetNS), nullString(l.TargetType), nullString(l.TargetID)); err != nil {
			return fmt.Errorf("insert entity link: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM entities_fts WHERE namespace=? AND entity_type=? AND entity_id=?`, e.Namespace, e.EntityType, e.ID); err != nil {
		return err
	}
	if ftsBody != "" {
		if _, err := tx.Exec(`INSERT INTO entities_fts (namespace, entity_type, entity_id, body) VALUES (?,?,?,?)`,
			e.Namespace, e.EntityType, e.ID, ftsBody); err != nil {
			return fmt.Errorf("upsert entities_fts: %w", err)
		}
	}

	return tx.Commit()
}

// GetEntityRow returns the indexed (schemaVersion, dataJSON) for an
// entity, with found=false when the index has no row for it.
func (idx *Index) GetEntityRow(namespace, entityType, id string) (schemaVersion string, dataJSON []byte, found bool, err error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var data string
	dbErr := idx.db.QueryRow(`SELECT schema_version, data_json FROM entities WHERE namespace=? AND entity_type=? AND entity_id=?`,
		namespace, entityType, id).Scan(&schemaVersion, &data)
	if dbErr == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if dbErr != nil {
		return "", nil, false, dbErr
	}
	return schemaVersion, []byte(data), true, nil
}

// ListEntities returns entities owned by (namespace, entityType).
func (idx *Index) ListEntities(namespace, entityType string) ([]schema.Entity, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rows, err := idx.db.Query(`SELECT entity_id, schema_version, data_json, updated_at FROM entities WHERE namespace=? AND entity_type=?`, namespace, entityType)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []schema.Entity
	for rows.Next() {
		var e schema.Entity
		var data, updatedAt string
		if err := rows.Scan(&e.ID, &e.SchemaVersion, &data, &updatedAt); err != nil {
			return nil, err
		}
		e.Namespace = namespace
		e.EntityType = entityType
		e.Data = []byte(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntity removes an entity and its derived rows (not part of the
// public spec surface).
func (idx *Index) DeleteEntity(namespace, entityType, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM entities WHERE namespace=? AND entity_type=? AND entity_id=?`,
		`DELETE FROM entity_links WHERE namespace=? AND entity_type=? AND entity_id=?`,
		`DELETE FROM entities_fts WHERE namespace=? AND entity_type=? AND entity_id=?`,
	} {
		if _, err := tx.Exec(stmt, namespace, entityType, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
