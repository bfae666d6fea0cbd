package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/remcore/rem/internal/schema"
)

// UpsertPluginManifest replaces a plugin's manifest row.
func (idx *Index) UpsertPluginManifest(m schema.Manifest) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	now := nowRFC3339()
	_, err = idx.db.Exec(`INSERT INTO plugin_manifests (namespace, schema_version, registered_at, updated_at, manifest_json)
		VALUES (?,?,?,?,?)
		ON CONFLICT(namespace) DO UPDATE SET schema_version=excluded.schema_version, updated_at=excluded.updated_at, manifest_json=excluded.manifest_json`,
		m.Namespace, m.SchemaVersion, now, now, string(manifestJSON))
	if err != nil {
		return fmt.Errorf("upsert plugin manifest: %w", err)
	}
	return nil
}

// ListPluginManifests returns every registered plugin manifest.
func (idx *Index) ListPluginManifests() ([]schema.Manifest, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	rows, err := idx.db.Query(`SELECT manifest_json FROM plugin_manifests`)
	if err != nil {
		return nil, fmt.Errorf("list plugin manifests: %w", err)
	}
	defer rows.Close()

	var out []schema.Manifest
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m schema.Manifest
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountPlugins returns the total number of registered plugin manifests.
func (idx *Index) CountPlugins() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var n int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM plugin_manifests`).Scan(&n)
	return n, err
}

func nowRFC3339() string {
	return formatRFC3339(time.Now().UTC())
}
