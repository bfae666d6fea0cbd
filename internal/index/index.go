// Package index implements C3: the derived, fully rebuildable SQLite+FTS
// index over notes, sections, proposals, events, entities, and plugin
// manifests. The index is a cache, never a source of truth — every table
// here can be regenerated from the filesystem store (internal/store) and
// its event log by Rebuild.
package index

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
)

// Index wraps the single process-wide SQLite connection. The
// index has one connection guarded by its own mutex; callers never see a
// *sql.DB directly.
type Index struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or opens the SQLite database at dsn (a file path, or
// ":memory:" for tests) and ensures the schema exists.
func Open(dsn string) (*Index, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single process-wide connection
	idx := &Index{db: db}
	if err := idx.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) ensureSchema() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(n int) bool { return n != 0 }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
