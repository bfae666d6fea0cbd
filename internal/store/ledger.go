package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/remcore/rem/internal/schema"
)

const ledgerSchemaVersion = "v1"

func (s *Store) ledgerPath() string {
	return s.path("runtime", "scheduler-ledger.json")
}

// ReadLedger loads the scheduler ledger, returning an empty ledger if the
// file doesn't exist yet (a fresh store has run no scheduled tasks).
func (s *Store) ReadLedger() (schema.SchedulerLedger, error) {
	var l schema.SchedulerLedger
	data, err := os.ReadFile(s.ledgerPath())
	if os.IsNotExist(err) {
		return schema.SchedulerLedger{SchemaVersion: ledgerSchemaVersion}, nil
	}
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("parse ledger: %w", err)
	}
	return l, nil
}

// AppendLedgerEntry loads the ledger, appends entry if its dedupeKey is
// not already present, and rewrites the whole file atomically. The ledger
// is small (one entry per executed scheduler slot) so whole-file rewrite
// is the right primitive, matching the atomic-rename protocol used
// everywhere else in the store.
func (s *Store) AppendLedgerEntry(entry schema.SchedulerLedgerEntry) error {
	l, err := s.ReadLedger()
	if err != nil {
		return err
	}
	for _, e := range l.Entries {
		if e.DedupeKey == entry.DedupeKey {
			return nil // already present: idempotent no-op
		}
	}
	l.Entries = append(l.Entries, entry)
	l.UpdatedAt = time.Now().UTC()
	l.SchemaVersion = ledgerSchemaVersion

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return WriteFileAtomic(s.ledgerPath(), append(data, '\n'))
}

// HasDedupeKey reports whether the ledger already contains an entry for key.
func (s *Store) HasDedupeKey(key string) (bool, error) {
	l, err := s.ReadLedger()
	if err != nil {
		return false, err
	}
	for _, e := range l.Entries {
		if e.DedupeKey == key {
			return true, nil
		}
	}
	return false, nil
}
