package index

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/remcore/rem/internal/schema"
)

// EventFilter narrows ListEvents, mirroring the listEvents operation's options.
type EventFilter struct {
	Since      *time.Time
	Limit      int
	Type       string
	ActorKind  string
	ActorID    string
	EntityKind string
	EntityID   string
}

// InsertEvent adds a single event row. Events are immutable, so this is
// always an INSERT, never an upsert; replay during rebuild relies on
// event_id uniqueness to make re-insertion a no-op via INSERT OR IGNORE.
func (idx *Index) InsertEvent(e schema.Event) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(`INSERT OR IGNORE INTO events (event_id, timestamp, type, actor_kind, actor_id, entity_kind, entity_id, payload_json)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.EventID, formatRFC3339(e.Timestamp), e.Type, e.Actor.Kind, nullString(e.Actor.ID),
		e.Entity.Kind, e.Entity.ID, string(e.Payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns events matching filter in reverse-chronological order.
func (idx *Index) ListEvents(filter EventFilter) ([]schema.Event, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	query := `SELECT event_id, timestamp, type, actor_kind, actor_id, entity_kind, entity_id, payload_json FROM events WHERE 1=1`
	var args []any
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, formatRFC3339(*filter.Since))
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.ActorKind != "" {
		query += " AND actor_kind = ?"
		args = append(args, filter.ActorKind)
	}
	if filter.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filter.ActorID)
	}
	if filter.EntityKind != "" {
		query += " AND entity_kind = ?"
		args = append(args, filter.EntityKind)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	query += " ORDER BY timestamp DESC, event_id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []schema.Event
	for rows.Next() {
		var e schema.Event
		var ts, payload string
		var actorID sql.NullString
		if err := rows.Scan(&e.EventID, &ts, &e.Type, &e.Actor.Kind, &actorID, &e.Entity.Kind, &e.Entity.ID, &payload); err != nil {
			return nil, err
		}
		e.Actor.ID = actorID.String
		e.Payload = []byte(payload)
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		e.Timestamp = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEvents returns the total number of indexed events.
func (idx *Index) CountEvents() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var n int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// LastIndexedEventAt returns the timestamp of the most recently indexed
// event, or nil if none has been indexed yet.
func (idx *Index) LastIndexedEventAt() (*time.Time, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var ts sql.NullString
	err := idx.db.QueryRow(`SELECT MAX(timestamp) FROM events`).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
