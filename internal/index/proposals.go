package index

import (
	"database/sql"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

// ProposalFilter narrows ListProposals.
type ProposalFilter struct {
	NoteID string
	Status schema.ProposalStatus
	Limit  int
}

// ProposalSummary is the projection listProposals returns.
type ProposalSummary struct {
	ID           string
	Status       schema.ProposalStatus
	NoteID       string
	SectionID    string
	ProposalType schema.ProposalType
	Actor        schema.Actor
	CreatedAt    string
	UpdatedAt    string
}

// UpsertProposal replaces a proposal's index row.
func (idx *Index) UpsertProposal(p schema.Proposal) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(`INSERT INTO proposals (id, status, note_id, section_id, proposal_type, actor_kind, actor_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, section_id=excluded.section_id, updated_at=excluded.updated_at`,
		p.ID, string(p.Status), p.Target.NoteID, nullString(p.Target.SectionID), string(p.ProposalType),
		p.Actor.Kind, nullString(p.Actor.ID), formatRFC3339(p.CreatedAt), formatRFC3339(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert proposal: %w", err)
	}
	return nil
}

// GetProposalStatus returns the indexed status for id, with found=false
// when the index has no row for it.
func (idx *Index) GetProposalStatus(id string) (schema.ProposalStatus, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var status string
	err := idx.db.QueryRow(`SELECT status FROM proposals WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return schema.ProposalStatus(status), true, nil
}

// ListProposals returns proposals matching filter, most-recently-updated first.
func (idx *Index) ListProposals(filter ProposalFilter) ([]ProposalSummary, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	query := `SELECT id, status, note_id, section_id, proposal_type, actor_kind, actor_id, created_at, updated_at FROM proposals WHERE 1=1`
	var args []any
	if filter.NoteID != "" {
		query += " AND note_id = ?"
		args = append(args, filter.NoteID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY updated_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []ProposalSummary
	for rows.Next() {
		var s ProposalSummary
		var status, sectionID, actorID string
		var sectionIDNull, actorIDNull sql.NullString
		if err := rows.Scan(&s.ID, &status, &s.NoteID, &sectionIDNull, &s.ProposalType, &s.Actor.Kind, &actorIDNull, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sectionID = sectionIDNull.String
		actorID = actorIDNull.String
		s.Status = schema.ProposalStatus(status)
		s.SectionID = sectionID
		s.Actor.ID = actorID
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountProposals returns the total number of indexed proposals.
func (idx *Index) CountProposals() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var n int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM proposals`).Scan(&n)
	return n, err
}
