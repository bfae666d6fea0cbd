package store

import (
	"encoding/json"
	"fmt"

	"github.com/remcore/rem/internal/schema"
)

type proposalFile struct {
	ID           string                `json:"id"`
	Status       schema.ProposalStatus `json:"status"`
	Actor        schema.Actor          `json:"actor"`
	Target       schema.ProposalTarget `json:"target"`
	ProposalType schema.ProposalType   `json:"proposalType"`
	Rationale    string                `json:"rationale,omitempty"`
	Confidence   *float64              `json:"confidence,omitempty"`
	Source       string                `json:"source,omitempty"`
	CreatedAt    string                `json:"createdAt"`
	UpdatedAt    string                `json:"updatedAt"`
}

type proposalMetaFile struct {
	ID string `json:"id"`
}

func (s *Store) proposalPaths(id string) (proposal, content, meta string) {
	dir := s.path("proposals", id)
	return dir + "/proposal.json", dir + "/content.json", dir + "/meta.json"
}

// SaveProposal writes proposal.json, content.json and meta.json atomically.
func (s *Store) SaveProposal(p schema.Proposal) error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	proposalPath, contentPath, metaPath := s.proposalPaths(p.ID)

	pf := proposalFile{
		ID: p.ID, Status: p.Status, Actor: p.Actor, Target: p.Target,
		ProposalType: p.ProposalType, Rationale: p.Rationale, Confidence: p.Confidence,
		Source: p.Source, CreatedAt: formatTime(p.CreatedAt), UpdatedAt: formatTime(p.UpdatedAt),
	}
	pb, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	if err := WriteFileAtomic(proposalPath, append(pb, '\n')); err != nil {
		return err
	}

	cb, err := json.MarshalIndent(p.Content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal proposal content: %w", err)
	}
	if err := WriteFileAtomic(contentPath, append(cb, '\n')); err != nil {
		return err
	}

	mb, err := json.MarshalIndent(proposalMetaFile{ID: p.ID}, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(metaPath, append(mb, '\n'))
}

// GetProposal reads the canonical triple for id.
func (s *Store) GetProposal(id string) (schema.Proposal, error) {
	if err := ValidateID(id); err != nil {
		return schema.Proposal{}, err
	}
	proposalPath, contentPath, _ := s.proposalPaths(id)

	var pf proposalFile
	if err := readJSON(proposalPath, &pf); err != nil {
		return schema.Proposal{}, err
	}
	var content schema.ProposalContent
	if err := readJSON(contentPath, &content); err != nil {
		return schema.Proposal{}, err
	}
	createdAt, err := parseTime(pf.CreatedAt)
	if err != nil {
		return schema.Proposal{}, err
	}
	updatedAt, err := parseTime(pf.UpdatedAt)
	if err != nil {
		return schema.Proposal{}, err
	}
	return schema.Proposal{
		ID: pf.ID, Status: pf.Status, Actor: pf.Actor, Target: pf.Target,
		ProposalType: pf.ProposalType, Content: content, Rationale: pf.Rationale,
		Confidence: pf.Confidence, Source: pf.Source, CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}

// ProposalExists reports whether a proposal's canonical file is present.
func (s *Store) ProposalExists(id string) bool {
	proposalPath, _, _ := s.proposalPaths(id)
	return fileExists(proposalPath)
}

// ListProposalIDs enumerates every proposal directory under the store root.
func (s *Store) ListProposalIDs() ([]string, error) {
	return listDirNames(s.path("proposals"))
}
