package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

// CreateProposal assigns a fresh id (if none given) and persists a new
// open proposal.
func (e *Engine) CreateProposal(p schema.Proposal) (schema.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if !e.store.NoteExists(p.Target.NoteID) {
		return schema.Proposal{}, rerr.Err(rerr.CodeNoteNotFound, "note %q not found", p.Target.NoteID)
	}
	now := time.Now().UTC()
	p.Status = schema.ProposalOpen
	p.CreatedAt, p.UpdatedAt = now, now

	if err := e.store.SaveProposal(p); err != nil {
		return schema.Proposal{}, rerr.Wrap(rerr.CodeIOFailure, err, "save proposal %q", p.ID)
	}
	if err := e.index.UpsertProposal(p); err != nil {
		e.log.Warn().Err(err).Str("proposalId", p.ID).Msg("index proposal upsert failed")
	}
	return p, nil
}

// GetProposal returns a proposal by id.
func (e *Engine) GetProposal(id string) (schema.Proposal, error) {
	if !e.store.ProposalExists(id) {
		return schema.Proposal{}, rerr.Err(rerr.CodeProposalNotFound, "proposal %q not found", id)
	}
	p, err := e.store.GetProposal(id)
	if err != nil {
		return schema.Proposal{}, rerr.Wrap(rerr.CodeIOFailure, err, "load proposal %q", id)
	}
	return p, nil
}

// ListProposals delegates to the index.
func (e *Engine) ListProposals(filter index.ProposalFilter) ([]index.ProposalSummary, error) {
	out, err := e.index.ListProposals(filter)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "list proposals")
	}
	return out, nil
}

// RejectProposal transitions an open proposal to rejected.
func (e *Engine) RejectProposal(id string) (schema.Proposal, error) {
	unlock := e.store.Lock("proposal:" + id)
	defer unlock()

	p, err := e.GetProposal(id)
	if err != nil {
		return schema.Proposal{}, err
	}
	if !schema.CanAcceptOrReject(p.Status) {
		return schema.Proposal{}, rerr.Err(rerr.CodeInvalidTransition, "proposal %q is %s, not open", id, p.Status)
	}
	p.Status = schema.ProposalRejected
	p.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveProposal(p); err != nil {
		return schema.Proposal{}, rerr.Wrap(rerr.CodeIOFailure, err, "save proposal %q", id)
	}
	if err := e.index.UpsertProposal(p); err != nil {
		e.log.Warn().Err(err).Str("proposalId", id).Msg("index proposal upsert failed")
	}
	if _, err := e.appendEvent(schema.Event{
		Type:   schema.EventProposalRejected,
		Actor:  p.Actor,
		Entity: schema.EventEntityRef{Kind: "proposal", ID: id},
	}); err != nil {
		return schema.Proposal{}, err
	}
	return p, nil
}

// AcceptProposal resolves the target section, applies the proposal's
// content, recomputes the note's section index, and emits
// proposal.accepted then note.updated.
func (e *Engine) AcceptProposal(id string) (schema.Proposal, schema.Note, error) {
	unlock := e.store.Lock("proposal:" + id)
	defer unlock()

	p, err := e.GetProposal(id)
	if err != nil {
		return schema.Proposal{}, schema.Note{}, err
	}
	if !schema.CanAcceptOrReject(p.Status) {
		return schema.Proposal{}, schema.Note{}, rerr.Err(rerr.CodeInvalidTransition, "proposal %q is %s, not open", id, p.Status)
	}

	unlockNote := e.store.Lock("note:" + p.Target.NoteID)
	defer unlockNote()

	note, prevSections, err := e.GetCanonicalNote(p.Target.NoteID)
	if err != nil {
		return schema.Proposal{}, schema.Note{}, err
	}

	var section schema.Section
	haveSection := false
	if p.Target.SectionID != "" || len(p.Target.FallbackPath) > 0 {
		section, err = e.FindSection(FindSectionParams{NoteID: p.Target.NoteID, SectionID: p.Target.SectionID, FallbackPath: p.Target.FallbackPath})
		if err != nil {
			return schema.Proposal{}, schema.Note{}, err
		}
		haveSection = true
	}

	switch p.ProposalType {
	case schema.ProposalReplaceSection:
		if !haveSection {
			return schema.Proposal{}, schema.Note{}, rerr.Err(rerr.CodeSectionNotFound, "replace_section requires a target section")
		}
		nodes, err := contentToNodes(p.Content)
		if err != nil {
			return schema.Proposal{}, schema.Note{}, rerr.Wrap(rerr.CodeInvalidInput, err, "proposal content")
		}
		children := note.Document.Root.Children
		spliced := make([]richtext.Node, 0, len(children)-(section.EndNodeIndex-section.StartNodeIndex+1)+len(nodes))
		spliced = append(spliced, children[:section.StartNodeIndex]...)
		spliced = append(spliced, nodes...)
		spliced = append(spliced, children[section.EndNodeIndex+1:]...)
		note.Document.Root.Children = spliced

	case schema.ProposalAnnotate:
		if len(p.Content.Content) > 0 {
			nodes, err := contentToNodes(p.Content)
			if err != nil {
				return schema.Proposal{}, schema.Note{}, rerr.Wrap(rerr.CodeInvalidInput, err, "proposal content")
			}
			insertAt := len(note.Document.Root.Children)
			if haveSection {
				insertAt = section.EndNodeIndex + 1
			}
			children := note.Document.Root.Children
			spliced := make([]richtext.Node, 0, len(children)+len(nodes))
			spliced = append(spliced, children[:insertAt]...)
			spliced = append(spliced, nodes...)
			spliced = append(spliced, children[insertAt:]...)
			note.Document.Root.Children = spliced
		}
		note.Tags = applyTagDiff(note.Tags, p.Content.TagsToAdd, p.Content.TagsToRemove)
		if p.Content.SetTitle != "" {
			note.Title = p.Content.SetTitle
		}

	default:
		return schema.Proposal{}, schema.Note{}, rerr.Err(rerr.CodeInvalidInput, "unknown proposal type %q", p.ProposalType)
	}

	note.UpdatedAt = time.Now().UTC()
	note.SectionIndexVersion++
	sections := recomputeSections(note.NoteID, note.Document, prevSections)

	if err := e.store.SaveNote(note, sections); err != nil {
		return schema.Proposal{}, schema.Note{}, rerr.Wrap(rerr.CodeIOFailure, err, "save note %q", note.NoteID)
	}
	plainText := richtext.ExtractPlainText(note.Document)
	if err := e.index.UpsertNote(note, plainText); err != nil {
		e.log.Warn().Err(err).Str("noteId", note.NoteID).Msg("index note upsert failed")
	}
	if err := e.index.UpsertSections(note.NoteID, sections); err != nil {
		e.log.Warn().Err(err).Str("noteId", note.NoteID).Msg("index sections upsert failed")
	}

	p.Status = schema.ProposalAccepted
	p.UpdatedAt = time.Now().UTC()
	if err := e.store.SaveProposal(p); err != nil {
		return schema.Proposal{}, schema.Note{}, rerr.Wrap(rerr.CodeIOFailure, err, "save proposal %q", id)
	}
	if err := e.index.UpsertProposal(p); err != nil {
		e.log.Warn().Err(err).Str("proposalId", id).Msg("index proposal upsert failed")
	}

	if _, err := e.appendEvent(schema.Event{
		Type:   schema.EventProposalAccepted,
		Actor:  p.Actor,
		Entity: schema.EventEntityRef{Kind: "proposal", ID: id},
	}); err != nil {
		return schema.Proposal{}, schema.Note{}, err
	}

	payload, _ := json.Marshal(noteEventPayload{NoteID: note.NoteID, SourceProposalID: id})
	if _, err := e.appendEvent(schema.Event{
		Type:    schema.EventNoteUpdated,
		Actor:   p.Actor,
		Entity:  schema.EventEntityRef{Kind: "note", ID: note.NoteID},
		Payload: payload,
	}); err != nil {
		return schema.Proposal{}, schema.Note{}, err
	}

	return p, note, nil
}

// contentToNodes converts a proposal's content into replacement/annotation
// nodes. "text" content is a JSON string split into paragraphs on blank
// lines; "lexical" and "json" content both carry { root: { children } }.
func contentToNodes(c schema.ProposalContent) ([]richtext.Node, error) {
	switch c.Format {
	case schema.FormatText:
		var text string
		if err := json.Unmarshal(c.Content, &text); err != nil {
			return nil, err
		}
		paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
		nodes := make([]richtext.Node, 0, len(paragraphs))
		for _, para := range paragraphs {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			nodes = append(nodes, richtext.Node{
				Type:     "paragraph",
				Children: []richtext.Node{{Type: "text", Text: para}},
			})
		}
		return nodes, nil

	case schema.FormatLexical, schema.FormatJSON:
		var doc richtext.Document
		if err := json.Unmarshal(c.Content, &doc); err != nil {
			return nil, err
		}
		if doc.Root.Children == nil {
			return nil, rerr.Err(rerr.CodeInvalidInput, "content requires root.children")
		}
		return doc.Root.Children, nil

	default:
		return nil, rerr.Err(rerr.CodeInvalidFormat, "unknown content format %q", c.Format)
	}
}

// applyTagDiff removes tagsToRemove, then adds tagsToAdd, deduping while
// preserving first-seen order.
func applyTagDiff(tags, toAdd, toRemove []string) []string {
	remove := map[string]bool{}
	for _, t := range toRemove {
		remove[t] = true
	}
	var kept []string
	for _, t := range tags {
		if !remove[t] {
			kept = append(kept, t)
		}
	}
	return dedupeTags(append(kept, toAdd...))
}
