package core

import (
	"fmt"
	"time"

	"github.com/remcore/rem/internal/rerr"
)

// Status is the derived index's health snapshot against canonical counts.
type Status struct {
	OK                 bool
	StoreRoot          string
	Notes              int
	Proposals          int
	Events             int
	Plugins            int
	LastIndexedEventAt *time.Time
	HealthHints        []string
}

// GetStatus reports index counts alongside canonical counts, flagging any
// drift a caller should resolve with rebuildIndex.
func (e *Engine) GetStatus() (Status, error) {
	notes, err := e.index.CountNotes()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "count notes")
	}
	proposals, err := e.index.CountProposals()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "count proposals")
	}
	events, err := e.index.CountEvents()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "count events")
	}
	plugins, err := e.index.CountPlugins()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "count plugins")
	}
	lastIndexed, err := e.index.LastIndexedEventAt()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "last indexed event time")
	}

	canonicalNoteIDs, err := e.store.ListNoteIDs()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "list note ids")
	}
	canonicalProposalIDs, err := e.store.ListProposalIDs()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "list proposal ids")
	}
	canonicalPlugins, err := e.store.ListPluginNamespaces()
	if err != nil {
		return Status{}, rerr.Wrap(rerr.CodeIOFailure, err, "list plugin namespaces")
	}

	var hints []string
	if len(canonicalNoteIDs) != notes {
		hints = append(hints, fmt.Sprintf("index has %d notes but the store has %d; run rebuildIndex", notes, len(canonicalNoteIDs)))
	}
	if len(canonicalProposalIDs) != proposals {
		hints = append(hints, fmt.Sprintf("index has %d proposals but the store has %d; run rebuildIndex", proposals, len(canonicalProposalIDs)))
	}
	if len(canonicalPlugins) != plugins {
		hints = append(hints, fmt.Sprintf("index has %d plugins but the store has %d; run rebuildIndex", plugins, len(canonicalPlugins)))
	}

	return Status{
		OK:                 len(hints) == 0,
		StoreRoot:          e.root,
		Notes:              notes,
		Proposals:          proposals,
		Events:             events,
		Plugins:            plugins,
		LastIndexedEventAt: lastIndexed,
		HealthHints:        hints,
	}, nil
}
