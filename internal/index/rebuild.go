package index

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/schema"
)

// CanonicalSource is the subset of *store.Store rebuild needs. Declaring
// it as an interface here (rather than importing internal/store
// directly) keeps the index package free to be tested and reused without
// pulling in the filesystem layer.
type CanonicalSource interface {
	ListNoteIDs() ([]string, error)
	GetNote(id string) (schema.Note, []schema.Section, error)
	ListProposalIDs() ([]string, error)
	GetProposal(id string) (schema.Proposal, error)
	ListPluginNamespaces() ([]string, error)
	GetPlugin(namespace string) (schema.Plugin, error)
	ListEntityNamespaces() ([]string, error)
	ListEntityTypes(namespace string) ([]string, error)
	ListEntityIDs(namespace, entityType string) ([]string, error)
	GetEntity(namespace, entityType, id string) (schema.Entity, error)
	EventFilePaths() ([]string, error)
}

// EventFileReader reads one events/*.jsonl file. Matches
// store.ReadEventFile's signature without importing the store package.
type EventFileReader func(path string) ([]schema.Event, error)

// RebuildStats summarizes a Rebuild run; a full rebuild requires these to
// match the canonical file counts afterward.
type RebuildStats struct {
	Notes     int
	Proposals int
	Entities  int
	Plugins   int
	Events    int
}

var truncateStatements = []string{
	"DELETE FROM notes", "DELETE FROM note_tags", "DELETE FROM note_plugins", "DELETE FROM notes_fts",
	"DELETE FROM sections", "DELETE FROM proposals", "DELETE FROM events",
	"DELETE FROM entities", "DELETE FROM entity_links", "DELETE FROM entities_fts",
	"DELETE FROM plugin_manifests",
}

// Rebuild truncates every table and rehydrates it from src: notes (+
// sections), proposals, entities (+ links + FTS), plugin manifests, then
// replays every event file in lexicographic order. After Rebuild, derived
// counts equal the canonical files' counts.
func (idx *Index) Rebuild(src CanonicalSource, readEvents EventFileReader) (RebuildStats, error) {
	idx.mu.Lock()
	for _, stmt := range truncateStatements {
		if _, err := idx.db.Exec(stmt); err != nil {
			idx.mu.Unlock()
			return RebuildStats{}, fmt.Errorf("truncate: %w", err)
		}
	}
	idx.mu.Unlock()

	var stats RebuildStats

	manifests := map[string]schema.Manifest{}
	namespaces, err := src.ListPluginNamespaces()
	if err != nil {
		return stats, fmt.Errorf("list plugin namespaces: %w", err)
	}
	for _, ns := range namespaces {
		p, err := src.GetPlugin(ns)
		if err != nil {
			return stats, fmt.Errorf("get plugin %s: %w", ns, err)
		}
		if err := idx.UpsertPluginManifest(p.Manifest); err != nil {
			return stats, err
		}
		manifests[ns] = p.Manifest
		stats.Plugins++
	}

	noteIDs, err := src.ListNoteIDs()
	if err != nil {
		return stats, fmt.Errorf("list notes: %w", err)
	}
	for _, id := range noteIDs {
		note, sections, err := src.GetNote(id)
		if err != nil {
			return stats, fmt.Errorf("get note %s: %w", id, err)
		}
		plainText := richtext.ExtractPlainText(note.Document)
		if err := idx.UpsertNote(note, plainText); err != nil {
			return stats, err
		}
		if err := idx.UpsertSections(id, sections); err != nil {
			return stats, err
		}
		stats.Notes++
	}

	proposalIDs, err := src.ListProposalIDs()
	if err != nil {
		return stats, fmt.Errorf("list proposals: %w", err)
	}
	for _, id := range proposalIDs {
		p, err := src.GetProposal(id)
		if err != nil {
			return stats, fmt.Errorf("get proposal %s: %w", id, err)
		}
		if err := idx.UpsertProposal(p); err != nil {
			return stats, err
		}
		stats.Proposals++
	}

	entityNamespaces, err := src.ListEntityNamespaces()
	if err != nil {
		return stats, fmt.Errorf("list entity namespaces: %w", err)
	}
	for _, ns := range entityNamespaces {
		types, err := src.ListEntityTypes(ns)
		if err != nil {
			return stats, fmt.Errorf("list entity types %s: %w", ns, err)
		}
		for _, et := range types {
			ids, err := src.ListEntityIDs(ns, et)
			if err != nil {
				return stats, fmt.Errorf("list entity ids %s/%s: %w", ns, et, err)
			}
			textFields := textFieldsFor(manifests[ns], et)
			for _, id := range ids {
				e, err := src.GetEntity(ns, et, id)
				if err != nil {
					return stats, fmt.Errorf("get entity %s/%s/%s: %w", ns, et, id, err)
				}
				body := entityFTSBody(e.Data, textFields)
				if err := idx.UpsertEntity(e, body); err != nil {
					return stats, err
				}
				stats.Entities++
			}
		}
	}

	paths, err := src.EventFilePaths()
	if err != nil {
		return stats, fmt.Errorf("list event files: %w", err)
	}
	for _, path := range paths {
		events, err := readEvents(path)
		if err != nil {
			return stats, fmt.Errorf("read events %s: %w", path, err)
		}
		for _, e := range events {
			if err := idx.InsertEvent(e); err != nil {
				return stats, err
			}
			stats.Events++
		}
	}

	return stats, nil
}

// EntityFTSBody computes the full-text body for an entity record given the
// owning plugin's manifest, for use outside of Rebuild (e.g. the engine's
// entity save path).
func EntityFTSBody(m schema.Manifest, entityType string, data json.RawMessage) string {
	return entityFTSBody(data, textFieldsFor(m, entityType))
}

func textFieldsFor(m schema.Manifest, entityType string) []string {
	if m.EntityTypes == nil {
		return nil
	}
	def, ok := m.EntityTypes[entityType]
	if !ok {
		return nil
	}
	return def.Indexes.TextFields
}

func entityFTSBody(data json.RawMessage, textFields []string) string {
	if len(data) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	if len(textFields) == 0 {
		// No declared text fields: fall back to every string-valued field,
		// so search still finds something rather than indexing nothing.
		var parts []string
		for _, v := range fields {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	var parts []string
	for _, f := range textFields {
		if v, ok := fields[f]; ok {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}
