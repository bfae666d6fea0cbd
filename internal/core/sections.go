package core

import (
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/schema"
)

func toRichtextSections(in []schema.Section) []richtext.Section {
	out := make([]richtext.Section, len(in))
	for i, s := range in {
		out[i] = richtext.Section{
			SectionID:      s.SectionID,
			NoteID:         s.NoteID,
			HeadingText:    s.HeadingText,
			HeadingLevel:   s.HeadingLevel,
			FallbackPath:   s.FallbackPath,
			StartNodeIndex: s.StartNodeIndex,
			EndNodeIndex:   s.EndNodeIndex,
			Position:       s.Position,
		}
	}
	return out
}

func toSchemaSections(in []richtext.Section) []schema.Section {
	out := make([]schema.Section, len(in))
	for i, s := range in {
		out[i] = schema.Section{
			SectionID:      s.SectionID,
			NoteID:         s.NoteID,
			HeadingText:    s.HeadingText,
			HeadingLevel:   s.HeadingLevel,
			FallbackPath:   s.FallbackPath,
			StartNodeIndex: s.StartNodeIndex,
			EndNodeIndex:   s.EndNodeIndex,
			Position:       s.Position,
		}
	}
	return out
}

// recomputeSections extracts the raw section map from doc and assigns
// durable identity against prev, the note's previous section index.
func recomputeSections(noteID string, doc richtext.Document, prev []schema.Section) []schema.Section {
	raw := richtext.ExtractSections(doc)
	assigned := richtext.AssignIdentity(toRichtextSections(prev), raw, noteID, func() string { return newEventID() })
	return toSchemaSections(assigned)
}

func dedupeTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
