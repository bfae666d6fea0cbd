package richtext

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignIdentityRenameSurvives(t *testing.T) {
	prev := []Section{
		{SectionID: "s-plan", NoteID: "n1", HeadingText: "Plan", FallbackPath: []string{"Plan"}, HeadingLevel: 1, Position: 0},
		{SectionID: "s-notes", NoteID: "n1", HeadingText: "Notes", FallbackPath: []string{"Notes"}, HeadingLevel: 1, Position: 1},
	}
	newRaw := []RawSection{
		{HeadingText: "Plan v2", FallbackPath: []string{"Plan v2"}, HeadingLevel: 1, Position: 0},
		{HeadingText: "Notes", FallbackPath: []string{"Notes"}, HeadingLevel: 1, Position: 1},
	}
	counter := 0
	fresh := func() string { counter++; return fmt.Sprintf("fresh-%d", counter) }

	out := AssignIdentity(prev, newRaw, "n1", fresh)

	assert.Equal(t, "s-plan", out[0].SectionID, "renamed heading keeps its id via positional proximity")
	assert.Equal(t, "s-notes", out[1].SectionID, "unchanged heading keeps its id")
}

func TestAssignIdentityInsertedSiblingGetsFreshID(t *testing.T) {
	prev := []Section{
		{SectionID: "s-plan", NoteID: "n1", HeadingText: "Plan", FallbackPath: []string{"Plan"}, HeadingLevel: 1, Position: 0},
	}
	newRaw := []RawSection{
		{HeadingText: "Intro", FallbackPath: []string{"Intro"}, HeadingLevel: 1, Position: 0},
		{HeadingText: "Plan", FallbackPath: []string{"Plan"}, HeadingLevel: 1, Position: 1},
	}
	counter := 0
	fresh := func() string { counter++; return fmt.Sprintf("fresh-%d", counter) }

	out := AssignIdentity(prev, newRaw, "n1", fresh)

	assert.Equal(t, "s-plan", out[1].SectionID)
	assert.Equal(t, "fresh-1", out[0].SectionID)
}
