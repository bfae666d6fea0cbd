package richtext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func para(text string) Node {
	return Node{Type: "paragraph", Children: []Node{{Type: "text", Text: text}}}
}

func heading(level int, text string) Node {
	tag := "h" + string(rune('0'+level))
	return Node{Type: "heading", Tag: tag, Children: []Node{{Type: "text", Text: text}}}
}

func TestExtractPlainText(t *testing.T) {
	doc := Document{Root: Node{Children: []Node{
		heading(1, "Title"),
		para("First"),
		para("Second"),
	}}}
	got := ExtractPlainText(doc)
	assert.Equal(t, "Title\nFirst\nSecond", got)
}

func TestExtractMarkdownHeadingsAndParagraphs(t *testing.T) {
	doc := Document{Root: Node{Children: []Node{
		heading(2, "Intro"),
		para("Body text"),
	}}}
	got := ExtractMarkdown(doc)
	assert.Equal(t, "## Intro\n\nBody text", got)
}

func TestExtractSectionsNestedHeadings(t *testing.T) {
	doc := Document{Root: Node{Children: []Node{
		heading(1, "Plan"),
		para("intro"),
		heading(2, "Budget"),
		para("numbers"),
		heading(1, "Notes"),
		para("misc"),
	}}}
	sections := ExtractSections(doc)
	require.Len(t, sections, 3)

	assert.Equal(t, "Plan", sections[0].HeadingText)
	assert.Equal(t, []string{"Plan"}, sections[0].FallbackPath)
	assert.Equal(t, 0, sections[0].StartNodeIndex)
	assert.Equal(t, 3, sections[0].EndNodeIndex)

	assert.Equal(t, "Budget", sections[1].HeadingText)
	assert.Equal(t, []string{"Plan", "Budget"}, sections[1].FallbackPath)
	assert.Equal(t, 2, sections[1].StartNodeIndex)
	assert.Equal(t, 3, sections[1].EndNodeIndex)

	assert.Equal(t, "Notes", sections[2].HeadingText)
	assert.Equal(t, []string{"Notes"}, sections[2].FallbackPath)
	assert.Equal(t, 4, sections[2].StartNodeIndex)
	assert.Equal(t, 5, sections[2].EndNodeIndex)
}

func TestNodeRoundTripUnknownFields(t *testing.T) {
	raw := []byte(`{"type":"block","tag":"callout","icon":"bulb","children":[{"type":"text","text":"hi"}]}`)
	var n Node
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, "block", n.Type)
	assert.Equal(t, "callout", n.Tag)
	require.Contains(t, n.Extra, "icon")

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"icon":"bulb"`)
}
