// Package richtext extracts plain text, markdown, and a structural section
// map from rem's document tree, and assigns durable section identity
// across edits.
package richtext

import "encoding/json"

// Node is one element of the document tree. The source format is a loosely
// typed JSON graph, so Node keeps any field it does not recognize in Extra
// and re-emits it verbatim on MarshalJSON, giving round-trip fidelity for
// plugin-specific or future node shapes.
type Node struct {
	Type     string `json:"type"`
	Tag      string `json:"tag,omitempty"`
	Text     string `json:"text,omitempty"`
	Children []Node `json:"children,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

// Document is the root of a note's rich-text tree: { root: { children: [] } }.
type Document struct {
	Root Node `json:"root"`
}

var knownNodeFields = map[string]bool{
	"type": true, "tag": true, "text": true, "children": true,
}

// MarshalJSON emits the known fields plus any unrecognized ones captured
// in Extra, so a node round-trips even if it carries keys this version of
// rem does not understand.
func (n Node) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{}
	for k, v := range n.Extra {
		out[k] = v
	}
	if n.Type != "" {
		b, err := json.Marshal(n.Type)
		if err != nil {
			return nil, err
		}
		out["type"] = b
	}
	if n.Tag != "" {
		b, err := json.Marshal(n.Tag)
		if err != nil {
			return nil, err
		}
		out["tag"] = b
	}
	if n.Text != "" {
		b, err := json.Marshal(n.Text)
		if err != nil {
			return nil, err
		}
		out["text"] = b
	}
	if n.Children != nil {
		b, err := json.Marshal(n.Children)
		if err != nil {
			return nil, err
		}
		out["children"] = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the known fields and stashes everything else in
// Extra for later round-trip.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &n.Type); err != nil {
			return err
		}
	}
	if v, ok := raw["tag"]; ok {
		if err := json.Unmarshal(v, &n.Tag); err != nil {
			return err
		}
	}
	if v, ok := raw["text"]; ok {
		if err := json.Unmarshal(v, &n.Text); err != nil {
			return err
		}
	}
	if v, ok := raw["children"]; ok {
		if err := json.Unmarshal(v, &n.Children); err != nil {
			return err
		}
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if !knownNodeFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		n.Extra = extra
	}
	return nil
}

// IsHeading reports whether n is a heading node with tag h1..h6.
func (n Node) IsHeading() bool {
	return n.Type == "heading" && len(n.Tag) == 2 && n.Tag[0] == 'h' && n.Tag[1] >= '1' && n.Tag[1] <= '6'
}

// HeadingLevel returns the heading's level (1..6), or 0 if n is not a heading.
func (n Node) HeadingLevel() int {
	if !n.IsHeading() {
		return 0
	}
	return int(n.Tag[1] - '0')
}

// headingText concatenates a heading node's text leaves, used both as the
// display heading and as the section's disambiguator.
func headingText(n Node) string {
	var text string
	var walk func(Node)
	walk = func(cur Node) {
		if cur.Text != "" {
			text += cur.Text
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return text
}
