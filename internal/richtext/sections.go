package richtext

// RawSection is a section as found in a single pass over a document tree,
// before durable identity has been assigned.
type RawSection struct {
	HeadingText    string
	HeadingLevel   int
	FallbackPath   []string
	StartNodeIndex int
	EndNodeIndex   int
	Position       int
}

// Section is a RawSection plus the durable identity assigned by
// AssignIdentity.
type Section struct {
	SectionID      string
	NoteID         string
	HeadingText    string
	HeadingLevel   int
	FallbackPath   []string
	StartNodeIndex int
	EndNodeIndex   int
	Position       int
}

type headingFrame struct {
	level int
	text  string
}

// ExtractSections builds the structural section map: every heading node
// opens a section that runs until the next heading at the same or
// shallower level, or the end of the document. fallbackPath is the
// ancestor heading chain plus the section's own heading.
func ExtractSections(doc Document) []RawSection {
	children := doc.Root.Children
	var sections []RawSection
	var stack []headingFrame
	var cur *RawSection
	position := 0

	closeCurrent := func(endIdx int) {
		if cur != nil {
			cur.EndNodeIndex = endIdx
			sections = append(sections, *cur)
			cur = nil
		}
	}

	for i, n := range children {
		if !n.IsHeading() {
			continue
		}
		level := n.HeadingLevel()
		text := headingText(n)

		closeCurrent(i - 1)

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		path := make([]string, 0, len(stack)+1)
		for _, f := range stack {
			path = append(path, f.text)
		}
		path = append(path, text)

		stack = append(stack, headingFrame{level: level, text: text})

		cur = &RawSection{
			HeadingText:    text,
			HeadingLevel:   level,
			FallbackPath:   path,
			StartNodeIndex: i,
			Position:       position,
		}
		position++
	}
	closeCurrent(len(children) - 1)
	for si := range sections {
		sections[si].EndNodeIndex = len(children) - 1
		for _, next := range sections[si+1:] {
			if next.HeadingLevel <= sections[si].HeadingLevel {
				sections[si].EndNodeIndex = next.StartNodeIndex - 1
				break
			}
		}
	}
	return sections
}

func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parentChain(p []string) []string {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}
