// Package linker scans a note's extracted plain text for mentions of
// registered entities and reports the matches. The package itself writes
// nothing; internal/core records each match as a note link on the matched
// entity.
package linker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
)

// EntityRef names one entity a mention can resolve to.
type EntityRef struct {
	Namespace  string
	EntityType string
	EntityID   string
	Label      string
}

// Match is one mention found by Scan, with byte offsets into the original
// (non-canonicalized) text.
type Match struct {
	Start, End int
	Surface    string
	Entity     EntityRef
}

// Dictionary is a compiled multi-pattern matcher over a set of entity
// surface forms (label + aliases).
type Dictionary struct {
	ac       *ahocorasick.Automaton
	patterns []string
	byCanon  map[string][]EntityRef
}

// Compile canonicalizes every surface form in entities (keyed by label,
// plus any aliases callers fold in via multiple EntityRef entries sharing
// a label) and builds a single automaton to scan text against.
func Compile(entities []EntityRef) (*Dictionary, error) {
	byCanon := map[string][]EntityRef{}
	var patterns []string
	seen := map[string]bool{}
	for _, e := range entities {
		c := Canonicalize(e.Label)
		if c == "" {
			continue
		}
		byCanon[c] = append(byCanon[c], e)
		if !seen[c] {
			seen[c] = true
			patterns = append(patterns, c)
		}
	}
	if len(patterns) == 0 {
		return &Dictionary{byCanon: byCanon}, nil
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &Dictionary{ac: ac, patterns: patterns, byCanon: byCanon}, nil
}

// Scan returns every mention of a registered entity in text. Offsets are
// computed against a canonicalized copy of text and mapped back via an
// index built alongside canonicalization, so Start/End still index into
// the caller's original string.
func (d *Dictionary) Scan(text string) []Match {
	if d.ac == nil {
		return nil
	}
	canon, offsets := canonicalizeWithOffsets(text)
	if canon == "" {
		return nil
	}

	var out []Match
	for _, m := range d.ac.FindAllOverlapping(canon) {
		start, end := m.Start(), m.End()
		if start < 0 || end > len(offsets) || start >= end {
			continue
		}
		origStart := offsets[start]
		origEnd := offsets[end-1] + 1
		surface := text[origStart:origEnd]
		for _, e := range d.byCanon[canon[start:end]] {
			out = append(out, Match{Start: origStart, End: origEnd, Surface: surface, Entity: e})
		}
	}
	return out
}

// Canonicalize folds case, keeps apostrophe/hyphen/period as joiners
// within a word, and collapses every other separator run to a single
// space, so pattern compilation and scanning agree on what "the same
// mention" means.
func Canonicalize(s string) string {
	canon, _ := canonicalizeWithOffsets(s)
	return canon
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '-', '.', '_':
		return true
	}
	return false
}

func canonicalizeWithOffsets(s string) (string, []int) {
	var b strings.Builder
	var offsets []int
	lastWasSpace := true
	for i, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteByte(' ')
				offsets = append(offsets, i)
				lastWasSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r):
			lower := unicode.ToLower(r)
			lb := string(lower)
			size := utf8.RuneLen(r)
			for j := range len(lb) {
				offsets = append(offsets, i+min(j, size-1))
			}
			b.WriteString(lb)
			lastWasSpace = false
		default:
			if !lastWasSpace {
				b.WriteByte(' ')
				offsets = append(offsets, i)
				lastWasSpace = true
			}
		}
	}
	out := strings.TrimSpace(b.String())
	trimmedLead := len(b.String()) - len(strings.TrimLeft(b.String(), " "))
	offsets = offsets[trimmedLead : trimmedLead+len(out)]
	return out, offsets
}
