package richtext

import "sort"

// candidatePair is a scored correspondence between an old and a new
// section, used by the greedy matcher in AssignIdentity.
type candidatePair struct {
	oldIdx, newIdx int
	score          int
	dist           int
}

// AssignIdentity pairs prev (the previous SectionIndex) against newRaw
// (freshly extracted sections, in document order) using a descending-score
// greedy match:
//  1. equal fallbackPath (strongest disambiguator)
//  2. equal headingText with the same parent chain
//  3. equal headingText at the same level
//  4. positional proximity (weakest, always a candidate, used as a
//     tiebreaker and as the fallback when nothing else lines up)
//
// Paired new sections inherit the old sectionId; unpaired new sections
// receive a fresh id from newID. This makes ids survive heading renames
// and sibling insertions while genuinely new sections still get fresh ids.
func AssignIdentity(prev []Section, newRaw []RawSection, noteID string, newID func() string) []Section {
	var pairs []candidatePair
	for oi, o := range prev {
		for ni, n := range newRaw {
			score, dist := scorePair(o, n, oi, ni)
			pairs = append(pairs, candidatePair{oldIdx: oi, newIdx: ni, score: score, dist: dist})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].dist != pairs[j].dist {
			return pairs[i].dist < pairs[j].dist
		}
		if pairs[i].oldIdx != pairs[j].oldIdx {
			return pairs[i].oldIdx < pairs[j].oldIdx
		}
		return pairs[i].newIdx < pairs[j].newIdx
	})

	oldUsed := make([]bool, len(prev))
	newToOld := make([]int, len(newRaw))
	for i := range newToOld {
		newToOld[i] = -1
	}

	for _, p := range pairs {
		if oldUsed[p.oldIdx] || newToOld[p.newIdx] != -1 {
			continue
		}
		oldUsed[p.oldIdx] = true
		newToOld[p.newIdx] = p.oldIdx
	}

	out := make([]Section, len(newRaw))
	for ni, raw := range newRaw {
		id := ""
		if oi := newToOld[ni]; oi != -1 {
			id = prev[oi].SectionID
		} else {
			id = newID()
		}
		out[ni] = Section{
			SectionID:      id,
			NoteID:         noteID,
			HeadingText:    raw.HeadingText,
			HeadingLevel:   raw.HeadingLevel,
			FallbackPath:   raw.FallbackPath,
			StartNodeIndex: raw.StartNodeIndex,
			EndNodeIndex:   raw.EndNodeIndex,
			Position:       raw.Position,
		}
	}
	return out
}

func scorePair(o Section, n RawSection, oldIdx, newIdx int) (score, dist int) {
	dist = abs(oldIdx - newIdx)
	switch {
	case pathsEqual(o.FallbackPath, n.FallbackPath):
		return 4, dist
	case o.HeadingText == n.HeadingText && pathsEqual(parentChain(o.FallbackPath), parentChain(n.FallbackPath)):
		return 3, dist
	case o.HeadingText == n.HeadingText && o.HeadingLevel == n.HeadingLevel:
		return 2, dist
	default:
		return 1, dist
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
