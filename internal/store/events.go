package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/remcore/rem/internal/schema"
)

func (s *Store) eventPath(t eventTimestampParts) string {
	return s.path("events", t.month, t.day+".jsonl")
}

type eventTimestampParts struct {
	month string // YYYY-MM
	day   string // YYYY-MM-DD
}

func partsOf(ts string) eventTimestampParts {
	// ts is RFC3339 UTC: "2026-07-30T10:05:00Z"; the date prefix sorts
	// lexicographically with calendar order, which is what rebuild relies on.
	day := ts
	if len(ts) >= 10 {
		day = ts[:10]
	}
	month := day
	if len(day) >= 7 {
		month = day[:7]
	}
	return eventTimestampParts{month: month, day: day}
}

// AppendEvent serializes e and appends it to the day's JSONL file, per the
// event append protocol: open in append mode, write the record
// plus newline, fsync the file, fsync the month directory.
func (s *Store) AppendEvent(e schema.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := s.eventPath(partsOf(formatTime(e.Timestamp)))
	return AppendAtomic(path, data)
}

// EventFilePaths returns every events/*/*.jsonl path under the store root,
// in lexicographic order. Lexicographic order over YYYY-MM/YYYY-MM-DD.jsonl
// is calendar order, which is what rebuild-index relies on.
func (s *Store) EventFilePaths() ([]string, error) {
	months, err := listDirNames(s.path("events"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range months {
		days, err := os.ReadDir(s.path("events", m))
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
				continue
			}
			out = append(out, s.path("events", m, d.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadEventFile parses every event in path. Empty lines are skipped. A
// single truncated final line (the result of a crash mid-write) is
// tolerated and dropped; any other malformed line is fatal, per the
// crash-recovery semantics.
func ReadEventFile(path string) ([]schema.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []schema.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e schema.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			if i == len(lines)-1 && looksTruncated(line) {
				continue
			}
			return nil, fmt.Errorf("malformed event line %d in %s: %w", i+1, path, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// looksTruncated reports whether line is not valid JSON on its own but
// could plausibly be a partially-written JSON object (the crash-recovery
// case), as opposed to genuinely corrupt content.
func looksTruncated(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if trimmed[0] != '{' {
		return false
	}
	var v any
	err := json.NewDecoder(bytes.NewReader([]byte(trimmed))).Decode(&v)
	return err == io.ErrUnexpectedEOF
}

// ReadAllEvents reads every event file in lexicographic order and
// concatenates their contents. Each file is read with ReadEventFile, so a
// truncated final line is tolerated in any file, not only the last one.
func (s *Store) ReadAllEvents() ([]schema.Event, error) {
	paths, err := s.EventFilePaths()
	if err != nil {
		return nil, err
	}
	var all []schema.Event
	for _, p := range paths {
		events, err := ReadEventFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}
