// Package scheduler computes scheduled-task slots and their idempotency
// keys, and drives one scheduler tick against a ledger of already-executed
// slots.
package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// defaultRunWindowMinutes is used when a task declares no RunWindowMinutes.
const defaultRunWindowMinutes = 30

// Slot is the most recent scheduled occurrence of a task, computed against
// a reference instant.
type Slot struct {
	ScheduledFor time.Time
	SlotKey      string
	WithinWindow bool
}

// ResolveSlot locates the task's schedule in loc, finds the most recent
// occurrence at or before now, and reports whether now falls within
// runWindowMinutes of it. schedule is "HH:MM" (24h, local to loc), a
// once-a-day time; no other schedule shape is accepted.
func ResolveSlot(now time.Time, loc *time.Location, schedule string, runWindowMinutes int) (Slot, error) {
	if runWindowMinutes <= 0 {
		runWindowMinutes = defaultRunWindowMinutes
	}
	local := now.In(loc)

	hh, mm, err := parseHHMM(schedule)
	if err != nil {
		return Slot{}, err
	}

	candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
	if candidate.After(local) {
		candidate = candidate.AddDate(0, 0, -1)
	}

	diff := local.Sub(candidate)
	if diff < 0 {
		diff = -diff
	}
	within := diff <= time.Duration(runWindowMinutes)*time.Minute

	return Slot{
		ScheduledFor: candidate,
		SlotKey:      slotKey(candidate, loc),
		WithinWindow: within,
	}, nil
}

func slotKey(t time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s@%s", t.In(loc).Format("2006-01-02T15:04"), loc.String())
}

func parseHHMM(s string) (int, int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, 0, fmt.Errorf("invalid schedule %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid schedule %q: out of range", s)
	}
	return hh, mm, nil
}

// DedupeKey builds "<namespace>:<taskId>:<idempotencyKey>:<key>" where key
// is the slot key for "calendar_slot" tasks, or a hash of the canonicalized
// input for "action_input_hash" tasks.
func DedupeKey(namespace, taskID, idempotencyKey, key string) string {
	return fmt.Sprintf("%s:%s:%s:%s", namespace, taskID, idempotencyKey, key)
}

// CanonicalInputHash deterministically hashes input by re-marshaling it
// with sorted object keys, so two semantically identical payloads produce
// the same key regardless of field order.
func CanonicalInputHash(input json.RawMessage) (string, error) {
	canon, err := canonicalizeJSON(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalizeJSON(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return canonicalizeValue(v)
}

func canonicalizeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := canonicalizeValue(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		out = append(out, '}')
		return out, nil
	case []any:
		out := []byte("[")
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			ib, err := canonicalizeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ib...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}
