package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSlotWithinWindow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 7, 30, 9, 5, 0, 0, loc)
	slot, err := ResolveSlot(now, loc, "09:00", 30)
	require.NoError(t, err)
	assert.True(t, slot.WithinWindow)
	assert.Equal(t, "2026-07-30T09:00@UTC", slot.SlotKey)
}

func TestResolveSlotOutsideWindow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, loc)
	slot, err := ResolveSlot(now, loc, "09:00", 30)
	require.NoError(t, err)
	assert.False(t, slot.WithinWindow)
}

func TestCanonicalInputHashIgnoresKeyOrder(t *testing.T) {
	a, err := CanonicalInputHash(json.RawMessage(`{"b":1,"a":2}`))
	require.NoError(t, err)
	b, err := CanonicalInputHash(json.RawMessage(`{"a":2,"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

type fakeLedger struct {
	keys    map[string]bool
	entries []schema.SchedulerLedgerEntry
}

func (l *fakeLedger) HasDedupeKey(key string) (bool, error) { return l.keys[key], nil }
func (l *fakeLedger) AppendLedgerEntry(e schema.SchedulerLedgerEntry) error {
	if l.keys == nil {
		l.keys = map[string]bool{}
	}
	l.keys[e.DedupeKey] = true
	l.entries = append(l.entries, e)
	return nil
}

type fakePluginSource struct{ plugins []schema.Plugin }

func (f fakePluginSource) ListEnabledWithSchedules() ([]schema.Plugin, error) { return f.plugins, nil }

type fakeExecutor struct {
	calls int
	fail  bool
}

func (f *fakeExecutor) Invoke(ctx context.Context, p ExecutorParams) (json.RawMessage, error) {
	f.calls++
	if f.fail {
		return nil, assertErr{}
	}
	return json.RawMessage(`{}`), nil
}

type assertErr struct{}

func (assertErr) Error() string { return "dispatch failed" }

func taskPlugin() schema.Plugin {
	return schema.Plugin{
		Manifest: schema.Manifest{
			Namespace: "daily-digest",
			ScheduledTasks: []schema.ScheduledTask{
				{TaskID: "morning", ActionID: "send", Schedule: "09:00", TimeZone: "UTC", IdempotencyKey: "calendar_slot"},
			},
		},
		Meta: schema.PluginMeta{LifecycleState: schema.LifecycleEnabled},
	}
}

func TestRunDispatchesAndRecordsLedger(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 2, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	exec := &fakeExecutor{}

	result, err := Run(context.Background(), now, fakePluginSource{[]schema.Plugin{taskPlugin()}}, ledger, exec)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ran)
	assert.Equal(t, 0, result.SkippedAsDuplicate)
	assert.Equal(t, 1, exec.calls)
	assert.Len(t, ledger.entries, 1)
}

func TestRunSkipsAlreadyExecutedSlot(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 2, 0, 0, time.UTC)
	ledger := &fakeLedger{keys: map[string]bool{
		DedupeKey("daily-digest", "morning", "calendar_slot", "2026-07-30T09:00@UTC"): true,
	}}
	exec := &fakeExecutor{}

	result, err := Run(context.Background(), now, fakePluginSource{[]schema.Plugin{taskPlugin()}}, ledger, exec)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ran)
	assert.Equal(t, 1, result.SkippedAsDuplicate)
	assert.Equal(t, 0, exec.calls)
}

func TestRunSkipsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	exec := &fakeExecutor{}

	result, err := Run(context.Background(), now, fakePluginSource{[]schema.Plugin{taskPlugin()}}, ledger, exec)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ran)
	assert.Equal(t, 1, result.SkippedAsDuplicate)
	assert.Equal(t, 0, exec.calls)
}

func TestRunDoesNotLedgerOnFailure(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 2, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	exec := &fakeExecutor{fail: true}

	result, err := Run(context.Background(), now, fakePluginSource{[]schema.Plugin{taskPlugin()}}, ledger, exec)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ran)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, ledger.entries)
	require.Len(t, result.Events, 1)
	assert.Equal(t, schema.EventPluginTaskRan, result.Events[0].Type)
}
