package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/schema"
	"github.com/remcore/rem/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	calls int
	err   error
}

func (s *stubExecutor) Invoke(ctx context.Context, p scheduler.ExecutorParams) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func registerDigestPlugin(t *testing.T, e *Engine, schedule string) {
	t.Helper()
	_, err := e.RegisterPlugin(schema.Manifest{
		Namespace:     "digest",
		SchemaVersion: "v1",
		Permissions:   []string{"notes:read"},
		ScheduledTasks: []schema.ScheduledTask{
			{TaskID: "morning", ActionID: "send", Schedule: schedule, TimeZone: "UTC", IdempotencyKey: "calendar_slot"},
		},
	})
	require.NoError(t, err)
	_, err = e.InstallPlugin("digest")
	require.NoError(t, err)
	_, err = e.EnablePlugin("digest")
	require.NoError(t, err)
}

func TestRunPluginSchedulerRunsDueTask(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	registerDigestPlugin(t, e, "09:00")

	exec := &stubExecutor{}
	result, err := e.RunPluginScheduler(context.Background(), now, exec)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ran)
	assert.Equal(t, 1, exec.calls)

	events, err := e.ListEvents(index.EventFilter{Type: schema.EventPluginTaskRan})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRunPluginSchedulerSkipsDuplicateSlot(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	registerDigestPlugin(t, e, "09:00")

	exec := &stubExecutor{}
	_, err := e.RunPluginScheduler(context.Background(), now, exec)
	require.NoError(t, err)

	result, err := e.RunPluginScheduler(context.Background(), now, exec)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ran)
	assert.Equal(t, 1, result.SkippedAsDuplicate)
	assert.Equal(t, 1, exec.calls)
}

func TestGetPluginSchedulerStatusReportsDeclaredTasks(t *testing.T) {
	e := newTestEngine(t)
	registerDigestPlugin(t, e, "09:00")

	status, err := e.GetPluginSchedulerStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status.PluginCount)
	require.Len(t, status.Tasks, 1)
	assert.Equal(t, "digest", status.Tasks[0].Namespace)
	assert.Equal(t, "morning", status.Tasks[0].TaskID)
}
