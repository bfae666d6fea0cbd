package core

import (
	"context"
	"time"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/scheduler"
	"github.com/remcore/rem/internal/schema"
)

// HasDedupeKey and AppendLedgerEntry satisfy scheduler.Ledger against the
// canonical store, so internal/scheduler never imports internal/store.

func (e *Engine) HasDedupeKey(key string) (bool, error) {
	return e.store.HasDedupeKey(key)
}

func (e *Engine) AppendLedgerEntry(entry schema.SchedulerLedgerEntry) error {
	return e.store.AppendLedgerEntry(entry)
}

// SchedulerRunResult mirrors scheduler.RunResult after its events have been
// durably appended.
type SchedulerRunResult struct {
	Ran                int
	SkippedAsDuplicate int
	Failed             int
}

// RunPluginScheduler runs one scheduler tick against now, dispatching every
// enabled plugin's due scheduled tasks through an executor (the engine's own
// action runtime unless the caller supplies one for testing), appending a
// plugin.task_ran event per attempted task.
func (e *Engine) RunPluginScheduler(ctx context.Context, now time.Time, exec scheduler.Executor) (SchedulerRunResult, error) {
	if exec == nil {
		exec = &schedulerExecutor{engine: e}
	}
	result, err := scheduler.Run(ctx, now, e, e, exec)
	if err != nil {
		return SchedulerRunResult{}, err
	}
	for _, ev := range result.Events {
		if _, err := e.appendEvent(ev); err != nil {
			return SchedulerRunResult{}, err
		}
	}
	return SchedulerRunResult{Ran: result.Ran, SkippedAsDuplicate: result.SkippedAsDuplicate, Failed: result.Failed}, nil
}

// SchedulerStatus summarizes the plugins and tasks the scheduler currently
// knows about.
type SchedulerStatus struct {
	PluginCount int
	TaskCount   int
	Tasks       []SchedulerTaskStatus
}

// SchedulerTaskStatus names one declared scheduled task.
type SchedulerTaskStatus struct {
	Namespace string
	TaskID    string
	ActionID  string
	Schedule  string
	TimeZone  string
}

// GetPluginSchedulerStatus reports every enabled plugin's declared scheduled
// tasks, without running any of them.
func (e *Engine) GetPluginSchedulerStatus() (SchedulerStatus, error) {
	enabled, err := e.ListEnabledWithSchedules()
	if err != nil {
		return SchedulerStatus{}, rerr.Wrap(rerr.CodeIOFailure, err, "list enabled plugins with schedules")
	}
	status := SchedulerStatus{PluginCount: len(enabled)}
	for _, p := range enabled {
		for _, t := range p.Manifest.ScheduledTasks {
			status.Tasks = append(status.Tasks, SchedulerTaskStatus{
				Namespace: p.Manifest.Namespace,
				TaskID:    t.TaskID,
				ActionID:  t.ActionID,
				Schedule:  t.Schedule,
				TimeZone:  t.TimeZone,
			})
			status.TaskCount++
		}
	}
	return status, nil
}
