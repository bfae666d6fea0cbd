package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

// Executor dispatches one scheduled task's action. It is satisfied by
// *plugin.Runtime in production and by a stub in tests.
type Executor interface {
	Invoke(ctx context.Context, p ExecutorParams) (json.RawMessage, error)
}

// ExecutorParams is the subset of plugin.InvokeParams a scheduled dispatch
// needs; kept separate so this package doesn't import internal/plugin.
type ExecutorParams struct {
	Namespace string
	ActionID  string
	Input     json.RawMessage
	Actor     schema.Actor
	RequestID string
}

// Ledger is the persistence surface the scheduler needs from the store.
type Ledger interface {
	HasDedupeKey(key string) (bool, error)
	AppendLedgerEntry(entry schema.SchedulerLedgerEntry) error
}

// PluginSource lists every enabled plugin with scheduled tasks.
type PluginSource interface {
	ListEnabledWithSchedules() ([]schema.Plugin, error)
}

// RunResult summarizes one scheduler tick.
type RunResult struct {
	Ran               int
	SkippedAsDuplicate int
	Failed            int
	Events            []schema.Event
}

// Run executes one scheduler tick: for every enabled plugin's declared
// scheduled tasks, resolve the most recent slot, skip if outside the run
// window or already in the ledger, otherwise dispatch and record.
func Run(ctx context.Context, now time.Time, plugins PluginSource, ledger Ledger, exec Executor) (RunResult, error) {
	enabled, err := plugins.ListEnabledWithSchedules()
	if err != nil {
		return RunResult{}, rerr.Wrap(rerr.CodeIOFailure, err, "list enabled plugins")
	}

	var result RunResult
	for _, p := range enabled {
		for _, task := range p.Manifest.ScheduledTasks {
			event, ran, skipped, err := runOne(ctx, now, p, task, ledger, exec)
			if err != nil {
				return result, err
			}
			if skipped {
				result.SkippedAsDuplicate++
				continue
			}
			if ran {
				result.Ran++
			} else {
				result.Failed++
			}
			result.Events = append(result.Events, event)
		}
	}
	return result, nil
}

func runOne(ctx context.Context, now time.Time, p schema.Plugin, task schema.ScheduledTask, ledger Ledger, exec Executor) (schema.Event, bool, bool, error) {
	loc, err := time.LoadLocation(task.TimeZone)
	if err != nil {
		return schema.Event{}, false, false, rerr.Wrap(rerr.CodeInvalidInput, err, "load timezone %q for task %q", task.TimeZone, task.TaskID)
	}

	slot, err := ResolveSlot(now, loc, task.Schedule, task.RunWindowMinutes)
	if err != nil {
		return schema.Event{}, false, false, rerr.Wrap(rerr.CodeInvalidInput, err, "resolve slot for task %q", task.TaskID)
	}
	if !slot.WithinWindow {
		return schema.Event{}, false, true, nil
	}

	idempotencyKind := schema.IdempotencyKeyKind(task.IdempotencyKey)
	var key string
	switch idempotencyKind {
	case schema.IdempotencyActionInputHash:
		key, err = CanonicalInputHash(task.Input)
		if err != nil {
			return schema.Event{}, false, false, rerr.Wrap(rerr.CodeInvalidInput, err, "hash input for task %q", task.TaskID)
		}
	default:
		idempotencyKind = schema.IdempotencyCalendarSlot
		key = slot.SlotKey
	}
	dedupeKey := DedupeKey(p.Manifest.Namespace, task.TaskID, string(idempotencyKind), key)

	exists, err := ledger.HasDedupeKey(dedupeKey)
	if err != nil {
		return schema.Event{}, false, false, rerr.Wrap(rerr.CodeIOFailure, err, "check ledger for %q", dedupeKey)
	}
	if exists {
		return schema.Event{}, false, true, nil
	}

	startedAt := time.Now().UTC()
	_, runErr := exec.Invoke(ctx, ExecutorParams{
		Namespace: p.Manifest.Namespace,
		ActionID:  task.ActionID,
		Input:     task.Input,
		Actor:     schema.Actor{Kind: schema.ActorAgent, ID: "scheduler"},
		RequestID: dedupeKey,
	})
	finishedAt := time.Now().UTC()

	if runErr != nil {
		return failedEvent(p.Manifest.Namespace, task, slot, runErr), false, false, nil
	}

	entry := schema.SchedulerLedgerEntry{
		DedupeKey:      dedupeKey,
		Namespace:      p.Manifest.Namespace,
		TaskID:         task.TaskID,
		ActionID:       task.ActionID,
		IdempotencyKey: idempotencyKind,
		ScheduledFor:   slot.ScheduledFor,
		SlotKey:        slot.SlotKey,
		TimeZone:       task.TimeZone,
		ExecutedAt:     finishedAt,
	}
	if err := ledger.AppendLedgerEntry(entry); err != nil {
		return schema.Event{}, false, false, rerr.Wrap(rerr.CodeIOFailure, err, "append ledger entry for %q", dedupeKey)
	}

	return successEvent(p.Manifest.Namespace, task, slot, startedAt, finishedAt, idempotencyKind), true, false, nil
}

type taskRanPayload struct {
	Namespace      string    `json:"namespace"`
	TaskID         string    `json:"taskId"`
	ActionID       string    `json:"actionId"`
	Status         string    `json:"status"`
	ScheduledFor   time.Time `json:"scheduledFor"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	FinishedAt     time.Time `json:"finishedAt,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}

func successEvent(namespace string, task schema.ScheduledTask, slot Slot, startedAt, finishedAt time.Time, idempotencyKind schema.IdempotencyKeyKind) schema.Event {
	payload, _ := json.Marshal(taskRanPayload{
		Namespace:      namespace,
		TaskID:         task.TaskID,
		ActionID:       task.ActionID,
		Status:         "success",
		ScheduledFor:   slot.ScheduledFor,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		IdempotencyKey: string(idempotencyKind),
	})
	return schema.Event{
		Type:      schema.EventPluginTaskRan,
		Timestamp: finishedAt,
		Actor:     schema.Actor{Kind: schema.ActorAgent, ID: "scheduler"},
		Entity:    schema.EventEntityRef{Kind: "plugin", ID: namespace},
		Payload:   payload,
	}
}

func failedEvent(namespace string, task schema.ScheduledTask, slot Slot, err error) schema.Event {
	payload, _ := json.Marshal(taskRanPayload{
		Namespace:    namespace,
		TaskID:       task.TaskID,
		ActionID:     task.ActionID,
		Status:       "failure",
		ScheduledFor: slot.ScheduledFor,
		ErrorCode:    string(rerr.CodeOf(err)),
		ErrorMessage: err.Error(),
	})
	return schema.Event{
		Type:      schema.EventPluginTaskRan,
		Timestamp: time.Now().UTC(),
		Actor:     schema.Actor{Kind: schema.ActorAgent, ID: "scheduler"},
		Entity:    schema.EventEntityRef{Kind: "plugin", ID: namespace},
		Payload:   payload,
	}
}
