package core

import (
	"context"
	"encoding/json"

	"github.com/remcore/rem/internal/plugin"
	"github.com/remcore/rem/internal/scheduler"
	"github.com/remcore/rem/internal/schema"
)

// InvokeAction runs one declared plugin action end to end through the
// runtime's full contract (enabled check, trust, permissions, size caps,
// concurrency, timeout), appends the resulting plugin.action_invoked or
// plugin.action_failed event, and returns the action's output alongside it.
func (e *Engine) InvokeAction(ctx context.Context, namespace, actionID string, input json.RawMessage, actor schema.Actor, requestID string) (schema.Event, json.RawMessage, error) {
	ev, output, invokeErr := e.runtime.Invoke(ctx, plugin.InvokeParams{
		Namespace:      namespace,
		ActionID:       actionID,
		Input:          input,
		PluginPath:     e.pluginPath(namespace),
		TrustedRoots:   e.trustedRoots,
		TimeoutMs:      e.actionTimeoutMs,
		MaxInputBytes:  e.maxInputBytes,
		MaxOutputBytes: e.maxOutputBytes,
		MaxConcurrency: e.maxConcurrency,
		RequestID:      requestID,
		Actor:          actor,
	})
	if _, err := e.appendEvent(ev); err != nil {
		return ev, output, err
	}
	return ev, output, invokeErr
}

// schedulerExecutor adapts Engine's action runtime to scheduler.Executor,
// so the scheduler package never imports internal/plugin directly.
type schedulerExecutor struct {
	engine *Engine
}

func (s *schedulerExecutor) Invoke(ctx context.Context, p scheduler.ExecutorParams) (json.RawMessage, error) {
	_, output, err := s.engine.InvokeAction(ctx, p.Namespace, p.ActionID, p.Input, p.Actor, p.RequestID)
	return output, err
}
