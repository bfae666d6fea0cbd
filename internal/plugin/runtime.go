package plugin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"golang.org/x/sync/semaphore"
)

// InvokeParams are the caller-supplied bounds and addressing for one action
// invocation.
type InvokeParams struct {
	Namespace      string
	ActionID       string
	Input          json.RawMessage
	PluginPath     string
	TrustedRoots   []string
	TimeoutMs      int
	MaxInputBytes  int
	MaxOutputBytes int
	MaxConcurrency int64
	RequestID      string
	Actor          schema.Actor
}

// Runtime enforces the action-invocation contract: enabled-check, trusted
// path containment, declared-action and permission checks, input/output
// size caps, per-namespace concurrency limits, and a timeout deadline.
type Runtime struct {
	Load func(namespace string) (schema.Plugin, bool, error)
	Host Host
	Core Core
	Hostname string

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
}

func (r *Runtime) semFor(namespace string, weight int64) *semaphore.Weighted {
	r.semMu.Lock()
	defer r.semMu.Unlock()
	if r.sems == nil {
		r.sems = map[string]*semaphore.Weighted{}
	}
	sem, ok := r.sems[namespace]
	if !ok || sem == nil {
		sem = semaphore.NewWeighted(weight)
		r.sems[namespace] = sem
	}
	return sem
}

// Invoke runs one action end to end and always returns an event describing
// the outcome (plugin.action_invoked on success, plugin.action_failed on
// failure) alongside the error, if any, so the caller can append the event
// to the log regardless of outcome.
func (r *Runtime) Invoke(ctx context.Context, p InvokeParams) (schema.Event, json.RawMessage, error) {
	start := time.Now()

	output, err := r.dispatch(ctx, p)
	duration := time.Since(start)

	if err != nil {
		return r.failureEvent(p, duration, err), nil, err
	}
	return r.successEvent(p, duration, len(output)), output, nil
}

func (r *Runtime) dispatch(ctx context.Context, p InvokeParams) (json.RawMessage, error) {
	plugin, found, err := r.Load(p.Namespace)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "load plugin %q", p.Namespace)
	}
	if !found || plugin.Meta.LifecycleState != schema.LifecycleEnabled {
		return nil, rerr.Err(rerr.CodePluginNotEnabled, "plugin %q is not enabled", p.Namespace)
	}

	if !IsTrusted(p.PluginPath, p.TrustedRoots) {
		return nil, rerr.Err(rerr.CodePluginUntrustedPath, "plugin path %q is not under a trusted root", p.PluginPath)
	}

	action, declared := findAction(plugin.Manifest, p.ActionID)
	if !declared {
		return nil, rerr.Err(rerr.CodeInvalidInput, "action %q not declared by plugin %q", p.ActionID, p.Namespace)
	}
	if !permissionsSatisfied(action.RequiredPermissions, plugin.Manifest.Permissions) {
		return nil, rerr.Err(rerr.CodeInvalidInput, "action %q requires permissions not granted to plugin %q", p.ActionID, p.Namespace)
	}

	if p.MaxInputBytes > 0 && len(p.Input) > p.MaxInputBytes {
		return nil, rerr.Err(rerr.CodeInvalidInput, "input of %d bytes exceeds cap of %d", len(p.Input), p.MaxInputBytes)
	}

	weight := p.MaxConcurrency
	if weight <= 0 {
		weight = 1
	}
	sem := r.semFor(p.Namespace, weight)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, rerr.Wrap(rerr.CodeIOFailure, err, "acquire concurrency slot for %q", p.Namespace)
	}
	defer sem.Release(1)

	invocation := Invocation{
		RequestID:   p.RequestID,
		ActorKind:   p.Actor.Kind,
		ActorID:     p.Actor.ID,
		Host:        r.Hostname,
		Namespace:   p.Namespace,
		Permissions: plugin.Manifest.Permissions,
		Core:        &scopedCore{Core: r.Core, Namespace: p.Namespace, Actor: p.Actor},
	}

	timeout := time.Duration(p.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := r.Host.Dispatch(dctx, p.Namespace, p.ActionID, p.Input, invocation)
		done <- result{out, err}
	}()

	select {
	case <-dctx.Done():
		return nil, rerr.Err(rerr.CodePluginActionTimeout, "action %q on %q exceeded %s", p.ActionID, p.Namespace, timeout)
	case res := <-done:
		if res.err != nil {
			if ce, ok := res.err.(*rerr.Error); ok {
				return nil, ce
			}
			return nil, rerr.Wrap(rerr.CodePluginRunFailed, res.err, "action %q on %q failed", p.ActionID, p.Namespace)
		}
		if p.MaxOutputBytes > 0 && len(res.out) > p.MaxOutputBytes {
			return nil, rerr.Err(rerr.CodePluginOutputTooBig, "output of %d bytes exceeds cap of %d", len(res.out), p.MaxOutputBytes)
		}
		return res.out, nil
	}
}

func findAction(m schema.Manifest, actionID string) (schema.Action, bool) {
	for _, a := range m.CLI {
		if a.ActionID == actionID {
			return a, true
		}
	}
	for _, a := range m.UI {
		if a.ActionID == actionID {
			return a, true
		}
	}
	return schema.Action{}, false
}

func permissionsSatisfied(required, granted []string) bool {
	grantedSet := make(map[string]bool, len(granted))
	for _, g := range granted {
		grantedSet[g] = true
	}
	for _, req := range required {
		if !grantedSet[req] {
			return false
		}
	}
	return true
}

type invokedPayload struct {
	Namespace  string `json:"namespace"`
	ActionID   string `json:"actionId"`
	RequestID  string `json:"requestId"`
	ActorKind  string `json:"actorKind"`
	Host       string `json:"host"`
	DurationMs int64  `json:"durationMs"`
	Status     string `json:"status"`
	InputBytes int    `json:"inputBytes"`
	OutputBytes int   `json:"outputBytes,omitempty"`
}

type failedPayload struct {
	invokedPayload
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func (r *Runtime) successEvent(p InvokeParams, d time.Duration, outputBytes int) schema.Event {
	payload, _ := json.Marshal(invokedPayload{
		Namespace:   p.Namespace,
		ActionID:    p.ActionID,
		RequestID:   p.RequestID,
		ActorKind:   p.Actor.Kind,
		Host:        r.Hostname,
		DurationMs:  d.Milliseconds(),
		Status:      "success",
		InputBytes:  len(p.Input),
		OutputBytes: outputBytes,
	})
	return schema.Event{
		Type:      schema.EventPluginActionInvoked,
		Timestamp: time.Now().UTC(),
		Actor:     p.Actor,
		Entity:    schema.EventEntityRef{Kind: "plugin", ID: p.Namespace},
		Payload:   payload,
	}
}

func (r *Runtime) failureEvent(p InvokeParams, d time.Duration, err error) schema.Event {
	payload, _ := json.Marshal(failedPayload{
		invokedPayload: invokedPayload{
			Namespace:  p.Namespace,
			ActionID:   p.ActionID,
			RequestID:  p.RequestID,
			ActorKind:  p.Actor.Kind,
			Host:       r.Hostname,
			DurationMs: d.Milliseconds(),
			Status:     "failure",
			InputBytes: len(p.Input),
		},
		ErrorCode:    string(rerr.CodeOf(err)),
		ErrorMessage: err.Error(),
	})
	return schema.Event{
		Type:      schema.EventPluginActionFailed,
		Timestamp: time.Now().UTC(),
		Actor:     p.Actor,
		Entity:    schema.EventEntityRef{Kind: "plugin", ID: p.Namespace},
		Payload:   payload,
	}
}
