package plugin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledPlugin(namespace string) schema.Plugin {
	return schema.Plugin{
		Manifest: schema.Manifest{
			Namespace:   namespace,
			Permissions: []string{"notes:write"},
			CLI: []schema.Action{
				{ActionID: "summarize", RequiredPermissions: []string{"notes:write"}},
			},
		},
		Meta: schema.PluginMeta{LifecycleState: schema.LifecycleEnabled},
	}
}

func newRuntime(p schema.Plugin, host Host) *Runtime {
	return &Runtime{
		Load: func(ns string) (schema.Plugin, bool, error) {
			if ns == p.Manifest.Namespace {
				return p, true, nil
			}
			return schema.Plugin{}, false, nil
		},
		Host:     host,
		Hostname: "test-host",
	}
}

func TestInvokeRejectsDisabledPlugin(t *testing.T) {
	p := enabledPlugin("demo")
	p.Meta.LifecycleState = schema.LifecycleDisabled
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		t.Fatal("dispatch should not be reached")
		return nil, nil
	}))

	_, _, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "summarize",
		PluginPath: "/trusted/demo", TrustedRoots: []string{"/trusted"},
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginNotEnabled, rerr.CodeOf(err))
}

func TestInvokeRejectsUntrustedPath(t *testing.T) {
	p := enabledPlugin("demo")
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		t.Fatal("dispatch should not be reached")
		return nil, nil
	}))

	_, _, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "summarize",
		PluginPath: "/untrusted/demo", TrustedRoots: []string{"/trusted"},
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginUntrustedPath, rerr.CodeOf(err))
}

func TestInvokeRejectsUndeclaredAction(t *testing.T) {
	p := enabledPlugin("demo")
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		t.Fatal("dispatch should not be reached")
		return nil, nil
	}))

	_, _, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "nonexistent",
		PluginPath: "/trusted/demo", TrustedRoots: []string{"/trusted"},
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodeInvalidInput, rerr.CodeOf(err))
}

func TestInvokeSucceeds(t *testing.T) {
	p := enabledPlugin("demo")
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		assert.Equal(t, "demo", ns)
		assert.Equal(t, "summarize", action)
		return json.RawMessage(`{"ok":true}`), nil
	}))

	event, out, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "summarize",
		Input:        json.RawMessage(`{"noteId":"n1"}`),
		PluginPath:   "/trusted/demo",
		TrustedRoots: []string{"/trusted"},
		RequestID:    "req-1",
		Actor:        schema.Actor{Kind: schema.ActorAgent, ID: "agent-1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, schema.EventPluginActionInvoked, event.Type)
}

func TestInvokeTimesOut(t *testing.T) {
	p := enabledPlugin("demo")
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return json.RawMessage(`{}`), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	_, _, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "summarize",
		PluginPath:   "/trusted/demo",
		TrustedRoots: []string{"/trusted"},
		TimeoutMs:    10,
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginActionTimeout, rerr.CodeOf(err))
}

func TestInvokeRejectsOversizedOutput(t *testing.T) {
	p := enabledPlugin("demo")
	rt := newRuntime(p, HostFunc(func(ctx context.Context, ns, action string, in json.RawMessage, inv Invocation) (json.RawMessage, error) {
		return json.RawMessage(`{"data":"0123456789"}`), nil
	}))

	_, _, err := rt.Invoke(context.Background(), InvokeParams{
		Namespace: "demo", ActionID: "summarize",
		PluginPath:     "/trusted/demo",
		TrustedRoots:   []string{"/trusted"},
		MaxOutputBytes: 4,
	})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginOutputTooBig, rerr.CodeOf(err))
}
