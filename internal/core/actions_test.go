package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/remcore/rem/internal/plugin"
	"github.com/remcore/rem/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerEchoPlugin(t *testing.T, e *Engine) {
	t.Helper()
	_, err := e.RegisterPlugin(schema.Manifest{
		Namespace:     "echoer",
		SchemaVersion: "v1",
		Permissions:   []string{"notes:read"},
		CLI:           []schema.Action{{ActionID: "echo", RequiredPermissions: []string{"notes:read"}}},
	})
	require.NoError(t, err)
	_, err = e.InstallPlugin("echoer")
	require.NoError(t, err)
	_, err = e.EnablePlugin("echoer")
	require.NoError(t, err)
}

func TestInvokeActionSucceeds(t *testing.T) {
	e := newTestEngine(t)
	registerEchoPlugin(t, e)
	e.SetHost(plugin.HostFunc(func(ctx context.Context, ns, actionID string, input json.RawMessage, inv plugin.Invocation) (json.RawMessage, error) {
		return input, nil
	}))

	event, output, err := e.InvokeAction(context.Background(), "echoer", "echo", json.RawMessage(`{"x":1}`), schema.Actor{Kind: schema.ActorHuman}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, schema.EventPluginActionInvoked, event.Type)
	assert.JSONEq(t, `{"x":1}`, string(output))
}

func TestInvokeActionRecordsFailureEvent(t *testing.T) {
	e := newTestEngine(t)
	registerEchoPlugin(t, e)
	e.SetHost(plugin.HostFunc(func(ctx context.Context, ns, actionID string, input json.RawMessage, inv plugin.Invocation) (json.RawMessage, error) {
		return nil, assert.AnError
	}))

	event, _, err := e.InvokeAction(context.Background(), "echoer", "echo", json.RawMessage(`{}`), schema.Actor{Kind: schema.ActorHuman}, "req-2")
	require.Error(t, err)
	assert.Equal(t, schema.EventPluginActionFailed, event.Type)
}
