package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/remcore/rem/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAction(t *testing.T, dir, actionID, script string) {
	t.Helper()
	actionsDir := filepath.Join(dir, "actions")
	require.NoError(t, os.MkdirAll(actionsDir, 0o755))
	path := filepath.Join(actionsDir, actionID)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func TestSubprocessHostDispatchRoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeAction(t, dir, "echo", "#!/bin/sh\ncat\n")

	host := &SubprocessHost{PluginPath: func(namespace string) string { return dir }}
	output, err := host.Dispatch(context.Background(), "demo", "echo", json.RawMessage(`{"x":1}`), Invocation{RequestID: "req-1", Namespace: "demo"})
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(output, &envelope))
	assert.JSONEq(t, `{"x":1}`, string(envelope["input"]))
	assert.Equal(t, `"echo"`, string(envelope["actionId"]))
}

func TestSubprocessHostDispatchFailureWrapsStderr(t *testing.T) {
	dir := t.TempDir()
	writeAction(t, dir, "boom", "#!/bin/sh\necho bad input 1>&2\nexit 1\n")

	host := &SubprocessHost{PluginPath: func(namespace string) string { return dir }}
	_, err := host.Dispatch(context.Background(), "demo", "boom", json.RawMessage(`{}`), Invocation{Namespace: "demo"})
	require.Error(t, err)
	assert.Equal(t, rerr.CodePluginRunFailed, rerr.CodeOf(err))
	assert.Contains(t, err.Error(), "bad input")
}
