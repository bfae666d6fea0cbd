package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"

	"github.com/remcore/rem/internal/rerr"
)

// SubprocessHost dispatches an action to an executable under the plugin's
// own code directory, delivering the invocation envelope as JSON on stdin
// and reading the action's output as JSON from stdout. This is the
// "subprocess with stdio JSON" host implementation; the runtime's contract
// (timeouts, caps, permission gating, trust policy) applies identically
// regardless of which Host is wired in.
type SubprocessHost struct {
	// PluginPath returns the on-disk directory a namespace's code lives
	// under (the same directory as its manifest.json).
	PluginPath func(namespace string) string
}

// envelope is what an action entrypoint receives on stdin.
type envelope struct {
	Invocation struct {
		RequestID   string   `json:"requestId"`
		ActorKind   string   `json:"actorKind"`
		ActorID     string   `json:"actorId"`
		Host        string   `json:"host"`
		Permissions []string `json:"permissions"`
	} `json:"invocation"`
	Plugin struct {
		Namespace string `json:"namespace"`
	} `json:"plugin"`
	ActionID string          `json:"actionId"`
	Input    json.RawMessage `json:"input"`
}

func (h *SubprocessHost) Dispatch(ctx context.Context, namespace, actionID string, input json.RawMessage, invocation Invocation) (json.RawMessage, error) {
	entrypoint := filepath.Join(h.PluginPath(namespace), "actions", actionID)

	var env envelope
	env.Invocation.RequestID = invocation.RequestID
	env.Invocation.ActorKind = invocation.ActorKind
	env.Invocation.ActorID = invocation.ActorID
	env.Invocation.Host = invocation.Host
	env.Invocation.Permissions = invocation.Permissions
	env.Plugin.Namespace = namespace
	env.ActionID = actionID
	env.Input = input

	stdin, err := json.Marshal(env)
	if err != nil {
		return nil, rerr.Wrap(rerr.CodePluginRunFailed, err, "marshal invocation envelope")
	}

	cmd := exec.CommandContext(ctx, entrypoint)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, rerr.Wrap(rerr.CodePluginRunFailed, err, "exec %s: %s", entrypoint, stderr.String())
	}
	return json.RawMessage(bytes.TrimSpace(stdout.Bytes())), nil
}
