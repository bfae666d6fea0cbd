package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/rerr"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Invoke a plugin action directly",
}

var actionInvokeCmd = &cobra.Command{
	Use:   "invoke NAMESPACE ACTION_ID",
	Short: "Run one declared plugin action through the full runtime contract",
	Args:  cobra.ExactArgs(2),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		inputBytes, err := readPayload(cmd, "input-file", "input-json")
		if err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "read input")
		}
		requestID, _ := cmd.Flags().GetString("request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		event, output, invokeErr := e.InvokeAction(context.Background(), args[0], args[1], json.RawMessage(inputBytes), actorFromFlags(cmd), requestID)
		result := struct {
			Event  any             `json:"event"`
			Output json.RawMessage `json:"output"`
		}{event, output}
		if err := printResult(cmd, result, func() string {
			return fmt.Sprintf("%s %s/%s -> %s", event.Type, args[0], args[1], string(output))
		}); err != nil {
			return err
		}
		return invokeErr
	}),
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.AddCommand(actionInvokeCmd)

	actionInvokeCmd.Flags().String("input-file", "", "path to action input JSON (\"-\" for stdin)")
	actionInvokeCmd.Flags().String("input-json", "", "literal action input JSON")
	actionInvokeCmd.Flags().String("request-id", "", "idempotency/request id (a random one is generated if omitted)")
	addActorFlag(actionInvokeCmd)
}
