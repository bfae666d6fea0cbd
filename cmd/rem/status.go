package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report index health against canonical counts",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.GetStatus()
		if err != nil {
			return err
		}
		return printResult(cmd, status, func() string {
			var b strings.Builder
			fmt.Fprintf(&b, "store: %s\n", status.StoreRoot)
			fmt.Fprintf(&b, "ok: %v\n", status.OK)
			fmt.Fprintf(&b, "notes=%d proposals=%d plugins=%d events=%d\n", status.Notes, status.Proposals, status.Plugins, status.Events)
			for _, h := range status.HealthHints {
				fmt.Fprintf(&b, "hint: %s\n", h)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
