package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect plugin scheduled tasks",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduler tick against the current time",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		now := time.Now()
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			parsed, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("parse --at: %w", err)
			}
			now = parsed
		}

		result, err := e.RunPluginScheduler(context.Background(), now, nil)
		if err != nil {
			return err
		}
		return printResult(cmd, result, func() string {
			return fmt.Sprintf("ran=%d skipped=%d failed=%d", result.Ran, result.SkippedAsDuplicate, result.Failed)
		})
	}),
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List declared scheduled tasks across enabled plugins",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		status, err := e.GetPluginSchedulerStatus()
		if err != nil {
			return err
		}
		return printResult(cmd, status, func() string {
			var b strings.Builder
			for _, t := range status.Tasks {
				fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", t.Namespace, t.TaskID, t.Schedule, t.TimeZone)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerRunCmd, schedulerStatusCmd)
	schedulerRunCmd.Flags().String("at", "", "RFC3339 timestamp to run against instead of now")
}
