package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Get or create today's daily note",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		tz, _ := cmd.Flags().GetString("tz")
		note, created, err := e.GetOrCreateDailyNote(time.Now(), tz)
		if err != nil {
			return err
		}
		result := struct {
			Note    any  `json:"note"`
			Created bool `json:"created"`
		}{note, created}
		return printResult(cmd, result, func() string {
			verb := "found"
			if created {
				verb = "created"
			}
			return fmt.Sprintf("%s daily note %s", verb, note.NoteID)
		})
	}),
}

func init() {
	rootCmd.AddCommand(dailyCmd)
	dailyCmd.Flags().String("tz", "UTC", "IANA time zone the daily boundary is computed in")
}
