package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Index rebuild and migration utilities",
}

var maintenanceRebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Truncate and rehydrate the derived index from canonical files and the event log",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.RebuildIndex()
		if err != nil {
			return err
		}
		return printResult(cmd, stats, func() string {
			return fmt.Sprintf("notes=%d proposals=%d entities=%d plugins=%d events=%d",
				stats.Notes, stats.Proposals, stats.Entities, stats.Plugins, stats.Events)
		})
	}),
}

var maintenanceMigrateSectionIdentityCmd = &cobra.Command{
	Use:   "migrate-section-identity",
	Short: "Recompute section identity for every note without touching documents",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.MigrateSectionIdentity()
		if err != nil {
			return err
		}
		return printResult(cmd, result, func() string {
			return fmt.Sprintf("visited %d notes", result.NotesVisited)
		})
	}),
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
	maintenanceCmd.AddCommand(maintenanceRebuildIndexCmd, maintenanceMigrateSectionIdentityCmd)
}
