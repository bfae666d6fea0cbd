package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/core"
	"github.com/remcore/rem/internal/rerr"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Save and query plugin-owned entities",
}

var entitySaveCmd = &cobra.Command{
	Use:   "save NAMESPACE ENTITY_TYPE ID",
	Short: "Create or update an entity",
	Args:  cobra.ExactArgs(3),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		dataBytes, err := readPayload(cmd, "data-file", "data-json")
		if err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "read data")
		}
		schemaVersion, _ := cmd.Flags().GetString("schema-version")

		ent, err := e.SaveEntity(core.SaveEntityInput{
			Namespace: args[0], EntityType: args[1], ID: args[2],
			SchemaVersion: schemaVersion, Data: json.RawMessage(dataBytes),
			Actor: actorFromFlags(cmd),
		})
		if err != nil {
			return err
		}
		return printResult(cmd, ent, func() string {
			return fmt.Sprintf("saved entity %s/%s/%s", ent.Namespace, ent.EntityType, ent.ID)
		})
	}),
}

var entityGetCmd = &cobra.Command{
	Use:   "get NAMESPACE ENTITY_TYPE ID",
	Short: "Show one entity and its schema compatibility mode",
	Args:  cobra.ExactArgs(3),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ent, compat, err := e.GetEntity(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		result := struct {
			Entity        any    `json:"entity"`
			Compatibility string `json:"compatibility"`
		}{ent, compat.Mode}
		return printResult(cmd, result, func() string {
			return fmt.Sprintf("%s/%s/%s\t%s\t%s", ent.Namespace, ent.EntityType, ent.ID, ent.SchemaVersion, compat.Mode)
		})
	}),
}

var entityListCmd = &cobra.Command{
	Use:   "list NAMESPACE ENTITY_TYPE",
	Short: "List every entity of a plugin's entity type",
	Args:  cobra.ExactArgs(2),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		entities, err := e.ListEntities(args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd, entities, func() string {
			var b strings.Builder
			for _, ent := range entities {
				fmt.Fprintf(&b, "%s\t%s\n", ent.ID, ent.SchemaVersion)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var entityMigrateCmd = &cobra.Command{
	Use:   "migrate NAMESPACE ENTITY_TYPE FROM_SCHEMA_VERSION",
	Short: "Re-validate entities at an old schema version up to current",
	Long: `Moves every entity of (namespace, entityType) currently at
from-schema-version onto the plugin's current schema version. Data is
carried forward unchanged and only re-validated against the current schema;
this command does not invoke any plugin action, and --action-id only labels
the migration in error messages.`,
	Args: cobra.ExactArgs(3),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		actionID, _ := cmd.Flags().GetString("action-id")

		result, err := e.MigratePluginEntities(args[0], args[1], actionID, args[2], dryRun, nil)
		if err != nil {
			return err
		}
		return printResult(cmd, result, func() string {
			return fmt.Sprintf("migrated %d/%d (dryRun=%v)", result.Migrated, result.Total, result.DryRun)
		})
	}),
}

func init() {
	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entitySaveCmd, entityGetCmd, entityListCmd, entityMigrateCmd)

	entitySaveCmd.Flags().String("data-file", "", "path to entity data JSON (\"-\" for stdin)")
	entitySaveCmd.Flags().String("data-json", "", "literal entity data JSON")
	entitySaveCmd.Flags().String("schema-version", "", "schema version the data is already shaped for (defaults to the type's current version)")
	addActorFlag(entitySaveCmd)

	entityMigrateCmd.Flags().Bool("dry-run", false, "report counts without writing")
	entityMigrateCmd.Flags().String("action-id", "", "plugin action id this migration is attributed to, for logging")
}
