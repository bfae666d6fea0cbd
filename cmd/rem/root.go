package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/config"
	"github.com/remcore/rem/internal/core"
	"github.com/remcore/rem/internal/corelog"
	"github.com/remcore/rem/internal/schema"
)

var rootCmd = &cobra.Command{
	Use:   "rem",
	Short: "rem is a local, single-user knowledge store for rich-text notes",
	Long: `rem treats rich-text notes as canonical artifacts and records every
state transition in an append-only event log. One command table wraps the
note, proposal, plugin, entity, and scheduler operations.`,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("store-root", "", "store root directory (overrides STORE_ROOT and the persisted config)")
	rootCmd.PersistentFlags().String("config", "", "path to the persisted config file (default: $CONFIG_PATH or ~/.config/rem/config.json)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	rootCmd.PersistentFlags().Bool("pretty-log", false, "write human-readable logs instead of JSON lines")
}

// runHandled wraps a subcommand's RunE so a returned business error
// suppresses cobra's usage text; a usage error (bad flags/args, caught by
// cobra itself before RunE runs) still prints it.
func runHandled(f func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := f(cmd, args)
		if err != nil {
			cmd.SilenceUsage = true
		}
		return err
	}
}

func defaultConfigPath() string {
	dir, err := homedir.Dir()
	if err != nil {
		return "./rem_config.json"
	}
	return filepath.Join(dir, ".config", "rem", "config.json")
}

func resolveStoreRoot(cmd *cobra.Command) (string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	resolver := config.NewResolver(configPath)
	override, _ := cmd.Flags().GetString("store-root")
	resolver.SetOverride(override)
	return resolver.Resolve()
}

func openEngine(cmd *cobra.Command) (*core.Engine, error) {
	storeRoot, err := resolveStoreRoot(cmd)
	if err != nil {
		return nil, err
	}
	pretty, _ := cmd.Flags().GetBool("pretty-log")
	logger := corelog.Component(corelog.New(pretty, os.Stderr), "cli")
	return core.Open(storeRoot, core.Options{Log: logger, TrustedRoots: []string{storeRoot}})
}

func wantsJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders v as JSON when --json is set, otherwise calls text to
// produce the human-readable rendering.
func printResult(cmd *cobra.Command, v any, text func() string) error {
	if wantsJSON(cmd) {
		return printJSON(cmd, v)
	}
	_, err := cmd.OutOrStdout().Write([]byte(text() + "\n"))
	return err
}

// readPayload resolves a JSON body from a literal flag, a file flag ("-"
// meaning stdin), or stdin if neither flag was set.
func readPayload(cmd *cobra.Command, fileFlag, literalFlag string) ([]byte, error) {
	literal, _ := cmd.Flags().GetString(literalFlag)
	if literal != "" {
		return []byte(literal), nil
	}
	file, _ := cmd.Flags().GetString(fileFlag)
	if file != "" && file != "-" {
		return os.ReadFile(file)
	}
	return io.ReadAll(cmd.InOrStdin())
}

// addActorFlag registers the agent-actor override flag every mutating
// command accepts. Absent it, the actor defaults to a human.
func addActorFlag(cmd *cobra.Command) {
	cmd.Flags().String("actor-agent-id", "", "act as an agent with this id instead of the default human actor")
}

func actorFromFlags(cmd *cobra.Command) schema.Actor {
	agentID, _ := cmd.Flags().GetString("actor-agent-id")
	if agentID != "" {
		return schema.Actor{Kind: schema.ActorAgent, ID: agentID}
	}
	return schema.Actor{Kind: schema.ActorHuman}
}
