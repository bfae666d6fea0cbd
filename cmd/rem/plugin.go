package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Register, install, and manage plugin lifecycle",
}

var pluginRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register (or re-register) a plugin manifest",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		manifestBytes, err := readPayload(cmd, "manifest-file", "manifest-json")
		if err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "read manifest")
		}
		manifest, err := unmarshalManifest(manifestBytes)
		if err != nil {
			return err
		}

		p, err := e.RegisterPlugin(manifest)
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string {
			return fmt.Sprintf("registered %s (%s)", p.Manifest.Namespace, p.Meta.LifecycleState)
		})
	}),
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install NAMESPACE",
	Short: "Transition a plugin registered -> installed",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		p, err := e.InstallPlugin(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string { return fmt.Sprintf("%s: %s", args[0], p.Meta.LifecycleState) })
	}),
}

var pluginEnableCmd = &cobra.Command{
	Use:   "enable NAMESPACE",
	Short: "Transition a plugin installed|disabled -> enabled",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		p, err := e.EnablePlugin(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string { return fmt.Sprintf("%s: %s", args[0], p.Meta.LifecycleState) })
	}),
}

var pluginDisableCmd = &cobra.Command{
	Use:   "disable NAMESPACE",
	Short: "Transition a plugin enabled -> disabled",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		reason, _ := cmd.Flags().GetString("reason")
		p, err := e.DisablePlugin(args[0], reason)
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string { return fmt.Sprintf("%s: %s", args[0], p.Meta.LifecycleState) })
	}),
}

var pluginUninstallCmd = &cobra.Command{
	Use:   "uninstall NAMESPACE",
	Short: "Transition a plugin enabled|disabled -> uninstalled",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		p, err := e.UninstallPlugin(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string { return fmt.Sprintf("%s: %s", args[0], p.Meta.LifecycleState) })
	}),
}

var pluginGetCmd = &cobra.Command{
	Use:   "get NAMESPACE",
	Short: "Show one registered plugin",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		p, err := e.GetPlugin(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string { return fmt.Sprintf("%s\t%s", p.Manifest.Namespace, p.Meta.LifecycleState) })
	}),
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered plugin manifest",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		manifests, err := e.ListPlugins()
		if err != nil {
			return err
		}
		return printResult(cmd, manifests, func() string {
			var b strings.Builder
			for _, m := range manifests {
				fmt.Fprintf(&b, "%s\t%s\n", m.Namespace, m.SchemaVersion)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var pluginTemplatesCmd = &cobra.Command{
	Use:   "templates NAMESPACE",
	Short: "List a plugin's named note templates",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		templates, err := e.ListPluginTemplates(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, templates, func() string {
			var b strings.Builder
			for name := range templates {
				fmt.Fprintln(&b, name)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var pluginApplyTemplateCmd = &cobra.Command{
	Use:   "apply-template NAMESPACE TEMPLATE",
	Short: "Print the raw body of one of a plugin's templates",
	Args:  cobra.ExactArgs(2),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		body, err := e.ApplyPluginTemplate(args[0], args[1])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(body, '\n'))
		return err
	}),
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginRegisterCmd, pluginInstallCmd, pluginEnableCmd, pluginDisableCmd,
		pluginUninstallCmd, pluginGetCmd, pluginListCmd, pluginTemplatesCmd, pluginApplyTemplateCmd)

	pluginRegisterCmd.Flags().String("manifest-file", "", "path to a plugin manifest JSON file (\"-\" for stdin)")
	pluginRegisterCmd.Flags().String("manifest-json", "", "literal manifest JSON")

	pluginDisableCmd.Flags().String("reason", "", "reason recorded on the plugin's lifecycle meta")
}

func unmarshalManifest(data []byte) (schema.Manifest, error) {
	var m schema.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return schema.Manifest{}, rerr.Wrap(rerr.CodeInvalidInput, err, "parse manifest")
	}
	return m, nil
}
