package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/core"
	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/richtext"
	"github.com/remcore/rem/internal/rerr"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, read, and search notes",
}

var noteSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a note, or update one with --note-id",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		docBytes, err := readPayload(cmd, "document-file", "document-json")
		if err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "read document")
		}
		var doc richtext.Document
		if err := json.Unmarshal(docBytes, &doc); err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "parse document")
		}

		noteID, _ := cmd.Flags().GetString("note-id")
		title, _ := cmd.Flags().GetString("title")
		noteType, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		overrideReason, _ := cmd.Flags().GetString("override-reason")
		approvedBy, _ := cmd.Flags().GetString("approved-by")
		sourcePlugin, _ := cmd.Flags().GetString("source-plugin")

		note, err := e.SaveNote(core.SaveNoteInput{
			NoteID:         noteID,
			Title:          title,
			NoteType:       noteType,
			Tags:           tags,
			Document:       doc,
			Actor:          actorFromFlags(cmd),
			OverrideReason: overrideReason,
			ApprovedBy:     approvedBy,
			SourcePlugin:   sourcePlugin,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, note, func() string {
			return fmt.Sprintf("saved note %s %q", note.NoteID, note.Title)
		})
	}),
}

var noteGetCmd = &cobra.Command{
	Use:   "get NOTE_ID",
	Short: "Render a note's document",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		format, _ := cmd.Flags().GetString("format")
		rendered, err := e.GetNote(args[0], core.NoteFormat(format))
		if err != nil {
			return err
		}
		if wantsJSON(cmd) {
			return printJSON(cmd, map[string]string{"noteId": args[0], "format": format, "body": rendered})
		}
		_, err = cmd.OutOrStdout().Write([]byte(rendered + "\n"))
		return err
	}),
}

var noteSectionsCmd = &cobra.Command{
	Use:   "sections NOTE_ID",
	Short: "List a note's section index",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		sections, err := e.ListSections(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, sections, func() string {
			var b strings.Builder
			for _, s := range sections {
				fmt.Fprintf(&b, "%d\t%s\t%s\n", s.Position, s.SectionID, s.HeadingText)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var noteFindSectionCmd = &cobra.Command{
	Use:   "find-section NOTE_ID",
	Short: "Locate a section by id or fallback path",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		sectionID, _ := cmd.Flags().GetString("section-id")
		fallback, _ := cmd.Flags().GetStringSlice("fallback-path")
		section, err := e.FindSection(core.FindSectionParams{NoteID: args[0], SectionID: sectionID, FallbackPath: fallback})
		if err != nil {
			return err
		}
		return printResult(cmd, section, func() string {
			return fmt.Sprintf("%s\t%s", section.SectionID, section.HeadingText)
		})
	}),
}

var noteSearchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Full-text search over notes",
	Args:  cobra.MaximumNArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		var query string
		if len(args) == 1 {
			query = args[0]
		}
		tags, _ := cmd.Flags().GetStringSlice("tags")
		noteTypes, _ := cmd.Flags().GetStringSlice("note-types")
		plugins, _ := cmd.Flags().GetStringSlice("plugins")
		limit, _ := cmd.Flags().GetInt("limit")

		results, err := e.SearchNotes(query, index.NoteFilter{
			Tags: tags, NoteTypes: noteTypes, PluginNamespaces: plugins, Limit: limit,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, results, func() string {
			var b strings.Builder
			for _, r := range results {
				fmt.Fprintf(&b, "%s\t%s\t%s\n", r.NoteID, r.NoteType, r.Title)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events from the append-only log",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		typ, _ := cmd.Flags().GetString("type")
		actorKind, _ := cmd.Flags().GetString("actor-kind")
		actorID, _ := cmd.Flags().GetString("actor-id")
		entityKind, _ := cmd.Flags().GetString("entity-kind")
		entityID, _ := cmd.Flags().GetString("entity-id")
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := e.ListEvents(index.EventFilter{
			Type: typ, ActorKind: actorKind, ActorID: actorID,
			EntityKind: entityKind, EntityID: entityID, Limit: limit,
		})
		if err != nil {
			return err
		}
		return printResult(cmd, events, func() string {
			var b strings.Builder
			for _, ev := range events {
				fmt.Fprintf(&b, "%s\t%s\t%s:%s\n", ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.Entity.Kind, ev.Entity.ID)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

func init() {
	rootCmd.AddCommand(noteCmd, eventsCmd)
	noteCmd.AddCommand(noteSaveCmd, noteGetCmd, noteSectionsCmd, noteFindSectionCmd, noteSearchCmd)

	noteSaveCmd.Flags().String("note-id", "", "existing note id to update (omit to create)")
	noteSaveCmd.Flags().String("title", "", "note title")
	noteSaveCmd.Flags().String("type", "", "note type")
	noteSaveCmd.Flags().StringSlice("tags", nil, "tags to set on the note")
	noteSaveCmd.Flags().String("document-file", "", "path to a lexical document JSON file (\"-\" for stdin)")
	noteSaveCmd.Flags().String("document-json", "", "literal lexical document JSON")
	noteSaveCmd.Flags().String("override-reason", "", "required for an agent actor writing directly instead of via a proposal")
	noteSaveCmd.Flags().String("approved-by", "", "required alongside --override-reason")
	noteSaveCmd.Flags().String("source-plugin", "", "namespace of the plugin action performing this write, if any")
	addActorFlag(noteSaveCmd)

	noteGetCmd.Flags().String("format", string(core.FormatNoteLexical), "rendering: lexical, text, or md")

	noteFindSectionCmd.Flags().String("section-id", "", "section id to match first")
	noteFindSectionCmd.Flags().StringSlice("fallback-path", nil, "heading-path fallback when section-id misses or is absent")

	noteSearchCmd.Flags().StringSlice("tags", nil, "filter by tag")
	noteSearchCmd.Flags().StringSlice("note-types", nil, "filter by note type")
	noteSearchCmd.Flags().StringSlice("plugins", nil, "filter by plugin namespace")
	noteSearchCmd.Flags().Int("limit", 0, "maximum results (0 for the index default)")

	eventsCmd.Flags().String("type", "", "filter by event type")
	eventsCmd.Flags().String("actor-kind", "", "filter by actor kind (human|agent)")
	eventsCmd.Flags().String("actor-id", "", "filter by actor id")
	eventsCmd.Flags().String("entity-kind", "", "filter by entity kind (note|proposal|plugin|entity)")
	eventsCmd.Flags().String("entity-id", "", "filter by entity id")
	eventsCmd.Flags().Int("limit", 50, "maximum results")
}
