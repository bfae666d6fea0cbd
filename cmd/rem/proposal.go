package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Create and resolve structured edit proposals",
}

var proposalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a proposal against a note or section",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		contentBytes, err := readPayload(cmd, "content-file", "content-json")
		if err != nil {
			return rerr.Wrap(rerr.CodeInvalidInput, err, "read content")
		}

		noteID, _ := cmd.Flags().GetString("note-id")
		sectionID, _ := cmd.Flags().GetString("section-id")
		fallback, _ := cmd.Flags().GetStringSlice("fallback-path")
		proposalType, _ := cmd.Flags().GetString("type")
		format, _ := cmd.Flags().GetString("format")
		schemaVersion, _ := cmd.Flags().GetString("schema-version")
		tagsAdd, _ := cmd.Flags().GetStringSlice("tags-add")
		tagsRemove, _ := cmd.Flags().GetStringSlice("tags-remove")
		setTitle, _ := cmd.Flags().GetString("set-title")
		rationale, _ := cmd.Flags().GetString("rationale")
		source, _ := cmd.Flags().GetString("source")

		p := schema.Proposal{
			Actor:        actorFromFlags(cmd),
			Target:       schema.ProposalTarget{NoteID: noteID, SectionID: sectionID, FallbackPath: fallback},
			ProposalType: schema.ProposalType(proposalType),
			Content: schema.ProposalContent{
				Format: schema.ContentFormat(format), Content: json.RawMessage(contentBytes),
				SchemaVersion: schemaVersion, TagsToAdd: tagsAdd, TagsToRemove: tagsRemove, SetTitle: setTitle,
			},
			Rationale: rationale,
			Source:    source,
		}
		if confStr, _ := cmd.Flags().GetString("confidence"); confStr != "" {
			var conf float64
			if _, err := fmt.Sscanf(confStr, "%g", &conf); err == nil {
				p.Confidence = &conf
			}
		}

		created, err := e.CreateProposal(p)
		if err != nil {
			return err
		}
		return printResult(cmd, created, func() string {
			return fmt.Sprintf("created proposal %s on note %s", created.ID, created.Target.NoteID)
		})
	}),
}

var proposalGetCmd = &cobra.Command{
	Use:   "get PROPOSAL_ID",
	Short: "Show one proposal",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.GetProposal(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string {
			return fmt.Sprintf("%s\t%s\t%s", p.ID, p.Status, p.Target.NoteID)
		})
	}),
}

var proposalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		noteID, _ := cmd.Flags().GetString("note-id")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		out, err := e.ListProposals(index.ProposalFilter{NoteID: noteID, Status: schema.ProposalStatus(status), Limit: limit})
		if err != nil {
			return err
		}
		return printResult(cmd, out, func() string {
			var b strings.Builder
			for _, p := range out {
				fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", p.ID, p.Status, p.NoteID, p.ProposalType)
			}
			return strings.TrimRight(b.String(), "\n")
		})
	}),
}

var proposalAcceptCmd = &cobra.Command{
	Use:   "accept PROPOSAL_ID",
	Short: "Accept a proposal and apply it to its note",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, note, err := e.AcceptProposal(args[0])
		if err != nil {
			return err
		}
		result := struct {
			Proposal schema.Proposal `json:"proposal"`
			NoteID   string          `json:"noteId"`
		}{p, note.NoteID}
		return printResult(cmd, result, func() string {
			return fmt.Sprintf("accepted %s, applied to note %s", p.ID, note.NoteID)
		})
	}),
}

var proposalRejectCmd = &cobra.Command{
	Use:   "reject PROPOSAL_ID",
	Short: "Reject an open proposal",
	Args:  cobra.ExactArgs(1),
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.RejectProposal(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, p, func() string {
			return fmt.Sprintf("rejected %s", p.ID)
		})
	}),
}

func init() {
	rootCmd.AddCommand(proposalCmd)
	proposalCmd.AddCommand(proposalCreateCmd, proposalGetCmd, proposalListCmd, proposalAcceptCmd, proposalRejectCmd)

	proposalCreateCmd.Flags().String("note-id", "", "target note id (required)")
	proposalCreateCmd.Flags().String("section-id", "", "target section id")
	proposalCreateCmd.Flags().StringSlice("fallback-path", nil, "heading-path fallback when section-id is absent")
	proposalCreateCmd.Flags().String("type", string(schema.ProposalAnnotate), "replace_section or annotate")
	proposalCreateCmd.Flags().String("format", string(schema.FormatText), "content format: lexical, text, or json")
	proposalCreateCmd.Flags().String("content-file", "", "path to the proposal content (\"-\" for stdin)")
	proposalCreateCmd.Flags().String("content-json", "", "literal proposal content")
	proposalCreateCmd.Flags().String("schema-version", "", "content schema version")
	proposalCreateCmd.Flags().StringSlice("tags-add", nil, "tags to add on accept")
	proposalCreateCmd.Flags().StringSlice("tags-remove", nil, "tags to remove on accept")
	proposalCreateCmd.Flags().String("set-title", "", "title to set on accept")
	proposalCreateCmd.Flags().String("rationale", "", "why this proposal was made")
	proposalCreateCmd.Flags().String("confidence", "", "proposer's confidence, 0-1")
	proposalCreateCmd.Flags().String("source", "", "identifier of whoever/whatever generated this proposal")
	proposalCreateCmd.MarkFlagRequired("note-id")
	addActorFlag(proposalCreateCmd)

	proposalListCmd.Flags().String("note-id", "", "filter by note id")
	proposalListCmd.Flags().String("status", "", "filter by status: open, accepted, rejected, superseded")
	proposalListCmd.Flags().Int("limit", 0, "maximum results (0 for the index default)")
}
