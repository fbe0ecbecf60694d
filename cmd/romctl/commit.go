package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/payload"
	"github.com/joshuapare/romkit/project"
)

var (
	commitAt      int
	commitLabel   string
	commitComment string
)

func init() {
	cmd := newCommitCmd()
	cmd.Flags().IntVar(&commitAt, "at", project.Append, "Replace the payload of this commit instead of appending")
	cmd.Flags().StringVar(&commitLabel, "label", "", "Commit label (default: payload name)")
	cmd.Flags().StringVar(&commitComment, "comment", "", "Commit comment")
	rootCmd.AddCommand(cmd)
}

func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <project> <payload>",
		Short: "Append or replace a commit",
		Long: `The commit command packs a payload on top of the project and saves it.
The payload is either an IPS patch (.ips) or a JSON payload document:

  {"type": "patch", "data": {"writes": [{"address": "prg:0:0x8000", "data": "a9 00"}]}}

With --at the payload of an existing commit is replaced and every later
commit is replayed against the new result.

Example:
  romctl commit game.json title.json
  romctl commit game.json fix.ips --label "Bug fix"
  romctl commit game.json title.json --at 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd.Context(), args)
		},
	}
	return cmd
}

// readPayload decodes a payload file, treating .ips files as raw patches.
func readPayload(path string) (project.Payload, error) {
	if strings.EqualFold(filepath.Ext(path), ".ips") {
		return payload.NewIPS(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	payloads, err := payload.NewRegistry()
	if err != nil {
		return nil, err
	}
	return payloads.Unmarshal(data)
}

func runCommit(ctx context.Context, args []string) error {
	projectPath, payloadPath := args[0], args[1]

	p, err := loadProject(ctx, projectPath)
	if err != nil {
		return err
	}
	pl, err := readPayload(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	printVerbose("Packing %s (%s)\n", pl.Name(), pl.Kind())
	i, err := p.Commit(ctx, commitAt, pl)
	if err != nil {
		if stale, ok := p.Stale(); ok {
			return fmt.Errorf("commit failed, commits from %d are stale and were not saved: %w", stale, err)
		}
		return fmt.Errorf("commit failed: %w", err)
	}
	e, err := p.Get(i)
	if err != nil {
		return err
	}
	if commitLabel != "" {
		e.SetLabel(commitLabel)
	}
	if commitComment != "" {
		e.SetComment(commitComment)
	}
	if err := p.SaveFile(projectPath); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	if jsonOut {
		return printJSON(logEntries(p)[i])
	}
	printInfo("Committed %d: %s\n", i, e.Meta().Label)
	return nil
}
