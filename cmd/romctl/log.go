package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/project"
)

func init() {
	rootCmd.AddCommand(newLogCmd())
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <project>",
		Short: "List the commits of a project",
		Long: `The log command replays a project and lists its commits in order,
with the payload kind, author and the number of bytes each commit changed.

Example:
  romctl log game.json
  romctl log game.json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd.Context(), args)
		},
	}
	return cmd
}

type logEntry struct {
	Index   int       `json:"index"`
	Kind    string    `json:"kind"`
	Label   string    `json:"label"`
	User    string    `json:"user"`
	Time    time.Time `json:"time"`
	Comment string    `json:"comment,omitempty"`
	Config  string    `json:"config"`
	Changed int       `json:"changed"`
}

func logEntries(p *project.Project) []logEntry {
	var entries []logEntry
	for i, e := range p.Edits() {
		meta := e.Meta()
		changed := 0
		for _, r := range e.Changes() {
			changed += r.Len
		}
		entries = append(entries, logEntry{
			Index:   i,
			Kind:    e.Payload().Kind(),
			Label:   meta.Label,
			User:    meta.User,
			Time:    meta.Time().UTC(),
			Comment: meta.Comment,
			Config:  meta.Config,
			Changed: changed,
		})
	}
	return entries
}

func runLog(ctx context.Context, args []string) error {
	p, err := loadProject(ctx, args[0])
	if err != nil {
		return err
	}

	entries := logEntries(p)
	if jsonOut {
		return printJSON(entries)
	}
	for _, e := range entries {
		printInfo("%3d  %-10s %s\n", e.Index, e.Kind, e.Label)
		printInfo("     %s by %s, %d bytes changed\n", e.Time.Format(time.RFC3339), e.User, e.Changed)
		if e.Comment != "" {
			printInfo("     %s\n", e.Comment)
		}
	}
	return nil
}
