package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var verifySHA256 string

func init() {
	cmd := newVerifyCmd()
	cmd.Flags().StringVar(&verifySHA256, "sha256", "", "Expected digest of the last image")
	rootCmd.AddCommand(cmd)
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <project>",
		Short: "Replay a project and report image digests",
		Long: `The verify command replays every commit of a project from the root import
and prints the SHA-256 digest of each resulting image. Replay is deterministic,
so the digest of the last image can be pinned with --sha256.

Example:
  romctl verify game.json
  romctl verify game.json --sha256 3f2a...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), args)
		},
	}
	return cmd
}

type verifyEntry struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

func runVerify(ctx context.Context, args []string) error {
	p, err := loadProject(ctx, args[0])
	if err != nil {
		return err
	}

	var entries []verifyEntry
	for i, e := range p.Edits() {
		entries = append(entries, verifyEntry{
			Index:  i,
			Label:  e.Meta().Label,
			Size:   e.ROM().Len(),
			SHA256: e.ROM().SHA256(),
		})
	}

	if jsonOut {
		if err := printJSON(entries); err != nil {
			return err
		}
	} else {
		for _, e := range entries {
			printInfo("%3d  %s  %s\n", e.Index, e.SHA256, e.Label)
		}
	}

	last := entries[len(entries)-1]
	if verifySHA256 != "" && last.SHA256 != verifySHA256 {
		return fmt.Errorf("digest mismatch: got %s, want %s", last.SHA256, verifySHA256)
	}
	if !jsonOut {
		printInfo("\nReplayed %d commit(s) OK\n", len(entries))
	}
	return nil
}
