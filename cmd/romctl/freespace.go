package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/rom"
	"github.com/joshuapare/romkit/rom/freespace"
)

var (
	freespaceIndex int
	freespaceBank  int
)

func init() {
	cmd := newFreespaceCmd()
	cmd.Flags().IntVarP(&freespaceIndex, "index", "i", -1, "Commit to report on")
	cmd.Flags().IntVarP(&freespaceBank, "bank", "b", -1, "Report a single bank (negative: all banks)")
	rootCmd.AddCommand(cmd)
}

func newFreespaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freespace <project>",
		Short: "Report the free space left after a commit",
		Long: `The freespace command lists the free ranges of the allocator state a
commit left behind.

Example:
  romctl freespace game.json
  romctl freespace game.json --index 3 --bank 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFreespace(cmd.Context(), args)
		},
	}
	return cmd
}

type freespaceResult struct {
	Segment string            `json:"segment"`
	Banks   int               `json:"banks"`
	Total   int               `json:"total"`
	Chunks  int               `json:"chunks"`
	Ranges  []freespace.Range `json:"ranges"`
}

func runFreespace(ctx context.Context, args []string) error {
	p, err := loadProject(ctx, args[0])
	if err != nil {
		return err
	}
	e, err := p.Get(freespaceIndex)
	if err != nil {
		return err
	}
	fs := e.Memory()

	res := freespaceResult{Segment: fs.Segment(), Banks: fs.Banks(), Total: fs.Total()}
	for _, r := range fs.Ranges() {
		if freespaceBank < 0 || r.Bank == freespaceBank {
			res.Ranges = append(res.Ranges, r)
		}
	}
	res.Chunks = len(res.Ranges)
	if freespaceBank >= 0 {
		chunks, total, err := fs.Report(rom.Bank(fs.Segment(), freespaceBank, 0))
		if err != nil {
			return fmt.Errorf("bank %d: %w", freespaceBank, err)
		}
		res.Chunks, res.Total = chunks, total
	}

	if jsonOut {
		return printJSON(res)
	}
	printInfo("Free space in %s (%d banks): %d bytes in %d range(s)\n",
		res.Segment, res.Banks, res.Total, res.Chunks)
	for _, r := range res.Ranges {
		printInfo("  bank %3d  0x%04x-0x%04x  %d bytes\n", r.Bank, r.Start, r.End(), r.Length)
	}
	return nil
}
