package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/internal/durable"
	"github.com/joshuapare/romkit/rom/ips"
)

var (
	ipsIndex int
	ipsFrom  int
	ipsDirty bool
)

func init() {
	cmd := newIPSCmd()
	cmd.Flags().IntVarP(&ipsIndex, "index", "i", -1, "Commit whose image the patch produces")
	cmd.Flags().IntVar(&ipsFrom, "from", 0, "Commit whose image the patch applies to")
	cmd.Flags().BoolVar(&ipsDirty, "dirty", false, "Patch only the bytes written by --index itself")
	rootCmd.AddCommand(cmd)
}

func newIPSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ips <project> <output.ips>",
		Short: "Create an IPS patch between two commits",
		Long: `The ips command diffs the image of one commit against another and writes
the difference as an IPS patch. By default the patch turns the root image
into the last image.

With --dirty the patch carries every byte the commit wrote, including bytes
rewritten with their previous value.

Example:
  romctl ips game.json game.ips
  romctl ips game.json step.ips --from 2 --index 3
  romctl ips game.json title.ips --index 4 --dirty`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIPS(cmd.Context(), args)
		},
	}
	return cmd
}

func runIPS(ctx context.Context, args []string) error {
	outputPath := args[1]

	p, err := loadProject(ctx, args[0])
	if err != nil {
		return err
	}
	to, err := p.Get(ipsIndex)
	if err != nil {
		return err
	}

	var patch *ips.Patch
	if ipsDirty {
		patch, err = ips.FromRanges(to.ROM().Bytes(), to.Changes())
	} else {
		from, ferr := p.Get(ipsFrom)
		if ferr != nil {
			return ferr
		}
		patch, err = ips.Create(from.ROM().Bytes(), to.ROM().Bytes())
	}
	if err != nil {
		return fmt.Errorf("failed to create patch: %w", err)
	}

	err = durable.Write(outputPath, 0o644, func(w io.Writer) error {
		_, err := patch.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write patch: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"output":  outputPath,
			"records": len(patch.Records),
			"size":    patch.Size(),
		})
	}
	printInfo("Wrote %s: %d record(s)\n", outputPath, len(patch.Records))
	return nil
}
