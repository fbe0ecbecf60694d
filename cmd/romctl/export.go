package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportIndex  int
	exportStdout bool
)

func init() {
	cmd := newExportCmd()
	cmd.Flags().IntVarP(&exportIndex, "index", "i", -1, "Commit to export (negative counts from the end)")
	cmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write to stdout instead of file")
	rootCmd.AddCommand(cmd)
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project> [output]",
		Short: "Write the image of a commit",
		Long: `The export command replays a project and writes the image produced by a
commit, the last one by default.

Example:
  romctl export game.json patched.nes
  romctl export game.json before.nes --index 2
  romctl export game.json --stdout > patched.nes`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args)
		},
	}
	return cmd
}

func runExport(ctx context.Context, args []string) error {
	var outputPath string
	if len(args) > 1 {
		outputPath = args[1]
	}

	// Can't specify both output file and stdout
	if outputPath != "" && exportStdout {
		return fmt.Errorf("cannot specify both output file and --stdout")
	}

	// Need either output file or stdout
	if outputPath == "" && !exportStdout {
		return fmt.Errorf("must specify output file or use --stdout")
	}

	p, err := loadProject(ctx, args[0])
	if err != nil {
		return err
	}
	e, err := p.Get(exportIndex)
	if err != nil {
		return err
	}

	if exportStdout {
		_, err := e.ROM().WriteTo(os.Stdout)
		return err
	}
	if err := e.Export(outputPath); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	printInfo("Exported %s (%s) to %s\n", e.Meta().Label, formatSize(e.ROM().Len()), outputPath)
	return nil
}
