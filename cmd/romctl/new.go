package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/payload"
	"github.com/joshuapare/romkit/project"
)

var (
	newForce   bool
	newComment string
)

func init() {
	cmd := newNewCmd()
	cmd.Flags().BoolVarP(&newForce, "force", "f", false, "Overwrite an existing project file")
	cmd.Flags().StringVar(&newComment, "comment", "", "Comment for the root commit")
	rootCmd.AddCommand(cmd)
}

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <project> [rom]",
		Short: "Create a project from a ROM image or a blank layout",
		Long: `The new command creates a project file whose root commit imports a ROM
image. The import is pinned to the image's SHA-256 digest. Without an image
the root commit is a blank image built from the --config layout.

Example:
  romctl new game.json game.nes
  romctl new game.json game.nes --config mygame.yaml
  romctl new blank.json --config blank.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd.Context(), args)
		},
	}
	return cmd
}

func runNew(ctx context.Context, args []string) error {
	projectPath := args[0]
	if _, err := os.Stat(projectPath); err == nil && !newForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", projectPath)
	}

	opts, configName, err := projectOptions()
	if err != nil {
		return err
	}

	var root project.Payload = &payload.Blank{}
	if len(args) > 1 {
		printVerbose("Importing ROM: %s\n", args[1])
		imp, err := payload.NewImportRom(args[1])
		if err != nil {
			return fmt.Errorf("failed to read ROM: %w", err)
		}
		root = imp
	}

	p, err := project.New(ctx, root, configName, opts)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if newComment != "" {
		p.Last().SetComment(newComment)
	}
	if err := p.SaveFile(projectPath); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	last := p.Last()
	if jsonOut {
		return printJSON(map[string]interface{}{
			"project": projectPath,
			"config":  configName,
			"size":    last.ROM().Len(),
			"sha256":  last.ROM().SHA256(),
		})
	}
	printInfo("Created %s (config %s)\n", projectPath, configName)
	printInfo("  Size: %s\n", formatSize(last.ROM().Len()))
	printInfo("  SHA256: %s\n", last.ROM().SHA256())
	return nil
}
