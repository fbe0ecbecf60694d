package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/project"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newMoveCmd())
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <project> <index>...",
		Short: "Delete commits and replay the rest",
		Long: `The delete command removes one or more commits in a single batch and
replays the remaining log once from the earliest deleted commit. The root
commit cannot be deleted. Negative indices count from the end.

Example:
  romctl delete game.json 3
  romctl delete game.json 2 5 -1`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), args)
		},
	}
	return cmd
}

func newMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <project> <from> <to>",
		Short: "Move a commit to another position",
		Long: `The move command reorders the log and replays it from the earliest
position affected. The root commit cannot be moved.

Example:
  romctl move game.json 4 1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd.Context(), args)
		},
	}
	return cmd
}

// queue marks the commit named by arg with action.
func queue(p *project.Project, arg string, action project.Action) error {
	i, err := parseIndex(arg)
	if err != nil {
		return err
	}
	e, err := p.Get(i)
	if err != nil {
		return err
	}
	e.SetAction(action)
	return nil
}

func applyAndSave(ctx context.Context, p *project.Project, projectPath string) error {
	if err := p.ApplyActions(ctx); err != nil {
		return fmt.Errorf("failed to apply: %w", err)
	}
	if err := p.SaveFile(projectPath); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	projectPath := args[0]
	p, err := loadProject(ctx, projectPath)
	if err != nil {
		return err
	}
	for _, arg := range args[1:] {
		if err := queue(p, arg, project.DeleteAction); err != nil {
			return err
		}
	}
	before := p.Len()
	if err := applyAndSave(ctx, p, projectPath); err != nil {
		return err
	}
	printInfo("Deleted %d commit(s), %d remaining\n", before-p.Len(), p.Len())
	return nil
}

func runMove(ctx context.Context, args []string) error {
	projectPath := args[0]
	to, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	p, err := loadProject(ctx, projectPath)
	if err != nil {
		return err
	}
	if err := queue(p, args[1], project.MoveTo(to)); err != nil {
		return err
	}
	if err := applyAndSave(ctx, p, projectPath); err != nil {
		return err
	}
	printInfo("Moved commit %s to %d\n", args[1], to)
	return nil
}
