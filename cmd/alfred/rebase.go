package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"alfred/internal/gitcmd"
)

func newRebaseCommand(ctx *commandContext) *cobra.Command {
	var useAI bool
	var interactive bool

	cmd := &cobra.Command{
		Use:   "rebase [onto]",
		Short: "Rebase the current branch, optionally with a model-suggested plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			stdout := cmd.OutOrStdout()

			if !gitcmd.IsRepo(runCtx) {
				return errors.New("not inside a git repository")
			}
			status, err := gitcmd.CurrentStatus(runCtx)
			if err != nil {
				return err
			}
			if len(status.Conflicts) > 0 {
				return errors.New("resolve existing conflicts before rebasing")
			}
			if len(status.Staged)+len(status.Unstaged) > 0 {
				return errors.New("working tree has uncommitted changes; commit or stash them first")
			}

			onto := ""
			if len(args) == 1 {
				onto = args[0]
			} else {
				onto, err = mainlineBranch(runCtx)
				if err != nil {
					return err
				}
			}
			if onto == status.Branch {
				return fmt.Errorf("already on %s", onto)
			}

			commits, err := gitcmd.RebaseCommits(runCtx, onto)
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Fprintf(stdout, "No commits to rebase onto %s\n", onto)
				return nil
			}

			fmt.Fprintf(stdout, "Rebasing %d commit(s) onto %s:\n", len(commits), onto)
			for _, line := range commits {
				fmt.Fprintf(stdout, "  %s\n", line)
			}

			if useAI {
				service, err := ctx.assistService()
				if err != nil {
					return err
				}
				defer ctx.closeService()

				fmt.Fprintln(stdout, "\nGenerating rebase plan...")
				plan, err := service.RebaseStrategy(runCtx, commits, onto)
				if err != nil {
					return fmt.Errorf("suggest rebase strategy: %w", err)
				}
				fmt.Fprintln(stdout, indentBlock(plan))
				fmt.Fprintln(stdout)
			}

			proceed, err := confirm(cmd, fmt.Sprintf("Rebase onto %s now?", onto), true)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(stdout, "Rebase aborted")
				return nil
			}

			if err := gitcmd.Rebase(runCtx, onto, interactive); err != nil {
				fmt.Fprintln(stdout, "Rebase stopped; run `alfred resolve` to handle conflicts")
				return err
			}
			fmt.Fprintf(stdout, "Rebased onto %s\n", onto)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useAI, "ai", false, "Ask the model for a rebase plan before starting")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run an interactive rebase")
	return cmd
}
