package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"alfred/internal/gitcmd"
)

func newCommitCommand(ctx *commandContext) *cobra.Command {
	var edit bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Generate a commit message for staged changes and commit",
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
				return fmt.Errorf("unresolved conflicts in %d file(s); run `alfred resolve` first", len(status.Conflicts))
			}

			if len(status.Staged) == 0 {
				pending := len(status.Unstaged) + len(status.Untracked)
				if pending == 0 {
					fmt.Fprintln(stdout, "Nothing to commit")
					return nil
				}
				stageAll, err := confirm(cmd, fmt.Sprintf("No staged changes. Stage all %d changed file(s)?", pending), true)
				if err != nil {
					return err
				}
				if !stageAll {
					fmt.Fprintln(stdout, "Stage your changes and retry")
					return nil
				}
				if err := gitcmd.Add(runCtx, "-A"); err != nil {
					return err
				}
			}

			diff, err := gitcmd.Diff(runCtx, true)
			if err != nil {
				return err
			}
			if strings.TrimSpace(diff) == "" {
				fmt.Fprintln(stdout, "Nothing to commit")
				return nil
			}

			service, err := ctx.assistService()
			if err != nil {
				return err
			}
			defer ctx.closeService()

			fmt.Fprintln(stdout, "Generating commit message...")
			message, err := service.CommitMessage(runCtx, diff)
			if err != nil {
				return fmt.Errorf("generate commit message: %w", err)
			}
			if strings.TrimSpace(message) == "" {
				return errors.New("model produced an empty commit message")
			}
			fmt.Fprintf(stdout, "\n  %s\n\n", message)

			if edit {
				custom, err := promptLine(cmd, "Edit message (empty keeps the suggestion): ")
				if err != nil {
					return err
				}
				if custom != "" {
					message = custom
				}
			}

			proceed, err := confirm(cmd, "Commit with this message?", true)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(stdout, "Commit aborted")
				return nil
			}
			if err := gitcmd.Commit(runCtx, message); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Committed: %s\n", message)
			return nil
		},
	}

	cmd.Flags().BoolVar(&edit, "edit", false, "Edit the suggested message before committing")
	return cmd
}
