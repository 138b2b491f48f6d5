package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"alfred/internal/gitcmd"
)

func newBranchCommand(ctx *commandContext) *cobra.Command {
	branchCmd := &cobra.Command{
		Use:   "branch",
		Short: "Branch helpers: AI-named branches, cleanup, listing",
	}

	branchCmd.AddCommand(newBranchNewCommand(ctx))
	branchCmd.AddCommand(newBranchCleanCommand(ctx))
	branchCmd.AddCommand(newBranchListCommand(ctx))

	return branchCmd
}

func newBranchNewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "new [description...]",
		Short: "Create a branch named by the model from a description",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			stdout := cmd.OutOrStdout()

			if !gitcmd.IsRepo(runCtx) {
				return errors.New("not inside a git repository")
			}

			description := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				answer, err := promptLine(cmd, "Describe the work this branch is for: ")
				if err != nil {
					return err
				}
				description = answer
			}
			if description == "" {
				return errors.New("a branch description is required")
			}

			service, err := ctx.assistService()
			if err != nil {
				return err
			}
			defer ctx.closeService()

			fmt.Fprintln(stdout, "Suggesting branch name...")
			name, err := service.BranchName(runCtx, description)
			if err != nil {
				return fmt.Errorf("suggest branch name: %w", err)
			}
			if name == "" {
				return errors.New("model produced an empty branch name")
			}

			proceed, err := confirm(cmd, fmt.Sprintf("Create and switch to branch %q?", name), true)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(stdout, "Branch not created")
				return nil
			}
			if err := gitcmd.CreateBranch(runCtx, name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Switched to new branch %s\n", name)
			return nil
		},
	}
}

func newBranchCleanCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete local branches already merged into the mainline",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			stdout := cmd.OutOrStdout()

			if !gitcmd.IsRepo(runCtx) {
				return errors.New("not inside a git repository")
			}

			mainline, err := mainlineBranch(runCtx)
			if err != nil {
				return err
			}
			merged, err := gitcmd.MergedBranches(runCtx, mainline)
			if err != nil {
				return err
			}
			if len(merged) == 0 {
				fmt.Fprintf(stdout, "No branches merged into %s\n", mainline)
				return nil
			}

			fmt.Fprintf(stdout, "Branches merged into %s:\n", mainline)
			for _, name := range merged {
				fmt.Fprintf(stdout, "  %s\n", name)
			}
			proceed, err := confirm(cmd, fmt.Sprintf("Delete %d branch(es)?", len(merged)), false)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(stdout, "Nothing deleted")
				return nil
			}

			for _, name := range merged {
				if err := gitcmd.DeleteBranch(runCtx, name, force); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Deleted %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force-delete branches (git branch -D)")
	return cmd
}

func newBranchListCommand(ctx *commandContext) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List branches",
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
			local, err := gitcmd.Branches(runCtx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(local))
			for _, name := range local {
				current := ""
				if name == status.Branch {
					current = "*"
				}
				rows = append(rows, []string{current, name, "local"})
			}

			if remote {
				remotes, err := gitcmd.RemoteBranches(runCtx)
				if err != nil {
					return err
				}
				for _, name := range remotes {
					rows = append(rows, []string{"", name, "remote"})
				}
			}

			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No branches")
				return nil
			}
			table := renderTable([]string{"", "Branch", "Scope"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "Include remote branches")
	return cmd
}

// mainlineBranch picks main when it exists, otherwise master.
func mainlineBranch(runCtx context.Context) (string, error) {
	branches, err := gitcmd.Branches(runCtx)
	if err != nil {
		return "", err
	}
	hasMaster := false
	for _, name := range branches {
		if name == "main" {
			return "main", nil
		}
		if name == "master" {
			hasMaster = true
		}
	}
	if hasMaster {
		return "master", nil
	}
	return "", errors.New("neither main nor master exists in this repository")
}
