package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"alfred/internal/assist"
	"alfred/internal/gitcmd"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [file]",
		Short: "Walk merge conflicts with model-suggested resolutions",
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
			conflicts := status.Conflicts
			if len(args) == 1 {
				target := args[0]
				found := false
				for _, file := range conflicts {
					if file == target {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("%s has no conflict markers in the index", target)
				}
				conflicts = []string{target}
			}
			if len(conflicts) == 0 {
				fmt.Fprintln(stdout, "No conflicted files")
				return nil
			}

			service, err := ctx.assistService()
			if err != nil {
				return err
			}
			defer ctx.closeService()

			resolved := 0
			for i, file := range conflicts {
				fmt.Fprintf(stdout, "\n[%d/%d] %s\n", i+1, len(conflicts), file)
				done, err := resolveOne(cmd, service, file)
				if err != nil {
					return err
				}
				if done {
					resolved++
				}
			}

			fmt.Fprintf(stdout, "\nResolved %d of %d conflicted file(s)\n", resolved, len(conflicts))
			if resolved == len(conflicts) {
				cont, err := confirm(cmd, "Continue the rebase (git rebase --continue)?", false)
				if err != nil {
					return err
				}
				if cont {
					if err := gitcmd.ContinueRebase(runCtx); err != nil {
						return err
					}
					fmt.Fprintln(stdout, "Rebase continued")
				}
			}
			return nil
		},
	}
}

// resolveOne handles a single conflicted file and reports whether it was
// resolved and staged.
func resolveOne(cmd *cobra.Command, service *assist.Service, file string) (bool, error) {
	runCtx := cmd.Context()
	stdout := cmd.OutOrStdout()

	info := gitcmd.Conflict(runCtx, file)

	fmt.Fprintln(stdout, "Generating resolution...")
	suggestion, err := service.ConflictResolution(runCtx, file, info.Ours, info.Theirs, info.Base)
	if err != nil {
		fmt.Fprintf(stdout, "No suggestion available: %v\n", err)
		suggestion = ""
	}
	if suggestion != "" {
		fmt.Fprintln(stdout, "\nSuggested resolution:")
		fmt.Fprintln(stdout, indentBlock(suggestion))
	}

	for {
		answer, err := promptLine(cmd, "[a]pply suggestion, keep [o]urs, keep [t]heirs, [s]kip: ")
		if err != nil {
			return false, err
		}
		var content string
		switch strings.ToLower(answer) {
		case "a", "apply":
			if suggestion == "" {
				fmt.Fprintln(stdout, "No suggestion to apply")
				continue
			}
			content = suggestion
		case "o", "ours":
			content = info.Ours
		case "t", "theirs":
			content = info.Theirs
		case "s", "skip", "":
			fmt.Fprintf(stdout, "Skipped %s\n", file)
			return false, nil
		default:
			continue
		}

		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			return false, fmt.Errorf("write %s: %w", file, err)
		}
		if err := gitcmd.Add(runCtx, file); err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "Resolved and staged %s\n", file)
		return true, nil
	}
}

func indentBlock(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
