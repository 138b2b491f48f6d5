// Package gitcmd wraps the git binary: verbatim passthrough with inherited
// stdio, porcelain status parsing, diffs, conflict stages, and the branch and
// rebase plumbing the CLI commands build on.
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Status is the parsed working-tree state.
type Status struct {
	Branch    string
	Ahead     int
	Behind    int
	Staged    []string
	Unstaged  []string
	Untracked []string
	Conflicts []string
}

// ConflictInfo holds the three index stages of one conflicted file.
type ConflictInfo struct {
	File   string
	Base   string
	Ours   string
	Theirs string
}

// run executes git with captured output and returns trimmed stdout.
func run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" && !strings.Contains(detail, "warning") {
			return "", fmt.Errorf("git %s: %s", args[0], detail)
		}
		if detail == "" {
			return "", fmt.Errorf("git %s: %w", args[0], err)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Passthrough executes git with inherited stdio and returns the exit code.
func Passthrough(args []string) (int, error) {
	cmd := exec.Command("git", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("execute git: %w", err)
}

// IsRepo reports whether the working directory is inside a git repository.
func IsRepo(ctx context.Context) bool {
	_, err := run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// CurrentStatus parses branch, ahead/behind, and porcelain v1 file states.
func CurrentStatus(ctx context.Context) (Status, error) {
	var status Status
	branch, err := run(ctx, "branch", "--show-current")
	if err != nil {
		return status, err
	}
	status.Branch = branch

	// No upstream is fine; ahead/behind stay zero.
	if counts, err := run(ctx, "rev-list", "--left-right", "--count", "@{u}...HEAD"); err == nil {
		parts := strings.Split(counts, "\t")
		if len(parts) == 2 {
			status.Behind, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
			status.Ahead, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	}

	porcelain, err := run(ctx, "status", "--porcelain=v1")
	if err != nil {
		return status, err
	}
	parsePorcelain(porcelain, &status)
	return status, nil
}

// parsePorcelain fills the file lists of status from porcelain v1 output.
func parsePorcelain(porcelain string, status *Status) {
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 3 {
			continue
		}
		index := line[0]
		worktree := line[1]
		file := line[3:]

		switch {
		case index == 'U' || worktree == 'U' ||
			(index == 'A' && worktree == 'A') ||
			(index == 'D' && worktree == 'D'):
			status.Conflicts = append(status.Conflicts, file)
		case index == '?':
			status.Untracked = append(status.Untracked, file)
		default:
			if index != ' ' && index != '?' {
				status.Staged = append(status.Staged, file)
			}
			if worktree != ' ' && worktree != '?' {
				status.Unstaged = append(status.Unstaged, file)
			}
		}
	}
}

// Diff returns the working-tree diff, or the staged diff when staged is true.
func Diff(ctx context.Context, staged bool) (string, error) {
	if staged {
		return run(ctx, "diff", "--cached")
	}
	return run(ctx, "diff")
}

// Log returns the last count commits, one line each.
func Log(ctx context.Context, count int) (string, error) {
	return run(ctx, "log", "--oneline", fmt.Sprintf("-%d", count))
}

// Branches lists local branch names.
func Branches(ctx context.Context) ([]string, error) {
	output, err := run(ctx, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// RemoteBranches lists remote branch names.
func RemoteBranches(ctx context.Context) ([]string, error) {
	output, err := run(ctx, "branch", "-r", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// MergedBranches lists branches merged into the given branch, excluding the
// branch itself and the mainline names.
func MergedBranches(ctx context.Context, into string) ([]string, error) {
	output, err := run(ctx, "branch", "--merged", into, "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, name := range splitLines(output) {
		if name == into || name == "main" || name == "master" {
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// Conflict extracts the index stages of a conflicted file. Missing stages
// (e.g. add/add conflicts have no base) come back empty.
func Conflict(ctx context.Context, file string) ConflictInfo {
	info := ConflictInfo{File: file}
	info.Base, _ = run(ctx, "show", ":1:"+file)
	info.Ours, _ = run(ctx, "show", ":2:"+file)
	info.Theirs, _ = run(ctx, "show", ":3:"+file)
	return info
}

// RebaseCommits lists the commits that would be replayed onto the target.
func RebaseCommits(ctx context.Context, onto string) ([]string, error) {
	output, err := run(ctx, "log", "--oneline", onto+"..HEAD")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// Commit records the staged changes with message.
func Commit(ctx context.Context, message string) error {
	_, err := run(ctx, "commit", "-m", message)
	return err
}

// Add stages the given paths.
func Add(ctx context.Context, paths ...string) error {
	_, err := run(ctx, append([]string{"add"}, paths...)...)
	return err
}

// CreateBranch creates and checks out a new branch.
func CreateBranch(ctx context.Context, name string) error {
	_, err := run(ctx, "checkout", "-b", name)
	return err
}

// DeleteBranch removes a local branch, forcing when asked.
func DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := run(ctx, "branch", flag, name)
	return err
}

// Rebase replays the current branch onto the target. Interactive rebase
// needs the user's editor, so stdio is inherited.
func Rebase(ctx context.Context, onto string, interactive bool) error {
	if !interactive {
		_, err := run(ctx, "rebase", onto)
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "rebase", "-i", onto)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rebase failed or has conflicts: %w", err)
	}
	return nil
}

// ContinueRebase resumes a rebase after conflicts were resolved.
func ContinueRebase(ctx context.Context) error {
	_, err := run(ctx, "rebase", "--continue")
	return err
}

// AbortRebase abandons an in-progress rebase.
func AbortRebase(ctx context.Context) error {
	_, err := run(ctx, "rebase", "--abort")
	return err
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
