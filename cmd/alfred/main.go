package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"alfred/internal/gitcmd"
)

func main() {
	// Anything that is not an alfred command is handed to git verbatim, so
	// `alfred push` behaves exactly like `git push`.
	if args := os.Args[1:]; len(args) > 0 && isGitPassthrough(args[0]) {
		code, err := gitcmd.Passthrough(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func isGitPassthrough(first string) bool {
	if strings.HasPrefix(first, "-") {
		return false
	}
	switch first {
	case "setup", "commit", "branch", "resolve", "rebase", "config", "daemon", "help", "completion":
		return false
	}
	return true
}
