package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// promptLine asks a question and returns the trimmed answer. EOF on stdin
// comes back as an empty answer so piped input degrades to defaults.
func promptLine(cmd *cobra.Command, question string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func confirm(cmd *cobra.Command, question string, defaultYes bool) (bool, error) {
	suffix := " [y/N] "
	if defaultYes {
		suffix = " [Y/n] "
	}
	answer, err := promptLine(cmd, question+suffix)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
