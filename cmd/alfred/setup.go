package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"alfred/internal/config"
)

type modelOption struct {
	name     string
	size     string
	url      string
	filename string
}

var modelCatalog = []modelOption{
	{
		name:     "Phi-3 Mini 4K (Q4) - Recommended",
		size:     "2.4 GB",
		url:      "https://huggingface.co/microsoft/Phi-3-mini-4k-instruct-gguf/resolve/main/Phi-3-mini-4k-instruct-q4.gguf",
		filename: "phi-3-mini-q4.gguf",
	},
	{
		name:     "Phi-3 Mini 4K (Q8)",
		size:     "4.1 GB",
		url:      "https://huggingface.co/microsoft/Phi-3-mini-4k-instruct-gguf/resolve/main/Phi-3-mini-4k-instruct-q8.gguf",
		filename: "phi-3-mini-q8.gguf",
	},
	{
		name:     "Qwen2.5-Coder 1.5B (Q4)",
		size:     "1.0 GB",
		url:      "https://huggingface.co/Qwen/Qwen2.5-Coder-1.5B-Instruct-GGUF/resolve/main/qwen2.5-coder-1.5b-instruct-q4_k_m.gguf",
		filename: "qwen2.5-coder-1.5b-q4.gguf",
	},
}

func newSetupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download a model and point the configuration at it",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			cfg, path, _, err := config.Load(ctx.configPath())
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			for _, line := range renderSectionHeader("Alfred Setup", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, "\nAlfred uses a local AI model for git assistance - no API keys or subscriptions needed.")

			if existing := existingModels(cfg.ModelsDir()); len(existing) > 0 {
				fmt.Fprintln(stdout, "\nFound existing models:")
				for _, name := range existing {
					fmt.Fprintf(stdout, "  - %s\n", name)
				}
			}

			fmt.Fprintln(stdout, "\nAvailable models:")
			for i, model := range modelCatalog {
				fmt.Fprintf(stdout, "  %d. %s (%s)\n", i+1, model.name, model.size)
			}

			answer, err := promptLine(cmd, fmt.Sprintf("\nSelect a model to download [1-%d]: ", len(modelCatalog)))
			if err != nil {
				return err
			}
			model, err := pickModel(answer)
			if err != nil {
				return err
			}

			dest := filepath.Join(cfg.ModelsDir(), model.filename)
			if _, err := os.Stat(dest); err == nil {
				fmt.Fprintf(stdout, "Model already downloaded: %s\n", model.filename)
			} else {
				fmt.Fprintf(stdout, "Downloading %s...\n", model.name)
				if err := downloadModel(cmd.Context(), stdout, model.url, dest); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "Model downloaded!")
			}

			cfg.ModelPath = dest
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Setup Complete!", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintf(stdout, `
  Model: %s

  You're ready to use alfred! Try:
    alfred commit       - Generate AI commit messages
    alfred rebase       - Smart rebasing with AI suggestions
    alfred resolve      - AI-assisted conflict resolution
    alfred branch new   - Create branches with AI naming

  All commands also pass through to git:
    alfred status       - Same as git status
    alfred push         - Same as git push
`, dest)
			return nil
		},
	}
}

// pickModel resolves a 1-based catalog selection.
func pickModel(answer string) (modelOption, error) {
	if answer == "" {
		return modelOption{}, errors.New("no model selected")
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(modelCatalog) {
		return modelOption{}, fmt.Errorf("invalid selection %q: pick a number between 1 and %d", answer, len(modelCatalog))
	}
	return modelCatalog[n-1], nil
}

func existingModels(modelsDir string) []string {
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".gguf" {
			names = append(names, entry.Name())
		}
	}
	return names
}

// downloadModel streams url into dest with a progress bar, writing through a
// temp file so an interrupted download never leaves a truncated model behind.
func downloadModel(ctx context.Context, out io.Writer, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(40)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	tracker := &progress.Tracker{
		Message: filepath.Base(dest),
		Total:   total,
		Units:   progress.UnitsBytes,
	}
	pw.AppendTracker(tracker)
	go pw.Render()

	part := dest + ".part"
	file, err := os.Create(part)
	if err != nil {
		tracker.MarkAsErrored()
		return fmt.Errorf("create %s: %w", part, err)
	}

	fail := func(err error) error {
		tracker.MarkAsErrored()
		file.Close()
		os.Remove(part)
		return err
	}

	buf := make([]byte, 1<<20)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fail(fmt.Errorf("write %s: %w", part, writeErr))
			}
			tracker.Increment(int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(fmt.Errorf("read download stream: %w", readErr))
		}
	}
	tracker.MarkAsDone()
	for pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}

	if err := file.Close(); err != nil {
		os.Remove(part)
		return fmt.Errorf("close %s: %w", part, err)
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("move model into place: %w", err)
	}
	return nil
}
