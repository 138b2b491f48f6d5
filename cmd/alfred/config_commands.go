package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"alfred/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigSetModelCommand(ctx))
	configCmd.AddCommand(newConfigResetCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(stdout, line)
			}
			pathKind := statusOK
			pathDetail := path
			if !exists {
				pathKind = statusWarn
				pathDetail = fmt.Sprintf("%s (not found, defaults in use)", path)
			}
			fmt.Fprintln(stdout, renderStatusLine("Config file", pathKind, pathDetail, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Data dir", statusInfo, cfg.DataDir, colorize))
			fmt.Fprintln(stdout, modelStatusLine(cfg.ModelPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Listen", statusInfo, cfg.ListenAddr(), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Idle timeout", statusInfo, fmt.Sprintf("%d min", cfg.Daemon.IdleTimeoutMinutes), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Auto start", statusInfo, yesNo(cfg.Daemon.AutoStart), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Max tokens", statusInfo, fmt.Sprintf("%d", cfg.Generation.MaxTokens), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Context size", statusInfo, fmt.Sprintf("%d", cfg.Generation.ContextSize), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Temperature", statusInfo, fmt.Sprintf("%.2f", cfg.Generation.Temperature), colorize))
			return nil
		},
	}
}

// modelStatusLine reports model file presence and size for config show.
func modelStatusLine(modelPath string, colorize bool) string {
	info, err := os.Stat(modelPath)
	if err != nil {
		return renderStatusLine("Model", statusWarn, fmt.Sprintf("%s (missing)", modelPath), colorize)
	}
	size := float64(info.Size()) / (1 << 30)
	return renderStatusLine("Model", statusOK, fmt.Sprintf("%s (%.1f GiB)", modelPath, size), colorize)
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set model_path (or export ALFRED_MODEL_PATH) before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigSetModelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <path>",
		Short: "Point the configuration at a different model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve model path: %w", err)
			}

			cfg, path, _, err := config.Load(ctx.configPath())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if info, statErr := os.Stat(modelPath); statErr != nil {
				fmt.Fprintf(out, "Warning: %s does not exist yet\n", modelPath)
			} else if info.IsDir() {
				return fmt.Errorf("%s is a directory, not a model file", modelPath)
			}

			cfg.ModelPath = modelPath
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Model path set to %s\n", modelPath)
			fmt.Fprintln(out, "Restart the daemon (`alfred daemon stop`) for the change to take effect.")
			return nil
		},
	}
}

func newConfigResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "reset",
		Short:       "Replace the configuration file with the defaults",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ctx.configPath()
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			proceed, err := confirm(cmd, fmt.Sprintf("Overwrite %s with default settings?", target), false)
			if err != nil {
				return err
			}
			if !proceed {
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration unchanged")
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset configuration at %s\n", target)
			return nil
		},
	}
}
