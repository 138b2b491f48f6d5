package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"alfred/internal/daemonctl"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the alferd inference daemon",
	}

	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonInstallCommand(ctx))
	daemonCmd.AddCommand(newDaemonUninstallCommand())

	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon and wait until it answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()

			launched, err := daemonctl.EnsureStarted(cfg, ctx.configPath(), 10*time.Second)
			if err != nil {
				return err
			}
			if launched {
				fmt.Fprintln(stdout, "Daemon started")
			} else {
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon and unload the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := daemonctl.StopAndWait(ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			info := daemonctl.Status(cfg)

			rows := [][]string{
				{"Running", yesNo(info.Running)},
				{"Port", fmt.Sprintf("%d", info.Port)},
			}
			if info.Running {
				rows = append(rows,
					[]string{"PID", fmt.Sprintf("%d", info.PID)},
					[]string{"Started", info.StartedAt.Local().Format(time.RFC3339)},
					[]string{"Uptime", time.Since(info.StartedAt).Round(time.Second).String()},
				)
			}
			idle := "disabled"
			if info.IdleTimeoutMinutes > 0 {
				idle = fmt.Sprintf("%d min", info.IdleTimeoutMinutes)
			}
			rows = append(rows,
				[]string{"Idle timeout", idle},
				[]string{"Service", installedLabel(info.ServiceInstalled)},
				[]string{"Model", cfg.ModelPath},
			)

			table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}
}

func installedLabel(installed bool) string {
	if installed {
		return "installed"
	}
	return "not installed"
}

func newDaemonInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install a user service so the daemon starts at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			executable, err := daemonctl.FindDaemonBinary()
			if err != nil {
				return err
			}
			if err := daemonctl.Install(executable, cfg.LogDir()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed service at %s\n", daemonctl.ServicePath())
			return nil
		},
	}
}

func newDaemonUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "uninstall",
		Short:       "Remove the user service",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := daemonctl.Uninstall()
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No service installed")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Service removed")
			return nil
		},
	}
}
