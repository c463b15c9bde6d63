package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"videofront/internal/daemonctl"
	"videofront/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Inspect or run the videofront daemon",
	}
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	return daemonCmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, snap)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			if snap.Running {
				message := "Running"
				if snap.PID > 0 {
					message = fmt.Sprintf("Running (pid %d)", snap.PID)
				}
				fmt.Fprintln(out, renderStatusLine("Videofront", statusOK, message, colorize))
				kind := statusOK
				if snap.Health != "ok" {
					kind = statusWarn
				}
				health := snap.Health
				if snap.HealthDetail != "" {
					health += ": " + snap.HealthDetail
				}
				fmt.Fprintln(out, renderStatusLine("HTTP API", kind, health, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Videofront", statusError, "Not running", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, snap.DatabasePath, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, snap.LockFilePath, colorize))
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, cfg.Backend.Kind, colorize))
			fmt.Fprintln(out, renderStatusLine("Task queue", statusInfo, cfg.Tasks.Queue, colorize))

			for _, line := range renderSectionHeader("Videos", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(snap.VideoCounts) == 0 {
				fmt.Fprintln(out, renderStatusLine("Catalog", statusInfo, "empty", colorize))
			} else {
				statuses := make([]string, 0, len(snap.VideoCounts))
				for status := range snap.VideoCounts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					rows = append(rows, []string{colorizeStatus(status, colorize), strconv.Itoa(snap.VideoCounts[status])})
				}
				fmt.Fprintln(out, renderTable(rightAligned(columns("Status", "Videos"), "Videos"), rows, colorize))
			}

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(snap.Dependencies, colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range checkLines(snap.Checks, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&opts.Development, "development", false, "Include source locations in log records")
	return cmd
}
