package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videofront/internal/api"
	"videofront/internal/deps"
	"videofront/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries and the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			checks := preflight.RunAll(cmd.Context(), cfg)
			if ctx.jsonOutput {
				return writeJSON(cmd, map[string]any{
					"dependencies": toDependencyStatuses(statuses),
					"checks":       checks,
				})
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(statuses) == 0 {
				fmt.Fprintln(out, renderStatusLine("Binaries", statusInfo, "none required for backend "+cfg.Backend.Kind, colorize))
			}
			for _, line := range dependencyLines(toDependencyStatuses(statuses), colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range checkLines(checks, colorize) {
				fmt.Fprintln(out, line)
			}
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
}

func toDependencyStatuses(statuses []deps.Status) []api.DependencyStatus {
	out := make([]api.DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, api.DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}
