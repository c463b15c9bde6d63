package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"videofront/internal/app"
	"videofront/internal/tasks"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Run or enqueue orchestrator tasks",
	}
	taskCmd.AddCommand(newTaskListCommand())
	taskCmd.AddCommand(newTaskRunCommand(ctx))
	taskCmd.AddCommand(newTaskEnqueueCommand(ctx))
	return taskCmd
}

func newTaskListCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "List task names",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range tasks.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// buildTask turns "name [video-id...]" into a task.
func buildTask(args []string, deleteOnFailure bool) (tasks.Task, error) {
	name, err := tasks.ParseName(args[0])
	if err != nil {
		return tasks.Task{}, err
	}
	ids := args[1:]
	switch name {
	case tasks.ReconcileUploads:
		return tasks.Reconcile(ids...), nil
	case tasks.TranscodeVideo:
		if len(ids) != 1 || strings.TrimSpace(ids[0]) == "" {
			return tasks.Task{}, fmt.Errorf("%s requires exactly one video id", name)
		}
		return tasks.Transcode(strings.TrimSpace(ids[0]), deleteOnFailure), nil
	case tasks.RestartTranscodes:
		return tasks.Restart(), nil
	default:
		return tasks.Prune(), nil
	}
}

func newTaskRunCommand(ctx *commandContext) *cobra.Command {
	var deleteOnFailure bool
	cmd := &cobra.Command{
		Use:   "run <task> [video-id...]",
		Short: "Run a task once in this process",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := buildTask(args, deleteOnFailure)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.RunTask(c, task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s finished\n", task.Name)
				return drain(c, cmd, a)
			})
		},
	}
	cmd.Flags().BoolVar(&deleteOnFailure, "delete-on-failure", false, "For transcode_video, remove the video when the attempt fails")
	return cmd
}

func newTaskEnqueueCommand(ctx *commandContext) *cobra.Command {
	var deleteOnFailure bool
	cmd := &cobra.Command{
		Use:   "enqueue <task> [video-id...]",
		Short: "Send a task to the configured queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := buildTask(args, deleteOnFailure)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.Queue.Enqueue(c, task); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s (%s)\n", task.Name, task.ID)
				return drain(c, cmd, a)
			})
		},
	}
	cmd.Flags().BoolVar(&deleteOnFailure, "delete-on-failure", false, "For transcode_video, remove the video when the attempt fails")
	return cmd
}
