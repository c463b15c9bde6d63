package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"videofront/internal/api"
	"videofront/internal/app"
	"videofront/internal/language"
	"videofront/internal/store"
	"videofront/internal/tasks"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Inspect and manage videos",
	}
	videoCmd.AddCommand(newVideoListCommand(ctx))
	videoCmd.AddCommand(newVideoShowCommand(ctx))
	videoCmd.AddCommand(newVideoRestartCommand(ctx))
	videoCmd.AddCommand(newVideoDeleteCommand(ctx))
	videoCmd.AddCommand(newVideoTranscodeCommand(ctx))
	videoCmd.AddCommand(newVideoRenameCommand(ctx))
	return videoCmd
}

func newVideoListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos and their processing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]store.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, err := store.ParseStatus(value)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				rows, err := a.Views.List(c, statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				fmt.Fprintln(out, renderVideoTable(rows, shouldColorize(out)))
				return nil
			})
		},
	}
	known := make([]string, 0, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		known = append(known, string(status))
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only list videos in these statuses ("+strings.Join(known, ", ")+")")
	return cmd
}

func renderVideoTable(rows []api.VideoSummary, colorize bool) string {
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		body = append(body, []string{
			row.ID,
			row.Title,
			row.Owner,
			colorizeStatus(row.Status, colorize),
			fmt.Sprintf("%.0f%%", row.Progress),
			row.Message,
		})
	}
	cols := rightAligned(columns("ID", "Title", "Owner", "Status", "Progress", "Message"), "Progress")
	return renderTable(cols, body, colorize)
}

func newVideoShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show the read model of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				video, err := a.Views.Video(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, video)
				}
				out := cmd.OutOrStdout()
				printVideo(out, video, shouldColorize(out))
				return nil
			})
		},
	}
}

func printVideo(out io.Writer, video *api.Video, colorize bool) {
	for _, line := range renderSectionHeader("Video "+video.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Title:     %s\n", video.Title)
	if video.Owner != "" {
		fmt.Fprintf(out, "Owner:     %s\n", video.Owner)
	}
	fmt.Fprintf(out, "Status:    %s (%.0f%%)\n", colorizeStatus(video.Processing.Status, colorize), video.Processing.Progress)
	if msg := strings.TrimSpace(video.Processing.Message); msg != "" {
		fmt.Fprintf(out, "Message:   %s\n", msg)
	}
	if video.ThumbnailURL != "" {
		fmt.Fprintf(out, "Thumbnail: %s\n", video.ThumbnailURL)
	}
	if len(video.PlaylistIDs) > 0 {
		fmt.Fprintf(out, "Playlists: %s\n", strings.Join(video.PlaylistIDs, ", "))
	}

	if len(video.Formats) > 0 {
		rows := make([][]string, 0, len(video.Formats))
		for _, f := range video.Formats {
			rows = append(rows, []string{f.Name, fmt.Sprintf("%.0f", f.Bitrate), f.URL})
		}
		cols := rightAligned(columns("Format", "Bitrate (kbps)", "URL"), "Bitrate (kbps)")
		fmt.Fprintln(out, renderTable(cols, rows, colorize))
	}
	if len(video.Subtitles) > 0 {
		rows := make([][]string, 0, len(video.Subtitles))
		for _, s := range video.Subtitles {
			rows = append(rows, []string{s.ID, fmt.Sprintf("%s (%s)", language.DisplayName(s.Language), s.Language), s.URL})
		}
		fmt.Fprintln(out, renderTable(columns("Subtitle", "Language", "URL"), rows, colorize))
	}
}

func newVideoRestartCommand(ctx *commandContext) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "restart <video-id>",
		Short: "Mark a video for a new transcoding attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.Coordinator.RequestRestart(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s marked for restart\n", args[0])
				if !now {
					return nil
				}
				return a.RunTask(c, tasks.Restart())
			})
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Run the restart sweep immediately instead of waiting for the daemon")
	return cmd
}

func newVideoDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <video-id>",
		Short: "Delete a video and its stored assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.Views.Delete(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted video %s\n", args[0])
				return nil
			})
		},
	}
}

func newVideoTranscodeCommand(ctx *commandContext) *cobra.Command {
	var (
		queue           bool
		deleteOnFailure bool
		wait            time.Duration
	)
	cmd := &cobra.Command{
		Use:   "transcode <video-id>",
		Short: "Run a transcoding attempt for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID := strings.TrimSpace(args[0])
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				task := tasks.Transcode(videoID, deleteOnFailure)
				if queue {
					if err := a.Queue.Enqueue(c, task); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued transcoding of %s\n", videoID)
					return drain(c, cmd, a)
				}
				if wait > 0 {
					idle, err := a.Coordinator.WaitIdle(c, videoID, time.Now().Add(wait))
					if err != nil {
						return err
					}
					if !idle {
						return fmt.Errorf("video %s: another attempt is still running after %s", videoID, wait)
					}
				}
				if err := a.RunTask(c, task); err != nil {
					return err
				}
				state, err := a.Store.GetProcessingState(c, videoID)
				if err != nil {
					return err
				}
				status := string(store.StatusPending)
				if state != nil {
					status = string(state.Status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s: %s\n", videoID, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "Enqueue the attempt instead of running it in this process")
	cmd.Flags().BoolVar(&deleteOnFailure, "delete-on-failure", false, "Remove the video when the attempt fails")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for a running attempt to finish first")
	return cmd
}

func newVideoRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <video-id> <title>",
		Short: "Change the title of a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.Views.Rename(c, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed video %s\n", args[0])
				return nil
			})
		},
	}
}
