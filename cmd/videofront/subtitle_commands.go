package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"videofront/internal/app"
)

func newSubtitleCommand(ctx *commandContext) *cobra.Command {
	subtitleCmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Attach or remove subtitle tracks",
	}
	subtitleCmd.AddCommand(newSubtitleAddCommand(ctx))
	subtitleCmd.AddCommand(newSubtitleDeleteCommand(ctx))
	return subtitleCmd
}

func newSubtitleAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <video-id> <language> <file>",
		Short: "Upload an SRT or WebVTT file as a subtitle track",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("read subtitle file: %w", err)
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				sub, err := a.Subtitles.Upload(c, args[0], args[1], raw)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]string{
						"id":       sub.PublicID,
						"videoId":  sub.VideoID,
						"language": sub.Language,
						"url":      a.Backend.SubtitleURL(sub.VideoID, sub.PublicID, sub.Language),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s subtitle %s to video %s\n", sub.Language, sub.PublicID, sub.VideoID)
				return nil
			})
		},
	}
}

func newSubtitleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <subtitle-id>",
		Short: "Remove a subtitle track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				if err := a.Subtitles.Delete(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted subtitle %s\n", args[0])
				return nil
			})
		},
	}
}
