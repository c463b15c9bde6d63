package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"videofront/internal/api"
	"videofront/internal/app"
	"videofront/internal/services"
	"videofront/internal/store"
)

type playlistView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Owner    string   `json:"owner,omitempty"`
	Created  string   `json:"created"`
	VideoIDs []string `json:"videoIds"`
}

func toPlaylistView(p *store.Playlist, videoIDs []string) playlistView {
	if videoIDs == nil {
		videoIDs = []string{}
	}
	return playlistView{
		ID:       p.PublicID,
		Name:     p.Name,
		Owner:    p.Owner,
		Created:  api.FormatTime(p.CreatedAt),
		VideoIDs: videoIDs,
	}
}

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	playlistCmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage playlists that uploads can join",
	}
	playlistCmd.AddCommand(newPlaylistCreateCommand(ctx))
	playlistCmd.AddCommand(newPlaylistShowCommand(ctx))
	return playlistCmd
}

func newPlaylistCreateCommand(ctx *commandContext) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return services.Wrap(services.ErrValidation, "cli", "playlist create", "playlist name is required", nil)
			}
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				p, err := a.Store.CreatePlaylist(c, name, strings.TrimSpace(owner))
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, toPlaylistView(p, nil))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created playlist %s (%s)\n", p.PublicID, p.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner of the playlist")
	return cmd
}

func newPlaylistShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <playlist-id>",
		Short: "Show a playlist and its videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				p, err := a.Store.GetPlaylist(c, id)
				if err != nil {
					return err
				}
				if p == nil {
					return services.Wrap(services.ErrNotFound, "cli", "playlist show", "playlist "+id+" does not exist", nil)
				}
				videoIDs, err := a.Store.PlaylistVideoIDs(c, id)
				if err != nil {
					return err
				}
				view := toPlaylistView(p, videoIDs)
				if ctx.jsonOutput {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				for _, line := range renderSectionHeader("Playlist "+view.ID, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "Name:    %s\n", view.Name)
				if view.Owner != "" {
					fmt.Fprintf(out, "Owner:   %s\n", view.Owner)
				}
				fmt.Fprintf(out, "Created: %s\n", view.Created)
				if len(view.VideoIDs) == 0 {
					fmt.Fprintln(out, "No videos")
					return nil
				}
				fmt.Fprintf(out, "Videos:  %s\n", strings.Join(view.VideoIDs, ", "))
				return nil
			})
		},
	}
}
