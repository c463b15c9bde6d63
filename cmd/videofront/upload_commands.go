package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"videofront/internal/app"
	"videofront/internal/services"
	"videofront/internal/store"
	"videofront/internal/uploads"
)

type reservationView struct {
	VideoID     string `json:"videoId"`
	Filename    string `json:"filename"`
	Owner       string `json:"owner,omitempty"`
	PlaylistID  string `json:"playlistId,omitempty"`
	ExpiresAt   string `json:"expiresAt"`
	Used        bool   `json:"used"`
	LastChecked string `json:"lastChecked,omitempty"`
	Available   bool   `json:"available"`
}

func toReservationView(r *store.Reservation, now time.Time, grace time.Duration) reservationView {
	view := reservationView{
		VideoID:    r.PublicVideoID,
		Filename:   r.Filename,
		Owner:      r.Owner,
		PlaylistID: r.PlaylistID,
		ExpiresAt:  r.ExpiresAt.UTC().Format(time.RFC3339),
		Used:       r.WasUsed,
		Available:  r.Available(now, grace),
	}
	if r.LastChecked != nil {
		view.LastChecked = r.LastChecked.UTC().Format(time.RFC3339)
	}
	return view
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Manage upload reservations",
	}
	uploadCmd.AddCommand(newUploadReserveCommand(ctx))
	uploadCmd.AddCommand(newUploadSendCommand(ctx))
	uploadCmd.AddCommand(newUploadListCommand(ctx))
	uploadCmd.AddCommand(newUploadReconcileCommand(ctx))
	uploadCmd.AddCommand(newUploadPruneCommand(ctx))
	return uploadCmd
}

func newUploadReserveCommand(ctx *commandContext) *cobra.Command {
	var owner, playlist string
	cmd := &cobra.Command{
		Use:   "reserve <filename>",
		Short: "Allocate a video id for an upcoming upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				r, err := a.Monitor.Reserve(c, uploads.ReserveRequest{
					Filename:   args[0],
					Owner:      strings.TrimSpace(owner),
					PlaylistID: strings.TrimSpace(playlist),
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, toReservationView(r, time.Now(), a.Monitor.Grace()))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Reserved video %s for %s\n", r.PublicVideoID, r.Filename)
				fmt.Fprintf(out, "Upload before %s\n", r.ExpiresAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner recorded on the new video")
	cmd.Flags().StringVar(&playlist, "playlist", "", "Playlist the video joins once uploaded")
	return cmd
}

func newUploadSendCommand(ctx *commandContext) *cobra.Command {
	var reconcile bool
	cmd := &cobra.Command{
		Use:   "send <video-id> <file>",
		Short: "Store a source file for a reserved video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID := strings.TrimSpace(args[0])
			file, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer file.Close()
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				r, err := a.Store.GetReservation(c, videoID)
				if err != nil {
					return err
				}
				if r == nil {
					return services.Wrap(services.ErrNotFound, "cli", "upload send", "no reservation for video "+videoID, nil)
				}
				if err := a.Backend.Upload(c, videoID, filepath.Base(args[1]), file); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s for video %s\n", filepath.Base(args[1]), videoID)
				if !reconcile {
					return nil
				}
				res, err := a.Monitor.Reconcile(c, videoID)
				if err != nil {
					return err
				}
				printReconcileResult(cmd, res)
				return drain(c, cmd, a)
			})
		},
	}
	cmd.Flags().BoolVar(&reconcile, "reconcile", true, "Check the reservation right after the upload")
	return cmd
}

func newUploadListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List upload reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				reservations, err := a.Store.ListReservations(c)
				if err != nil {
					return err
				}
				now := time.Now()
				views := make([]reservationView, 0, len(reservations))
				for _, r := range reservations {
					views = append(views, toReservationView(r, now, a.Monitor.Grace()))
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No reservations")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.VideoID, v.Filename, v.Owner, v.PlaylistID, v.ExpiresAt, yesNo(v.Available), yesNo(v.Used), v.LastChecked})
				}
				cols := columns("Video", "Filename", "Owner", "Playlist", "Expires", "Available", "Used", "Last Checked")
				fmt.Fprintln(out, renderTable(cols, rows, shouldColorize(out)))
				return nil
			})
		},
	}
}

func newUploadReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [video-id...]",
		Short: "Check reservations for completed uploads",
		Long: "Without ids a full sweep runs under the upload monitor lock. With ids only\n" +
			"those reservations are checked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				var (
					res uploads.Result
					err error
				)
				if len(args) > 0 {
					res, err = a.Monitor.Reconcile(c, args...)
				} else {
					res, err = a.Monitor.ReconcileLocked(c)
				}
				if err != nil {
					return err
				}
				printReconcileResult(cmd, res)
				return drain(c, cmd, a)
			})
		},
	}
}

func printReconcileResult(cmd *cobra.Command, res uploads.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "Checked %d reservation(s): %d confirmed, %d enqueued, %d failed\n",
		res.Checked, res.Confirmed, res.Enqueued, res.Failed)
}

func newUploadPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete long-expired unused reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, a *app.App) error {
				removed, err := a.Monitor.PruneExpired(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d reservation(s)\n", removed)
				return nil
			})
		},
	}
}
