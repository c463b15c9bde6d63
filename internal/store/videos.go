package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const videoColumns = "v.id, v.public_id, v.title, v.owner, v.thumbnail_id, v.created_at, v.updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		video      Video
		thumbnail  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&video.ID, &video.PublicID, &video.Title, &video.Owner, &thumbnail, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	video.ThumbnailID = thumbnail.String
	if created, err := parseTimeString(createdRaw); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		video.UpdatedAt = updated
	}
	return &video, nil
}

// GetVideo fetches a video by public id.
func (s *Store) GetVideo(ctx context.Context, publicID string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+videoColumns+" FROM videos v WHERE v.public_id = ?", publicID)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// GetOrCreateVideo returns the video with publicID, inserting it with the
// given title and owner when absent. Concurrent callers racing on the same id
// get the same row and exactly one of them sees created=true.
func (s *Store) GetOrCreateVideo(ctx context.Context, publicID, title, owner string) (*Video, bool, error) {
	var (
		video   *Video
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		video, created, err = getOrCreateVideoTx(ctx, tx, publicID, title, owner, s.timestamp())
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create video: %w", err)
	}
	return video, created, nil
}

func getOrCreateVideoTx(ctx context.Context, tx *sql.Tx, publicID, title, owner string, now time.Time) (*Video, bool, error) {
	stamp := formatTime(now)
	res, err := tx.ExecContext(ctx, `INSERT INTO videos (public_id, title, owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(public_id) DO NOTHING`,
		publicID, title, owner, stamp, stamp)
	if err != nil {
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	video, err := scanVideo(tx.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos v WHERE v.public_id = ?", publicID))
	if err != nil {
		return nil, false, err
	}
	return video, affected > 0, nil
}

// UpdateVideoTitle renames a video.
func (s *Store) UpdateVideoTitle(ctx context.Context, publicID, title string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE videos SET title = ?, updated_at = ? WHERE public_id = ?",
		title, formatTime(s.timestamp()), publicID)
	if err != nil {
		return fmt.Errorf("update video title: %w", err)
	}
	return requireAffected(res)
}

// SetThumbnail records the current thumbnail id of a video.
func (s *Store) SetThumbnail(ctx context.Context, publicID, thumbnailID string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE videos SET thumbnail_id = ?, updated_at = ? WHERE public_id = ?",
		nullableString(thumbnailID), formatTime(s.timestamp()), publicID)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return requireAffected(res)
}

// DeleteVideo removes a video together with its processing state, formats,
// subtitles, and playlist memberships. It reports whether a row was removed.
func (s *Store) DeleteVideo(ctx context.Context, publicID string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM videos WHERE public_id = ?", publicID)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	return affected > 0, nil
}

// ListVideos returns every video joined with its processing state, newest first.
func (s *Store) ListVideos(ctx context.Context, statuses ...Status) ([]*VideoSummary, error) {
	query := "SELECT " + videoColumns + `, COALESCE(p.status, ''), COALESCE(p.progress, 0), COALESCE(p.message, '')
		FROM videos v LEFT JOIN processing_states p ON p.video_id = v.id`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE p.status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY v.created_at DESC, v.id DESC"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var summaries []*VideoSummary
	for rows.Next() {
		var (
			summary    VideoSummary
			thumbnail  sql.NullString
			createdRaw string
			updatedRaw string
			status     string
		)
		if err := rows.Scan(&summary.ID, &summary.PublicID, &summary.Title, &summary.Owner, &thumbnail,
			&createdRaw, &updatedRaw, &status, &summary.Progress, &summary.Message); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		summary.ThumbnailID = thumbnail.String
		summary.Status = Status(status)
		if created, err := parseTimeString(createdRaw); err == nil {
			summary.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			summary.UpdatedAt = updated
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
