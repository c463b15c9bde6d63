package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func lookupVideoID(ctx context.Context, tx *sql.Tx, publicID string) (int64, error) {
	var videoID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM videos WHERE public_id = ?", publicID).Scan(&videoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("lookup video: %w", err)
	}
	return videoID, nil
}

// replaceFormatsTx deletes every format of a video and inserts the given set.
func replaceFormatsTx(ctx context.Context, tx *sql.Tx, videoID int64, formats []VideoFormat) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM video_formats WHERE video_id = ?", videoID); err != nil {
		return fmt.Errorf("delete formats: %w", err)
	}
	for _, format := range formats {
		if format.Bitrate < 0 {
			return fmt.Errorf("format %q: negative bitrate %v", format.Name, format.Bitrate)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO video_formats (video_id, name, bitrate) VALUES (?, ?, ?)",
			videoID, format.Name, format.Bitrate); err != nil {
			return fmt.Errorf("insert format %q: %w", format.Name, err)
		}
	}
	return nil
}

// ListFormats returns the formats of a video ordered by bitrate.
func (s *Store) ListFormats(ctx context.Context, publicID string) ([]VideoFormat, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT f.name, f.bitrate FROM video_formats f
		JOIN videos v ON v.id = f.video_id WHERE v.public_id = ? ORDER BY f.bitrate, f.name`, publicID)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	defer rows.Close()
	var formats []VideoFormat
	for rows.Next() {
		var format VideoFormat
		if err := rows.Scan(&format.Name, &format.Bitrate); err != nil {
			return nil, fmt.Errorf("scan format: %w", err)
		}
		formats = append(formats, format)
	}
	return formats, rows.Err()
}
