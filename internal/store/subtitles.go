package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const subtitleColumns = "s.id, s.public_id, v.public_id, s.language, s.created_at"

func scanSubtitle(scanner interface{ Scan(dest ...any) error }) (*Subtitle, error) {
	var (
		sub        Subtitle
		createdRaw string
	)
	if err := scanner.Scan(&sub.ID, &sub.PublicID, &sub.VideoID, &sub.Language, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		sub.CreatedAt = created
	}
	return &sub, nil
}

// CreateSubtitle inserts a subtitle row. Subtitles are immutable: when
// subtitleID already exists the stored row is returned unchanged and created
// is false.
func (s *Store) CreateSubtitle(ctx context.Context, videoPublicID, subtitleID, language string) (*Subtitle, bool, error) {
	var (
		sub     *Subtitle
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO subtitles (public_id, video_id, language, created_at)
			SELECT ?, id, ?, ? FROM videos WHERE public_id = ?
			ON CONFLICT(public_id) DO NOTHING`,
			subtitleID, language, formatTime(s.timestamp()), videoPublicID)
		if err != nil {
			return fmt.Errorf("insert subtitle: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected > 0
		sub, err = scanSubtitle(tx.QueryRowContext(ctx, "SELECT "+subtitleColumns+
			" FROM subtitles s JOIN videos v ON v.id = s.video_id WHERE s.public_id = ?", subtitleID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return sub, created, nil
}

// GetSubtitle fetches a subtitle by public id.
func (s *Store) GetSubtitle(ctx context.Context, subtitleID string) (*Subtitle, error) {
	sub, err := scanSubtitle(s.db.QueryRowContext(ensureContext(ctx), "SELECT "+subtitleColumns+
		" FROM subtitles s JOIN videos v ON v.id = s.video_id WHERE s.public_id = ?", subtitleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subtitle: %w", err)
	}
	return sub, nil
}

// ListSubtitles returns the subtitles of a video in creation order.
func (s *Store) ListSubtitles(ctx context.Context, videoPublicID string) ([]*Subtitle, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+subtitleColumns+
		" FROM subtitles s JOIN videos v ON v.id = s.video_id WHERE v.public_id = ? ORDER BY s.id", videoPublicID)
	if err != nil {
		return nil, fmt.Errorf("list subtitles: %w", err)
	}
	defer rows.Close()
	var subs []*Subtitle
	for rows.Next() {
		sub, err := scanSubtitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubtitle removes a subtitle row.
func (s *Store) DeleteSubtitle(ctx context.Context, subtitleID string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM subtitles WHERE public_id = ?", subtitleID)
	if err != nil {
		return fmt.Errorf("delete subtitle: %w", err)
	}
	return requireAffected(res)
}
