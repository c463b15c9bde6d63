package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetProcessingState returns the processing state of a video, or nil when the
// video has never been queued for transcoding.
func (s *Store) GetProcessingState(ctx context.Context, publicID string) (*ProcessingState, error) {
	var (
		state      ProcessingState
		status     string
		startedRaw sql.NullString
		updatedRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT p.status, p.progress, p.started_at, p.message, p.updated_at
		FROM processing_states p JOIN videos v ON v.id = p.video_id WHERE v.public_id = ?`, publicID).
		Scan(&status, &state.Progress, &startedRaw, &state.Message, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processing state: %w", err)
	}
	state.Status = Status(status)
	state.StartedAt = parseOptionalTime(startedRaw.String, startedRaw.Valid)
	if updated, err := parseTimeString(updatedRaw); err == nil {
		state.UpdatedAt = updated
	}
	return &state, nil
}

// ResetProcessing starts a fresh attempt: status pending, progress 0, empty
// message, and a new start timestamp. Formats of a previous attempt are
// dropped in the same transaction. It creates the state row when missing.
func (s *Store) ResetProcessing(ctx context.Context, publicID string, startedAt time.Time) error {
	return s.transition(ctx, publicID, true, `INSERT INTO processing_states (video_id, status, progress, started_at, message, updated_at)
		VALUES (?1, ?2, 0, ?3, '', ?4)
		ON CONFLICT(video_id) DO UPDATE SET status = excluded.status, progress = 0,
			started_at = excluded.started_at, message = '', updated_at = excluded.updated_at`,
		string(StatusPending), formatTime(startedAt))
}

// UpdateProgress records an aggregated progress value with status processing.
func (s *Store) UpdateProgress(ctx context.Context, publicID string, progress float64) error {
	return s.updateState(ctx, publicID, "status = ?, progress = ?", string(StatusProcessing), progress)
}

// CompleteProcessing replaces the formats of a video and marks the attempt
// successful in one transaction, so formats are never visible under another
// status.
func (s *Store) CompleteProcessing(ctx context.Context, publicID string, formats []VideoFormat, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		videoID, err := lookupVideoID(ctx, tx, publicID)
		if err != nil {
			return err
		}
		if err := replaceFormatsTx(ctx, tx, videoID, formats); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE processing_states SET status = ?, progress = 100, message = ?, updated_at = ?
			WHERE video_id = ?`, string(StatusSuccess), message, formatTime(s.timestamp()), videoID)
		if err != nil {
			return fmt.Errorf("complete processing: %w", err)
		}
		return requireAffected(res)
	})
}

// FailProcessing marks the attempt failed and drops its formats. Progress
// goes back to 0 since it is only meaningful while processing.
func (s *Store) FailProcessing(ctx context.Context, publicID, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		videoID, err := lookupVideoID(ctx, tx, publicID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM video_formats WHERE video_id = ?", videoID); err != nil {
			return fmt.Errorf("delete formats: %w", err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE processing_states SET status = ?, progress = 0, message = ?, updated_at = ?
			WHERE video_id = ?`, string(StatusFailed), message, formatTime(s.timestamp()), videoID)
		if err != nil {
			return fmt.Errorf("fail processing: %w", err)
		}
		return requireAffected(res)
	})
}

// RequestRestart marks a video for the restart sweep. Formats are dropped
// since they only exist for successful attempts.
func (s *Store) RequestRestart(ctx context.Context, publicID, message string) error {
	return s.transition(ctx, publicID, true, `INSERT INTO processing_states (video_id, status, progress, message, updated_at)
		VALUES (?1, ?2, 0, ?3, ?4)
		ON CONFLICT(video_id) DO UPDATE SET status = excluded.status, progress = 0,
			message = excluded.message, updated_at = excluded.updated_at`,
		string(StatusRestartRequested), message)
}

// transition upserts the processing state of publicID with query, whose first
// parameter is the internal video id and last is the update timestamp.
func (s *Store) transition(ctx context.Context, publicID string, dropFormats bool, query string, args ...any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		videoID, err := lookupVideoID(ctx, tx, publicID)
		if err != nil {
			return err
		}
		if dropFormats {
			if _, err := tx.ExecContext(ctx, "DELETE FROM video_formats WHERE video_id = ?", videoID); err != nil {
				return fmt.Errorf("delete formats: %w", err)
			}
		}
		full := append([]any{videoID}, args...)
		full = append(full, formatTime(s.timestamp()))
		if _, err := tx.ExecContext(ctx, query, full...); err != nil {
			return fmt.Errorf("update processing state: %w", err)
		}
		return nil
	})
}

// VideoIDsWithStatus lists public ids whose processing state has status.
func (s *Store) VideoIDsWithStatus(ctx context.Context, status Status) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT v.public_id FROM videos v
		JOIN processing_states p ON p.video_id = v.id WHERE p.status = ? ORDER BY p.updated_at, v.id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan public id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) updateState(ctx context.Context, publicID, assignments string, args ...any) error {
	args = append(args, formatTime(s.timestamp()), publicID)
	res, err := s.execWithRetry(ctx, "UPDATE processing_states SET "+assignments+`, updated_at = ?
		WHERE video_id = (SELECT id FROM videos WHERE public_id = ?)`, args...)
	if err != nil {
		return fmt.Errorf("update processing state: %w", err)
	}
	return requireAffected(res)
}
