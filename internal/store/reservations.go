package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const reservationColumns = "id, public_video_id, expires_at, was_used, last_checked, owner, filename, playlist_id, created_at"

func scanReservation(scanner interface{ Scan(dest ...any) error }) (*Reservation, error) {
	var (
		r          Reservation
		expiresRaw string
		wasUsed    int
		checkedRaw sql.NullString
		playlist   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&r.ID, &r.PublicVideoID, &expiresRaw, &wasUsed, &checkedRaw,
		&r.Owner, &r.Filename, &playlist, &createdRaw); err != nil {
		return nil, err
	}
	r.WasUsed = wasUsed != 0
	r.LastChecked = parseOptionalTime(checkedRaw.String, checkedRaw.Valid)
	r.PlaylistID = playlist.String
	if expires, err := parseTimeString(expiresRaw); err == nil {
		r.ExpiresAt = expires
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		r.CreatedAt = created
	}
	return &r, nil
}

// CreateReservation stores a new upload reservation.
func (s *Store) CreateReservation(ctx context.Context, r *Reservation) error {
	if r == nil || r.PublicVideoID == "" {
		return errors.New("create reservation: public video id required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.timestamp()
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO upload_reservations
		(public_video_id, expires_at, was_used, last_checked, owner, filename, playlist_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PublicVideoID, formatTime(r.ExpiresAt), boolToInt(r.WasUsed), nullableTime(r.LastChecked),
		r.Owner, r.Filename, nullableString(r.PlaylistID), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// GetReservation fetches a reservation by its public video id.
func (s *Store) GetReservation(ctx context.Context, publicVideoID string) (*Reservation, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+reservationColumns+" FROM upload_reservations WHERE public_video_id = ?", publicVideoID)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// ReservationsToCheck returns reservations that are still available
// (unconsumed and expired for less than grace) plus every reservation that
// has never been checked, optionally restricted to publicVideoIDs.
func (s *Store) ReservationsToCheck(ctx context.Context, now time.Time, grace time.Duration, publicVideoIDs ...string) ([]*Reservation, error) {
	query := "SELECT " + reservationColumns + ` FROM upload_reservations
		WHERE ((was_used = 0 AND expires_at > ?) OR last_checked IS NULL)`
	args := []any{formatTime(now.Add(-grace))}
	if len(publicVideoIDs) > 0 {
		query += " AND public_video_id IN (" + makePlaceholders(len(publicVideoIDs)) + ")"
		for _, id := range publicVideoIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY id"
	return s.queryReservations(ctx, query, args...)
}

// ListReservations returns every reservation, newest first.
func (s *Store) ListReservations(ctx context.Context) ([]*Reservation, error) {
	return s.queryReservations(ctx, "SELECT "+reservationColumns+" FROM upload_reservations ORDER BY id DESC")
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()
	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TouchReservation advances last_checked to checkedAt. A value already in the
// future is kept, so concurrent sweeps never move the stamp backward.
func (s *Store) TouchReservation(ctx context.Context, publicVideoID string, checkedAt time.Time) error {
	_, err := s.execWithRetry(ctx, `UPDATE upload_reservations
		SET last_checked = CASE WHEN last_checked IS NULL OR last_checked < ?1 THEN ?1 ELSE last_checked END
		WHERE public_video_id = ?2`, formatTime(checkedAt), publicVideoID)
	if err != nil {
		return fmt.Errorf("touch reservation: %w", err)
	}
	return nil
}

// ConsumeReservation marks the reservation used, advances last_checked
// monotonically, gets or creates the matching video (title from the upload
// filename, owner from the reservation), and attaches it to the reservation's
// playlist. All of it happens in one transaction. claimed reports whether
// this call moved the reservation from unused to used.
func (s *Store) ConsumeReservation(ctx context.Context, publicVideoID string, checkedAt time.Time) (*Video, bool, error) {
	var (
		video   *Video
		claimed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := scanReservation(tx.QueryRowContext(ctx,
			"SELECT "+reservationColumns+" FROM upload_reservations WHERE public_video_id = ?", publicVideoID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load reservation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE upload_reservations
			SET was_used = 1,
				last_checked = CASE WHEN last_checked IS NULL OR last_checked < ?1 THEN ?1 ELSE last_checked END
			WHERE id = ?2`, formatTime(checkedAt), r.ID); err != nil {
			return fmt.Errorf("mark reservation used: %w", err)
		}
		claimed = !r.WasUsed
		video, _, err = getOrCreateVideoTx(ctx, tx, r.PublicVideoID, r.Filename, r.Owner, s.timestamp())
		if err != nil {
			return fmt.Errorf("get or create video: %w", err)
		}
		if r.PlaylistID != "" {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO playlist_videos (playlist_id, video_id)
				SELECT id, ? FROM playlists WHERE public_id = ?`, video.ID, r.PlaylistID); err != nil {
				return fmt.Errorf("attach playlist: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return video, claimed, nil
}

// ReopenReservation marks a consumed reservation unused and never checked so
// the next sweep picks it up again. The video it produced is kept.
func (s *Store) ReopenReservation(ctx context.Context, publicVideoID string) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE upload_reservations SET was_used = 0, last_checked = NULL WHERE public_video_id = ?",
		publicVideoID)
	if err != nil {
		return fmt.Errorf("reopen reservation: %w", err)
	}
	return nil
}

// PruneReservations deletes unconsumed reservations that expired more than
// twice the grace window ago.
func (s *Store) PruneReservations(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM upload_reservations WHERE was_used = 0 AND expires_at < ?",
		formatTime(now.Add(-2*grace)))
	if err != nil {
		return 0, fmt.Errorf("prune reservations: %w", err)
	}
	return res.RowsAffected()
}
