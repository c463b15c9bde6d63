package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreatePlaylist stores a playlist with a fresh public id.
func (s *Store) CreatePlaylist(ctx context.Context, name, owner string) (*Playlist, error) {
	p := &Playlist{PublicID: NewPublicID(), Name: name, Owner: owner, CreatedAt: s.timestamp()}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO playlists (public_id, name, owner, created_at) VALUES (?, ?, ?, ?)",
		p.PublicID, p.Name, p.Owner, formatTime(p.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		p.ID = id
	}
	return p, nil
}

// GetPlaylist fetches a playlist by public id.
func (s *Store) GetPlaylist(ctx context.Context, publicID string) (*Playlist, error) {
	var (
		p          Playlist
		createdRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, public_id, name, owner, created_at FROM playlists WHERE public_id = ?", publicID).
		Scan(&p.ID, &p.PublicID, &p.Name, &p.Owner, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	return &p, nil
}

// PlaylistVideoIDs returns the public ids of the videos in a playlist.
func (s *Store) PlaylistVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT v.public_id FROM playlist_videos pv
		JOIN playlists p ON p.id = pv.playlist_id JOIN videos v ON v.id = pv.video_id
		WHERE p.public_id = ? ORDER BY v.id`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list playlist videos: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan playlist video: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VideoPlaylistIDs returns the public ids of the playlists containing a video.
func (s *Store) VideoPlaylistIDs(ctx context.Context, videoPublicID string) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT p.public_id FROM playlist_videos pv
		JOIN playlists p ON p.id = pv.playlist_id JOIN videos v ON v.id = pv.video_id
		WHERE v.public_id = ? ORDER BY p.id`, videoPublicID)
	if err != nil {
		return nil, fmt.Errorf("list video playlists: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan video playlist: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
