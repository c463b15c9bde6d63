package uploads

import (
	"context"

	"videofront/internal/logging"
	"videofront/internal/services"
	"videofront/internal/store"
	"videofront/internal/textutil"
)

// ReserveRequest describes an upload slot to allocate.
type ReserveRequest struct {
	Filename   string
	Owner      string
	PlaylistID string
}

// Reserve allocates a fresh public video id that stays valid for the grace
// window.
func (m *Monitor) Reserve(ctx context.Context, req ReserveRequest) (*store.Reservation, error) {
	name := textutil.CleanUploadName(req.Filename)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "uploads", "reserve", "A filename is required", nil)
	}
	if req.PlaylistID != "" {
		playlist, err := m.store.GetPlaylist(ctx, req.PlaylistID)
		if err != nil {
			return nil, err
		}
		if playlist == nil {
			return nil, services.Wrap(services.ErrNotFound, "uploads", "reserve", "playlist "+req.PlaylistID+" does not exist", nil)
		}
	}

	now := m.now()
	r := &store.Reservation{
		PublicVideoID: store.NewPublicID(),
		ExpiresAt:     now.Add(m.grace),
		Owner:         req.Owner,
		Filename:      name,
		PlaylistID:    req.PlaylistID,
		CreatedAt:     now,
	}
	if err := m.store.CreateReservation(ctx, r); err != nil {
		return nil, services.Wrap(services.ErrTransient, "uploads", "reserve", "Failed to store reservation", err)
	}
	logging.WithContext(services.WithVideoID(ctx, r.PublicVideoID), m.logger).Info("upload reserved",
		logging.String(logging.FieldEventType, "upload_reserved"),
		logging.String("filename", r.Filename),
		logging.String("expires_at", r.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")),
	)
	return r, nil
}
