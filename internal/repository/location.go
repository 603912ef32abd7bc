package repository

import (
	"context"
	"encoding/json"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// SharedLocation is the extra-data shape a live-location message carries.
type SharedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// DeviceID ties the live share to the device that keeps updating it.
	DeviceID string `json:"device_id"`
	// EndAt, RFC3339, for live shares; empty for a static location.
	EndAt string `json:"end_at,omitempty"`
}

// ShareLocation creates an outgoing location message. Live-location updates
// are addressed to a specific device, so a session without one cannot
// share.
func (r *Repository) ShareLocation(ctx context.Context, sess *session.Session, cid string, loc SharedLocation) (string, error) {
	if !sess.Valid() {
		return "", ErrNoCurrentUser
	}
	if sess.Device == nil || sess.Device.ID == "" {
		return "", ErrNoDevice
	}
	loc.DeviceID = sess.Device.ID
	extra, err := json.Marshal(&loc)
	if err != nil {
		return "", err
	}
	p := payload.NewLocalMessage(cid, &payload.User{ID: sess.UserID}, "")
	p.ExtraData = extra

	err = r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		m, err := r.upsertMessage(ctx, tx, cache, sess, p, messageSaveOptions{syncOwnReactions: false})
		if err != nil {
			return err
		}
		m.LocalState = model.LocalStatePendingSend
		return nil
	})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// UpdateSharedLocation refreshes the coordinates on a previously shared
// location message. Only the sharing device may move it.
func (r *Repository) UpdateSharedLocation(ctx context.Context, sess *session.Session, messageID string, lat, lng float64) error {
	if !sess.Valid() {
		return ErrNoCurrentUser
	}
	if sess.Device == nil || sess.Device.ID == "" {
		return ErrNoDevice
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(messageID)
		if m == nil {
			return ErrMessageNotFound
		}
		var loc SharedLocation
		if err := json.Unmarshal(m.ExtraData, &loc); err != nil {
			return ErrInvalidPayload
		}
		if loc.DeviceID != sess.Device.ID {
			return ErrNoDevice
		}
		loc.Latitude = lat
		loc.Longitude = lng
		extra, err := json.Marshal(&loc)
		if err != nil {
			return err
		}
		m.ExtraData, m.ExtraDataHash = r.sanitizeBlob(ctx, extra, "message", m.ID)
		now := nowUTC()
		m.UpdatedAt = now
		if m.LocalState == model.LocalStateNone {
			m.LocalState = model.LocalStatePendingSync
		}
		return nil
	})
}
