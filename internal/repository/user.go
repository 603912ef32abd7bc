package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// SaveUser upserts a single user payload.
func (r *Repository) SaveUser(ctx context.Context, p *payload.User) error {
	if p == nil || p.ID == "" {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		_, err := r.upsertUser(ctx, tx, cache, p)
		return err
	})
}

// SaveUserList upserts a batch of user payloads. A single bad item is
// skipped and logged; the rest of the batch commits.
func (r *Repository) SaveUserList(ctx context.Context, users []*payload.User) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		for _, p := range users {
			if _, err := r.upsertUser(ctx, tx, cache, p); err != nil {
				r.log.WarnContext(ctx, "user_upsert_skipped", zap.Error(err))
			}
		}
		return nil
	})
}

func (r *Repository) upsertUser(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, p *payload.User) (*model.User, error) {
	if p == nil || p.ID == "" {
		return nil, ErrInvalidPayload
	}
	u := cache.UserOrCreate(tx, p.ID)
	u.Name = p.Name
	u.Image = p.Image
	u.Role = p.Role
	u.Online = p.Online
	u.Banned = p.Banned
	u.Teams = append([]string(nil), p.Teams...)
	u.CreatedAt = p.CreatedAt
	u.UpdatedAt = p.UpdatedAt
	u.DeactivatedAt = cloneTimePtr(p.DeactivatedAt)
	u.LastActiveAt = cloneTimePtr(p.LastActiveAt)
	u.ExtraData, u.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "user", p.ID)
	return u, nil
}

// SetUserPresence applies an online/offline presence event for a user the
// store already knows about.
func (r *Repository) SetUserPresence(ctx context.Context, userID string, online bool, lastActiveAt *time.Time) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		u := tx.User(userID)
		if u == nil {
			return ErrUserNotFound
		}
		u.Online = online
		if lastActiveAt != nil {
			u.LastActiveAt = cloneTimePtr(lastActiveAt)
		}
		return nil
	})
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
