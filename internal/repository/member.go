package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// SaveMember upserts one membership payload into an existing channel.
func (r *Repository) SaveMember(ctx context.Context, cid string, p *payload.Member) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		_, err := r.upsertMember(ctx, tx, cache, cid, p)
		return err
	})
}

func (r *Repository) upsertMember(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, cid string, p *payload.Member) (*model.Member, error) {
	if p == nil {
		return nil, ErrInvalidPayload
	}
	userID := p.UserID
	if p.User != nil {
		if _, err := r.upsertUser(ctx, tx, cache, p.User); err != nil {
			return nil, err
		}
		userID = p.User.ID
	}
	if userID == "" {
		return nil, ErrInvalidPayload
	}

	m := cache.MemberOrCreate(tx, cid, userID)
	m.ChannelRole = p.ChannelRole
	m.Banned = p.Banned
	m.BanExpiresAt = cloneTimePtr(p.BanExpiresAt)
	m.Invited = p.Invited
	m.InviteAcceptedAt = cloneTimePtr(p.InviteAcceptedAt)
	m.InviteRejectedAt = cloneTimePtr(p.InviteRejectedAt)
	m.NotificationsMuted = p.NotificationsMuted
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt

	// Back-reference: membership shows up in the channel's member set.
	ch := cache.ChannelOrCreate(tx, cid)
	ch.MemberIDs[userID] = struct{}{}
	return m, nil
}

// RemoveMember deletes a membership and its channel back-reference.
func (r *Repository) RemoveMember(ctx context.Context, cid, userID string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		tx.DeleteMember(cid, userID)
		return nil
	})
}

// SaveChannelRead upserts one read-cursor payload into an existing channel.
func (r *Repository) SaveChannelRead(ctx context.Context, cid string, p *payload.Read) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		_, err := r.upsertRead(ctx, tx, cache, cid, p)
		return err
	})
}

func (r *Repository) upsertRead(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, cid string, p *payload.Read) (*model.ChannelRead, error) {
	if p == nil || p.User == nil || p.User.ID == "" {
		return nil, ErrInvalidPayload
	}
	if _, err := r.upsertUser(ctx, tx, cache, p.User); err != nil {
		return nil, err
	}
	read := cache.ChannelReadOrCreate(tx, cid, p.User.ID)
	read.LastReadAt = p.LastReadAt
	read.LastReadMessageID = p.LastReadMessageID
	read.UnreadCount = p.UnreadMessages

	ch := cache.ChannelOrCreate(tx, cid)
	ch.ReadUserIDs[p.User.ID] = struct{}{}
	return read, nil
}

// MarkChannelRead advances the current user's read cursor to at and zeroes
// the unread count. The channel's observers refresh through propagation
// even though no channel field moves.
func (r *Repository) MarkChannelRead(ctx context.Context, sess *session.Session, cid string, at time.Time) error {
	if !sess.Valid() {
		return ErrNoCurrentUser
	}
	err := r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		read := tx.ChannelReadOrCreate(cid, sess.UserID)
		read.LastReadAt = at
		read.UnreadCount = 0
		if ch.PreviewMessageID != "" {
			if m := tx.Message(ch.PreviewMessageID); m != nil && !m.CreatedAt.After(at) {
				read.LastReadMessageID = m.ID
			}
		}
		ch.ReadUserIDs[sess.UserID] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.DebugContext(ctx, "channel_marked_read", zap.String("cid", cid), zap.String("user", sess.UserID))
	return nil
}
