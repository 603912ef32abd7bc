package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
	"github.com/Gopher0727/ChatSync/utils"
)

// SaveChannelList upserts a channel-list query response in one transaction.
// Bad items are skipped and logged; the rest of the page still lands.
func (r *Repository) SaveChannelList(ctx context.Context, sess *session.Session, list *payload.ChannelList) error {
	if list == nil {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		cache.WarmChannelList(tx, list)
		for _, d := range list.Channels {
			if err := r.upsertChannelDetail(ctx, tx, cache, sess, d); err != nil {
				r.log.WarnContext(ctx, "channel_upsert_skipped", zap.Error(err))
			}
		}
		return nil
	})
}

// SaveChannelDetail upserts one channel query response.
func (r *Repository) SaveChannelDetail(ctx context.Context, sess *session.Session, d *payload.ChannelDetail) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		cache.WarmChannelDetail(tx, d)
		return r.upsertChannelDetail(ctx, tx, cache, sess, d)
	})
}

func (r *Repository) upsertChannelDetail(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, sess *session.Session, d *payload.ChannelDetail) error {
	if d == nil || d.Channel == nil {
		return ErrInvalidPayload
	}
	ch, err := r.upsertChannel(ctx, tx, cache, d.Channel)
	if err != nil {
		return err
	}

	saved := r.upsertMessageList(ctx, tx, cache, sess, ch.CID, d.Messages)
	r.finishChannelMessages(tx, cache, ch.CID, saved, false)

	for _, mp := range d.PinnedMessages {
		m, err := r.upsertMessage(ctx, tx, cache, sess, mp, messageSaveOptions{cid: ch.CID, syncOwnReactions: true})
		if err != nil {
			r.log.WarnContext(ctx, "pinned_message_skipped",
				zap.String("cid", ch.CID), zap.Error(err))
			continue
		}
		syncPinSet(ch, m)
	}

	for _, mp := range d.Members {
		if _, err := r.upsertMember(ctx, tx, cache, ch.CID, mp); err != nil {
			r.log.WarnContext(ctx, "member_upsert_skipped",
				zap.String("cid", ch.CID), zap.Error(err))
		}
	}
	for _, rp := range d.Reads {
		if _, err := r.upsertRead(ctx, tx, cache, ch.CID, rp); err != nil {
			r.log.WarnContext(ctx, "read_upsert_skipped",
				zap.String("cid", ch.CID), zap.Error(err))
		}
	}

	// Watchers are ephemeral presence; a detail payload replaces the set.
	ch.WatcherIDs = map[string]struct{}{}
	for _, up := range d.Watchers {
		if u, err := r.upsertUser(ctx, tx, cache, up); err == nil {
			ch.WatcherIDs[u.ID] = struct{}{}
		}
	}
	ch.WatcherCount = utils.Max(d.WatcherCount, len(ch.WatcherIDs))

	updateDefaultSorting(ch)
	return nil
}

// upsertChannel merges one channel payload into the arena. A payload
// truncation timestamp newer than the local one triggers the local
// truncation pass.
func (r *Repository) upsertChannel(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, p *payload.Channel) (*model.Channel, error) {
	if p == nil || p.CID == "" {
		return nil, ErrInvalidPayload
	}
	ch := cache.ChannelOrCreate(tx, p.CID)

	ch.Type = p.Type
	ch.ChannelID = p.ChannelID
	ch.Name = p.Name
	ch.Image = p.Image
	ch.Frozen = p.Frozen
	ch.Disabled = p.Disabled
	ch.Cooldown = p.Cooldown
	ch.MemberCount = utils.Max(p.MemberCount, len(p.Members))
	ch.CreatedAt = p.CreatedAt
	ch.UpdatedAt = p.UpdatedAt
	ch.DeletedAt = cloneTimePtr(p.DeletedAt)
	if p.LastMessageAt != nil {
		ch.LastMessageAt = utils.TimePtr(utils.LaterTime(derefTime(ch.LastMessageAt), *p.LastMessageAt))
	}
	// Hidden is a local view preference; the payload can only set it, a
	// false payload flag never unhides a locally hidden channel.
	if p.Hidden {
		ch.Hidden = true
	}
	if p.Config != nil {
		ch.Config = model.ChannelConfig{
			RepliesEnabled:      p.Config.RepliesEnabled,
			ReactionsEnabled:    p.Config.ReactionsEnabled,
			TypingEventsEnabled: p.Config.TypingEventsEnabled,
			ReadEventsEnabled:   p.Config.ReadEventsEnabled,
			MaxMessageLength:    p.Config.MaxMessageLength,
		}
	}
	ch.ExtraData, ch.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "channel", p.CID)

	if p.CreatedBy != nil {
		if u, err := r.upsertUser(ctx, tx, cache, p.CreatedBy); err == nil {
			ch.CreatedByID = u.ID
		}
	}
	for _, mp := range p.Members {
		if _, err := r.upsertMember(ctx, tx, cache, ch.CID, mp); err != nil {
			r.log.WarnContext(ctx, "member_upsert_skipped",
				zap.String("cid", ch.CID), zap.Error(err))
		}
	}

	if p.TruncatedAt != nil && (ch.TruncatedAt == nil || p.TruncatedAt.After(*ch.TruncatedAt)) {
		at := *p.TruncatedAt
		truncateChannel(tx, ch, at)
	}

	updateDefaultSorting(ch)
	return ch, nil
}

// TruncateChannel drops every message in the channel created before the
// given instant and resets the derived views that referenced them.
func (r *Repository) TruncateChannel(ctx context.Context, cid string, at time.Time) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		truncateChannel(tx, ch, at)
		updateDefaultSorting(ch)
		return nil
	})
}

// truncateChannel is the shared truncation pass, reused by the explicit
// operation and by a channel payload carrying a newer truncatedAt.
func truncateChannel(tx *store.WriteTx, ch *model.Channel, at time.Time) {
	// Scan by cid so thread-only replies outside the channel's message set
	// are truncated too. The unsent draft is local state and survives.
	for _, m := range tx.MessagesByCID(ch.CID) {
		if m.Draft {
			continue
		}
		if m.CreatedAt.Before(at) {
			tx.DeleteMessage(m.ID)
		}
	}
	ch.TruncatedAt = &at
	// The loaded window no longer reaches the present; remote pages must
	// re-establish the newest bound.
	ch.NewestMessageAt = nil
	if ch.OldestMessageAt != nil && ch.OldestMessageAt.Before(at) {
		cp := at
		ch.OldestMessageAt = &cp
	}
	recomputePreview(tx, ch)
	recomputeLastMessageAt(tx, ch)
}

// HideChannel marks a channel hidden from channel lists. With clearHistory
// the loaded messages are dropped as well, as if the channel were freshly
// truncated now.
func (r *Repository) HideChannel(ctx context.Context, cid string, clearHistory bool) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		ch.Hidden = true
		if clearHistory {
			truncateChannel(tx, ch, nowUTC())
			updateDefaultSorting(ch)
		}
		return nil
	})
}

// ShowChannel clears the hidden flag.
func (r *Repository) ShowChannel(ctx context.Context, cid string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		ch.Hidden = false
		return nil
	})
}

// DeleteChannel removes the channel and everything hanging off it.
func (r *Repository) DeleteChannel(ctx context.Context, cid string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		tx.DeleteChannel(cid)
		return nil
	})
}

// SetWatching records presence churn from watch events.
func (r *Repository) SetWatching(ctx context.Context, cid, userID string, watching bool) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		if watching {
			ch.WatcherIDs[userID] = struct{}{}
		} else {
			delete(ch.WatcherIDs, userID)
		}
		ch.WatcherCount = len(ch.WatcherIDs)
		return nil
	})
}

// SetTyping records typing-indicator churn.
func (r *Repository) SetTyping(ctx context.Context, cid, userID string, typing bool) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		if typing {
			ch.TypingUserIDs[userID] = struct{}{}
		} else {
			delete(ch.TypingUserIDs, userID)
		}
		return nil
	})
}
