package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
	"github.com/Gopher0727/ChatSync/utils"
)

// maxNestedDepth bounds recursive upserts through quoted-message chains.
// Past the limit the nested payload is dropped and only the id reference is
// kept.
const maxNestedDepth = 2

type messageSaveOptions struct {
	// cid overrides an empty payload cid (target channel of the request).
	cid string
	// syncOwnReactions controls whether the payload's own-reaction set
	// replaces the local one.
	syncOwnReactions bool
	// depth is the current nested-upsert depth.
	depth int
}

// SaveMessage upserts one incoming message payload, applying the conflict
// guards before any field is written.
func (r *Repository) SaveMessage(ctx context.Context, sess *session.Session, p *payload.Message) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		cache.WarmMessages(tx, []*payload.Message{p})
		_, err := r.upsertMessage(ctx, tx, cache, sess, p, messageSaveOptions{syncOwnReactions: true})
		return err
	})
}

// SaveMessageList upserts a fetched message page for one channel and
// widens the channel's pagination window to cover it. Individual bad items
// are skipped and logged.
func (r *Repository) SaveMessageList(ctx context.Context, sess *session.Session, cid string, msgs []*payload.Message) error {
	return r.saveMessagePage(ctx, sess, cid, msgs, false)
}

// SaveMessagePage upserts a fetched mid-history page, for example after a
// jump to a search hit. Unlike SaveMessageList the page is known not to
// reach the present, so the newest pagination bound is established at the
// page maximum when the window previously reached the present; newer cached
// messages stay outside the window until truncation clears the bound.
func (r *Repository) SaveMessagePage(ctx context.Context, sess *session.Session, cid string, msgs []*payload.Message) error {
	return r.saveMessagePage(ctx, sess, cid, msgs, true)
}

func (r *Repository) saveMessagePage(ctx context.Context, sess *session.Session, cid string, msgs []*payload.Message, bounded bool) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		cache.WarmMessages(tx, msgs)
		if tx.Channel(cid) == nil {
			return ErrChannelNotFound
		}
		saved := r.upsertMessageList(ctx, tx, cache, sess, cid, msgs)
		r.finishChannelMessages(tx, cache, cid, saved, bounded)
		return nil
	})
}

func (r *Repository) upsertMessageList(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, sess *session.Session, cid string, msgs []*payload.Message) []*model.Message {
	saved := make([]*model.Message, 0, len(msgs))
	for _, p := range msgs {
		m, err := r.upsertMessage(ctx, tx, cache, sess, p, messageSaveOptions{cid: cid, syncOwnReactions: true})
		if err != nil {
			r.log.WarnContext(ctx, "message_upsert_skipped",
				zap.String("cid", cid), zap.Error(err))
			continue
		}
		saved = append(saved, m)
	}
	return saved
}

// finishChannelMessages runs the page-level derived maintenance after a
// batch of messages landed in one channel. A bounded page establishes the
// newest bound when the window previously reached the present; widening an
// already bounded window is the same either way.
func (r *Repository) finishChannelMessages(tx *store.WriteTx, cache *store.PreloadCache, cid string, saved []*model.Message, bounded bool) {
	if len(saved) == 0 {
		return
	}
	ch := cache.ChannelOrCreate(tx, cid)
	pageMin := saved[0].CreatedAt
	pageMax := saved[0].CreatedAt
	for _, m := range saved {
		pageMin = utils.EarlierTime(pageMin, m.CreatedAt)
		pageMax = utils.LaterTime(pageMax, m.CreatedAt)
		bumpLastMessageAt(ch, m)
		maybeUpdatePreview(tx, ch, m)
	}
	if bounded && ch.NewestMessageAt == nil {
		at := pageMax
		ch.NewestMessageAt = &at
	}
	widenBounds(ch, pageMin, pageMax)
}

// upsertMessage is the single-message merge. Guard order matters: a
// pending local message discards the whole payload, then a newer local
// edit discards it, and only then do fields flow.
func (r *Repository) upsertMessage(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, sess *session.Session, p *payload.Message, opts messageSaveOptions) (*model.Message, error) {
	if p == nil || p.ID == "" {
		return nil, ErrInvalidPayload
	}

	if existing := cache.Message(tx, p.ID); existing != nil {
		// Guard 1: a message still being locally originated wins over
		// any remote echo of itself.
		if existing.PendingLocally() {
			return existing, nil
		}
		// Guard 2: a local edit newer than the payload snapshot wins;
		// the whole stale payload is discarded.
		if existing.TextUpdatedAt != nil {
			payloadTextAt := p.UpdatedAt
			if p.MessageTextUpdatedAt != nil {
				payloadTextAt = *p.MessageTextUpdatedAt
			}
			if existing.TextUpdatedAt.After(payloadTextAt) {
				return existing, nil
			}
		}
	}

	m := cache.MessageOrCreate(tx, p.ID)

	cid := p.CID
	if cid == "" {
		cid = opts.cid
	}
	if cid == "" && m.CID == "" {
		return nil, fmt.Errorf("message %s: %w: no channel reference", p.ID, ErrInvalidPayload)
	}
	if cid != "" {
		m.CID = cid
	}

	m.Type = messageType(p.Type)
	m.Text = p.Text
	m.ReplyCount = p.ReplyCount
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.DeletedAt = cloneTimePtr(p.DeletedAt)
	m.TextUpdatedAt = cloneTimePtr(p.MessageTextUpdatedAt)
	m.ShowInChannel = p.ShowInChannel
	m.Draft = false
	// A remote snapshot of the message resolves any failed local state.
	m.LocalState = model.LocalStateNone
	m.ExtraData, m.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "message", p.ID)

	if p.User != nil {
		if u, err := r.upsertUser(ctx, tx, cache, p.User); err == nil {
			m.AuthorID = u.ID
		}
	}

	m.MentionedUserIDs = m.MentionedUserIDs[:0]
	for _, up := range p.MentionedUsers {
		if u, err := r.upsertUser(ctx, tx, cache, up); err == nil {
			m.MentionedUserIDs = utils.AppendUnique(m.MentionedUserIDs, u.ID)
		}
	}

	// Pinned sub-object: explicit absence clears.
	if p.Pinned {
		m.Pinned = true
		m.PinnedAt = cloneTimePtr(p.PinnedAt)
		m.PinExpires = cloneTimePtr(p.PinExpires)
		if p.PinnedBy != nil {
			if u, err := r.upsertUser(ctx, tx, cache, p.PinnedBy); err == nil {
				m.PinnedByID = u.ID
			}
		}
	} else {
		m.Pinned = false
		m.PinnedByID = ""
		m.PinnedAt = nil
		m.PinExpires = nil
	}

	// Quoted sub-object: nested payloads recurse with a depth bound;
	// explicit absence clears the reference.
	switch {
	case p.QuotedMessage != nil && opts.depth < maxNestedDepth:
		q, err := r.upsertMessage(ctx, tx, cache, sess, p.QuotedMessage, messageSaveOptions{
			cid:              cid,
			syncOwnReactions: opts.syncOwnReactions,
			depth:            opts.depth + 1,
		})
		if err == nil {
			m.QuotedMessageID = q.ID
		}
	case p.QuotedMessageID != "":
		m.QuotedMessageID = p.QuotedMessageID
	default:
		m.QuotedMessageID = ""
	}

	// Thread parent back-reference. Inserting only when absent keeps a
	// re-save from dirtying the parent for nothing.
	m.ParentMessageID = p.ParentID
	if p.ParentID != "" {
		parent := cache.MessageOrCreate(tx, p.ParentID)
		if parent.CID == "" {
			parent.CID = m.CID
		}
		if !utils.Contains(parent.ReplyIDs, m.ID) {
			parent.ReplyIDs = append(parent.ReplyIDs, m.ID)
			parent.ReplyCount++
		}
	}

	if err := r.reconcileAttachments(ctx, tx, m, p.Attachments); err != nil {
		return nil, err
	}
	r.replacePayloadReactions(ctx, tx, cache, sess, m, p, opts.syncOwnReactions)

	// Channel back-references and derived views.
	ch := cache.ChannelOrCreate(tx, m.CID)
	if m.ParentMessageID == "" || m.ShowInChannel {
		ch.MessageIDs[m.ID] = struct{}{}
	}
	syncPinSet(ch, m)
	if opts.depth == 0 {
		bumpLastMessageAt(ch, m)
		maybeUpdatePreview(tx, ch, m)
		if ch.NewestMessageAt != nil && m.CreatedAt.After(*ch.NewestMessageAt) && m.DeletedAt == nil {
			at := m.CreatedAt
			ch.NewestMessageAt = &at
		}
	}
	return m, nil
}

func messageType(t string) model.MessageType {
	switch model.MessageType(t) {
	case model.MessageTypeRegular, model.MessageTypeReply, model.MessageTypeSystem,
		model.MessageTypeEphemeral, model.MessageTypeError, model.MessageTypeDeleted:
		return model.MessageType(t)
	}
	return model.MessageTypeRegular
}

// CreateNewMessage creates a locally originated outgoing message in
// pendingSend state. It stays authoritative over remote echoes of its own
// id until ResolveLocalMessage moves it out of the pending state.
func (r *Repository) CreateNewMessage(ctx context.Context, sess *session.Session, p *payload.Message) error {
	if !sess.Valid() {
		return ErrNoCurrentUser
	}
	if p == nil || p.ID == "" || p.CID == "" {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		if tx.Channel(p.CID) == nil {
			return ErrChannelNotFound
		}
		m, err := r.upsertMessage(ctx, tx, cache, sess, p, messageSaveOptions{syncOwnReactions: false})
		if err != nil {
			return err
		}
		m.LocalState = model.LocalStatePendingSend
		return nil
	})
}

// EditMessage applies a local text edit. The message enters pendingSync
// and its textUpdatedAt moves forward, so any remote payload carrying an
// older snapshot of the message is discarded until the edit syncs.
func (r *Repository) EditMessage(ctx context.Context, sess *session.Session, id, text string) error {
	if !sess.Valid() {
		return ErrNoCurrentUser
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(id)
		if m == nil {
			return ErrMessageNotFound
		}
		now := nowUTC()
		m.Text = text
		m.TextUpdatedAt = &now
		m.UpdatedAt = now
		if !m.PendingLocally() {
			m.LocalState = model.LocalStatePendingSync
		}
		return nil
	})
}

// ResolveLocalMessage moves a pending message into its next local state:
// LocalStateNone once the server confirmed it, or a failed state.
func (r *Repository) ResolveLocalMessage(ctx context.Context, id string, state model.LocalMessageState) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(id)
		if m == nil {
			return ErrMessageNotFound
		}
		m.LocalState = state
		return nil
	})
}

// DeleteMessage removes a message. A hard delete drops the entity and its
// children; a soft delete keeps a tombstone so the UI can render "message
// deleted".
func (r *Repository) DeleteMessage(ctx context.Context, id string, hard bool) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(id)
		if m == nil {
			return ErrMessageNotFound
		}
		cid := m.CID
		if hard {
			tx.DeleteMessage(id)
		} else {
			now := nowUTC()
			m.DeletedAt = &now
			m.Type = model.MessageTypeDeleted
			m.Pinned = false
			m.PinnedByID = ""
			m.PinnedAt = nil
			m.PinExpires = nil
		}
		if ch := tx.Channel(cid); ch != nil {
			if !hard {
				delete(ch.PinnedMessageIDs, id)
			}
			if ch.PreviewMessageID == id || ch.PreviewMessageID == "" {
				recomputePreview(tx, ch)
			}
		}
		return nil
	})
}

// SaveThread upserts a thread payload: the parent message plus a page of
// replies.
func (r *Repository) SaveThread(ctx context.Context, sess *session.Session, p *payload.Thread) error {
	if p == nil || (p.ParentMessage == nil && p.ParentMessageID == "") {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		cache.WarmMessages(tx, append([]*payload.Message{p.ParentMessage}, p.LatestReplies...))

		var cid string
		if p.Channel != nil {
			ch, err := r.upsertChannel(ctx, tx, cache, p.Channel)
			if err != nil {
				return err
			}
			cid = ch.CID
		}

		parentID := p.ParentMessageID
		if p.ParentMessage != nil {
			parent, err := r.upsertMessage(ctx, tx, cache, sess, p.ParentMessage, messageSaveOptions{cid: cid, syncOwnReactions: true})
			if err != nil {
				return err
			}
			parentID = parent.ID
		} else if tx.Message(parentID) == nil {
			return fmt.Errorf("thread parent %s: %w", parentID, ErrMessageNotFound)
		}

		for _, rp := range p.LatestReplies {
			if rp.ParentID == "" {
				rp.ParentID = parentID
			}
			if _, err := r.upsertMessage(ctx, tx, cache, sess, rp, messageSaveOptions{cid: cid, syncOwnReactions: true}); err != nil {
				r.log.WarnContext(ctx, "thread_reply_skipped",
					zap.String("parent", parentID), zap.Error(err))
			}
		}
		return nil
	})
}
