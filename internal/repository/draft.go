package repository

import (
	"context"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// SaveDraft stores the channel's draft message, replacing any previous
// draft. A draft is a real message entity flagged so it never surfaces in
// previews, unread counts or pagination.
func (r *Repository) SaveDraft(ctx context.Context, sess *session.Session, p *payload.Message) error {
	if !sess.Valid() {
		return ErrNoCurrentUser
	}
	if p == nil || p.ID == "" || p.CID == "" {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(p.CID)
		if ch == nil {
			return ErrChannelNotFound
		}
		if ch.DraftMessageID != "" && ch.DraftMessageID != p.ID {
			tx.DeleteMessage(ch.DraftMessageID)
		}
		m := tx.MessageOrCreate(p.ID)
		m.CID = p.CID
		m.Type = model.MessageTypeRegular
		m.Text = p.Text
		m.AuthorID = sess.UserID
		m.ParentMessageID = p.ParentID
		m.QuotedMessageID = p.QuotedMessageID
		m.CreatedAt = p.CreatedAt
		m.UpdatedAt = nowUTC()
		m.Draft = true
		m.ExtraData, m.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "message", p.ID)
		ch.DraftMessageID = m.ID
		return nil
	})
}

// DeleteDraft discards the channel's draft, if any.
func (r *Repository) DeleteDraft(ctx context.Context, cid string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		ch := tx.Channel(cid)
		if ch == nil {
			return ErrChannelNotFound
		}
		if ch.DraftMessageID != "" {
			tx.DeleteMessage(ch.DraftMessageID)
			ch.DraftMessageID = ""
		}
		return nil
	})
}
