package repository

import (
	"context"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// RequestBody projects a stored message back into the outbound payload
// shape, for resending a failed message or syncing a local edit. Derived
// and server-owned fields (reactions, reply counts, pin metadata) are left
// out; the server recomputes them.
func (r *Repository) RequestBody(ctx context.Context, messageID string) (*payload.Message, error) {
	var body *payload.Message
	err := r.db.View(func(tx *store.ReadTx) error {
		m := tx.Message(messageID)
		if m == nil {
			return ErrMessageNotFound
		}
		body = &payload.Message{
			ID:            m.ID,
			CID:           m.CID,
			Type:          string(m.Type),
			Text:          m.Text,
			ParentID:      parentID(m),
			ShowInChannel: m.ShowInChannel,

			QuotedMessageID: quotedID(m),

			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			ExtraData: m.ExtraData,
		}
		if m.Author != nil {
			body.User = &payload.User{ID: m.Author.ID}
		}
		for _, u := range mentionedUsers(m) {
			body.MentionedUsers = append(body.MentionedUsers, u)
		}
		for _, a := range m.Attachments {
			body.Attachments = append(body.Attachments, &payload.Attachment{
				Type:    a.Type,
				Payload: a.Payload,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func parentID(m *model.MessageModel) string {
	if m.Parent != nil {
		return m.Parent.ID
	}
	return ""
}

func quotedID(m *model.MessageModel) string {
	if m.QuotedMessage != nil {
		return m.QuotedMessage.ID
	}
	return ""
}

func mentionedUsers(m *model.MessageModel) []*payload.User {
	out := make([]*payload.User, 0, len(m.MentionedUserIDs))
	for _, id := range m.MentionedUserIDs {
		out = append(out, &payload.User{ID: id})
	}
	return out
}
