package payload

import (
	"time"

	"github.com/google/uuid"
)

// Local-action constructors build payloads for writes that originate on this
// device, before the server has seen them. Ids are client-generated UUIDs;
// the server echoes them back so the upsert engine can match the echo to the
// pending local entity.

// NewLocalMessage builds an outgoing message payload.
func NewLocalMessage(cid string, author *User, text string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:        uuid.New().String(),
		CID:       cid,
		Type:      "regular",
		Text:      text,
		User:      author,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewLocalReply builds an outgoing thread reply payload.
func NewLocalReply(cid string, author *User, parentID, text string, showInChannel bool) *Message {
	m := NewLocalMessage(cid, author, text)
	m.ParentID = parentID
	m.ShowInChannel = showInChannel
	return m
}

// NewLocalDraft builds a draft message payload. Drafts live only in the
// local store until promoted to an outgoing message.
func NewLocalDraft(cid string, author *User, text string) *Message {
	return NewLocalMessage(cid, author, text)
}

// NewLocalReaction builds an optimistic reaction payload.
func NewLocalReaction(messageID string, user *User, reactionType string, score int) *Reaction {
	if score <= 0 {
		score = 1
	}
	now := time.Now().UTC()
	return &Reaction{
		MessageID: messageID,
		Type:      reactionType,
		Score:     score,
		User:      user,
		UserID:    user.ID,
		Version:   uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
