package model

import (
	"encoding/json"
	"time"
)

// MessageType mirrors the server-side message type enum.
type MessageType string

const (
	MessageTypeRegular   MessageType = "regular"
	MessageTypeReply     MessageType = "reply"
	MessageTypeSystem    MessageType = "system"
	MessageTypeEphemeral MessageType = "ephemeral"
	MessageTypeError     MessageType = "error"
	MessageTypeDeleted   MessageType = "deleted"
)

// LocalMessageState tracks a message's local-only lifecycle. A message with
// a pending state is owned by the local client and must not be overwritten
// by remote echoes until the local operation resolves.
type LocalMessageState string

const (
	LocalStateNone          LocalMessageState = ""
	LocalStatePendingSend   LocalMessageState = "pendingSend"
	LocalStateSendingFailed LocalMessageState = "sendingFailed"
	LocalStatePendingSync   LocalMessageState = "pendingSync"
	LocalStateSyncingFailed LocalMessageState = "syncingFailed"
)

// Message is the live entity for one unit of conversation content.
type Message struct {
	ID   string      `json:"id"`
	CID  string      `json:"cid"`
	Type MessageType `json:"type"`

	Text     string `json:"text"`
	AuthorID string `json:"author_id"`

	ParentMessageID string `json:"parent_message_id,omitempty"`
	QuotedMessageID string `json:"quoted_message_id,omitempty"`
	// ShowInChannel marks a thread reply that also appears in the
	// channel itself.
	ShowInChannel bool `json:"show_in_channel,omitempty"`

	ReplyCount int      `json:"reply_count"`
	ReplyIDs   []string `json:"reply_ids,omitempty"`

	MentionedUserIDs []string `json:"mentioned_user_ids,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	TextUpdatedAt *time.Time `json:"text_updated_at,omitempty"`

	LocalState LocalMessageState `json:"local_state,omitempty"`
	Draft      bool              `json:"draft,omitempty"`

	Pinned     bool       `json:"pinned"`
	PinnedByID string     `json:"pinned_by_id,omitempty"`
	PinnedAt   *time.Time `json:"pinned_at,omitempty"`
	PinExpires *time.Time `json:"pin_expires,omitempty"`

	// Reaction id lists maintained by the aggregation engine. Ordered by
	// insertion, no duplicates.
	LatestReactionIDs []string `json:"latest_reaction_ids,omitempty"`
	OwnReactionIDs    []string `json:"own_reaction_ids,omitempty"`

	AttachmentCount int `json:"attachment_count"`

	ExtraData     json.RawMessage `json:"extra_data,omitempty"`
	ExtraDataHash uint64          `json:"extra_data_hash,omitempty"`
}

// NewMessage returns a blank message entity for the given id.
func NewMessage(id string) *Message {
	return &Message{ID: id, Type: MessageTypeRegular}
}

func (m *Message) Ref() Ref {
	return Ref{Kind: KindMessage, Key: m.ID}
}

// PendingLocally reports whether the message is still owned by an in-flight
// local operation.
func (m *Message) PendingLocally() bool {
	return m.LocalState == LocalStatePendingSend || m.LocalState == LocalStatePendingSync
}

// Visible reports whether the message qualifies for channel preview and
// unread counting: delivered moderated content, not ephemeral, not a client
// error placeholder, not deleted, not a draft.
func (m *Message) Visible() bool {
	if m.Draft || m.DeletedAt != nil {
		return false
	}
	switch m.Type {
	case MessageTypeEphemeral, MessageTypeError, MessageTypeDeleted:
		return false
	}
	return true
}

// Clone returns a deep copy for transaction-local mutation.
func (m *Message) Clone() *Message {
	cp := *m
	cp.ReplyIDs = cloneStrings(m.ReplyIDs)
	cp.MentionedUserIDs = cloneStrings(m.MentionedUserIDs)
	cp.LatestReactionIDs = cloneStrings(m.LatestReactionIDs)
	cp.OwnReactionIDs = cloneStrings(m.OwnReactionIDs)
	cp.DeletedAt = cloneTime(m.DeletedAt)
	cp.TextUpdatedAt = cloneTime(m.TextUpdatedAt)
	cp.PinnedAt = cloneTime(m.PinnedAt)
	cp.PinExpires = cloneTime(m.PinExpires)
	cp.ExtraData = cloneRaw(m.ExtraData)
	return &cp
}
