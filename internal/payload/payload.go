// Package payload defines the decoded payload shapes the core accepts from
// the network layer and from local-action constructors. Wire decoding itself
// happens upstream; everything here is already-parsed data.
package payload

import (
	"encoding/json"
	"time"
)

// ChannelList is a channel-list query response.
type ChannelList struct {
	Channels []*ChannelDetail `json:"channels"`
}

// ChannelDetail is one channel query response: the channel itself plus the
// page of messages, members, reads and watchers delivered with it.
type ChannelDetail struct {
	Channel        *Channel   `json:"channel"`
	Messages       []*Message `json:"messages"`
	PinnedMessages []*Message `json:"pinned_messages"`
	Members        []*Member  `json:"members"`
	Reads          []*Read    `json:"read"`
	Watchers       []*User    `json:"watchers"`
	WatcherCount   int        `json:"watcher_count"`
}

type Channel struct {
	CID       string `json:"cid"`
	Type      string `json:"type"`
	ChannelID string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`

	CreatedBy *User `json:"created_by"`

	Frozen   bool `json:"frozen"`
	Hidden   bool `json:"hidden"`
	Disabled bool `json:"disabled"`
	Cooldown int  `json:"cooldown"`

	MemberCount int       `json:"member_count"`
	Members     []*Member `json:"members"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
	TruncatedAt   *time.Time `json:"truncated_at"`

	Config *ChannelConfig `json:"config"`

	ExtraData json.RawMessage `json:"extra_data"`
}

type ChannelConfig struct {
	RepliesEnabled      bool `json:"replies"`
	ReactionsEnabled    bool `json:"reactions"`
	TypingEventsEnabled bool `json:"typing_events"`
	ReadEventsEnabled   bool `json:"read_events"`
	MaxMessageLength    int  `json:"max_message_length"`
}

type Message struct {
	ID   string `json:"id"`
	CID  string `json:"cid"`
	Type string `json:"type"`
	Text string `json:"text"`

	User *User `json:"user"`

	ParentID        string   `json:"parent_id"`
	ShowInChannel   bool     `json:"show_in_channel"`
	QuotedMessageID string   `json:"quoted_message_id"`
	QuotedMessage   *Message `json:"quoted_message"`

	MentionedUsers []*User `json:"mentioned_users"`

	ReplyCount int `json:"reply_count"`

	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at"`
	MessageTextUpdatedAt *time.Time `json:"message_text_updated_at"`

	Pinned     bool       `json:"pinned"`
	PinnedBy   *User      `json:"pinned_by"`
	PinnedAt   *time.Time `json:"pinned_at"`
	PinExpires *time.Time `json:"pin_expires"`

	LatestReactions []*Reaction               `json:"latest_reactions"`
	OwnReactions    []*Reaction               `json:"own_reactions"`
	ReactionGroups  map[string]*ReactionGroup `json:"reaction_groups"`

	Attachments []*Attachment `json:"attachments"`

	ExtraData json.RawMessage `json:"extra_data"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	Score     int    `json:"score"`

	User   *User  `json:"user"`
	UserID string `json:"user_id"`

	Version string `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExtraData json.RawMessage `json:"extra_data"`
}

// ReactionGroup is the server-computed per-type tally delivered with a
// message payload.
type ReactionGroup struct {
	SumScores       int       `json:"sum_scores"`
	Count           int       `json:"count"`
	FirstReactionAt time.Time `json:"first_reaction_at"`
	LastReactionAt  time.Time `json:"last_reaction_at"`
}

// Attachment is delivered as a type tag plus an opaque blob; the core never
// interprets the blob.
type Attachment struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`

	Online bool `json:"online"`
	Banned bool `json:"banned"`

	Teams []string `json:"teams"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at"`
	LastActiveAt  *time.Time `json:"last_active_at"`

	ExtraData json.RawMessage `json:"extra_data"`
}

type Member struct {
	User   *User  `json:"user"`
	UserID string `json:"user_id"`

	ChannelRole string `json:"channel_role"`

	Banned       bool       `json:"banned"`
	BanExpiresAt *time.Time `json:"ban_expires"`

	Invited          bool       `json:"invited"`
	InviteAcceptedAt *time.Time `json:"invite_accepted_at"`
	InviteRejectedAt *time.Time `json:"invite_rejected_at"`

	NotificationsMuted bool `json:"notifications_muted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Read struct {
	User              *User     `json:"user"`
	LastReadAt        time.Time `json:"last_read"`
	LastReadMessageID string    `json:"last_read_message_id"`
	UnreadMessages    int       `json:"unread_messages"`
}

// Thread is a thread query response: the parent message plus a page of its
// replies.
type Thread struct {
	ParentMessageID string     `json:"parent_message_id"`
	ParentMessage   *Message   `json:"parent_message"`
	Channel         *Channel   `json:"channel"`
	LatestReplies   []*Message `json:"latest_replies"`
}

// MessageList is a message page for one channel.
type MessageList struct {
	Messages []*Message `json:"messages"`
}
