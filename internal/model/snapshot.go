package model

import (
	"encoding/json"
	"time"
)

// Snapshot models are immutable value projections of live entities, handed
// to the UI/query layer. They are built by the store's read transactions
// with a bounded expansion depth: nested message relationships (quoted
// message, thread parent) past the limit resolve to nil instead of
// recursing further.

type ChannelModel struct {
	CID       string
	Type      string
	ChannelID string
	Name      string
	Image     string

	Frozen   bool
	Hidden   bool
	Disabled bool
	Cooldown int

	MemberCount int

	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
	LastMessageAt    *time.Time
	DefaultSortingAt time.Time
	OldestMessageAt  *time.Time
	NewestMessageAt  *time.Time

	CreatedBy *UserModel
	Preview   *MessageModel

	Members []*MemberModel
	Reads   []*ReadModel

	PinnedMessageIDs []string

	WatcherCount int

	Config    ChannelConfig
	ExtraData json.RawMessage
}

type MessageModel struct {
	ID   string
	CID  string
	Type MessageType

	Text     string
	Author   *UserModel
	AuthorID string

	Parent        *MessageModel
	QuotedMessage *MessageModel
	ShowInChannel bool

	ReplyCount       int
	MentionedUserIDs []string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
	TextUpdatedAt *time.Time

	LocalState LocalMessageState

	Pinned     bool
	PinnedBy   *UserModel
	PinnedAt   *time.Time
	PinExpires *time.Time

	Attachments     []*AttachmentModel
	LatestReactions []*ReactionModel
	OwnReactions    []*ReactionModel
	ReactionGroups  map[string]*ReactionGroupModel

	ExtraData json.RawMessage
}

type UserModel struct {
	ID     string
	Name   string
	Image  string
	Role   string
	Online bool
	Banned bool
	Teams  []string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActiveAt *time.Time

	ExtraData json.RawMessage
}

type MemberModel struct {
	CID         string
	UserID      string
	User        *UserModel
	ChannelRole string
	Banned      bool
	Invited     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ReadModel struct {
	CID               string
	UserID            string
	User              *UserModel
	LastReadAt        time.Time
	LastReadMessageID string
	UnreadCount       int
}

type ReactionModel struct {
	MessageID string
	UserID    string
	User      *UserModel
	Type      string
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
	ExtraData json.RawMessage
}

// ReactionGroupModel is the per-type tally surfaced on a message snapshot.
type ReactionGroupModel struct {
	Type            string
	SumScore        int
	Count           int
	FirstReactionAt time.Time
	LastReactionAt  time.Time
}

type AttachmentModel struct {
	MessageID         string
	Index             int
	Type              string
	Payload           json.RawMessage
	LocalState        AttachmentState
	Progress          float64
	LocalRelativePath string
}
