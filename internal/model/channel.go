package model

import (
	"encoding/json"
	"time"
)

// ChannelConfig carries the per-channel feature switches delivered with
// channel payloads.
type ChannelConfig struct {
	RepliesEnabled      bool `json:"replies_enabled"`
	ReactionsEnabled    bool `json:"reactions_enabled"`
	TypingEventsEnabled bool `json:"typing_events_enabled"`
	ReadEventsEnabled   bool `json:"read_events_enabled"`
	MaxMessageLength    int  `json:"max_message_length"`
}

// Channel is the live entity for one conversation. Relationship sets hold
// natural keys only; the arena resolves them on demand.
type Channel struct {
	CID       string `json:"cid"`
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`

	Name        string `json:"name"`
	Image       string `json:"image"`
	CreatedByID string `json:"created_by_id"`

	Frozen   bool `json:"frozen"`
	Hidden   bool `json:"hidden"`
	Disabled bool `json:"disabled"`
	Cooldown int  `json:"cooldown"`

	MemberCount int `json:"member_count"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	TruncatedAt   *time.Time `json:"truncated_at,omitempty"`

	// DefaultSortingAt is the derived sort key: max(lastMessageAt,
	// createdAt), clamped back to createdAt for distant-past values.
	DefaultSortingAt time.Time `json:"default_sorting_at"`

	// Pagination bounds. OldestMessageAt only moves backwards; a
	// truncation clears NewestMessageAt.
	OldestMessageAt *time.Time `json:"oldest_message_at,omitempty"`
	NewestMessageAt *time.Time `json:"newest_message_at,omitempty"`

	PreviewMessageID string `json:"preview_message_id"`
	DraftMessageID   string `json:"draft_message_id"`

	MessageIDs       map[string]struct{} `json:"message_ids"`
	MemberIDs        map[string]struct{} `json:"member_ids"`
	ReadUserIDs      map[string]struct{} `json:"read_user_ids"`
	PinnedMessageIDs map[string]struct{} `json:"pinned_message_ids"`

	// Ephemeral sets, wiped by the cold-start reset pass.
	WatcherIDs    map[string]struct{} `json:"watcher_ids,omitempty"`
	TypingUserIDs map[string]struct{} `json:"typing_user_ids,omitempty"`
	WatcherCount  int                 `json:"watcher_count,omitempty"`

	Config ChannelConfig `json:"config"`

	ExtraData     json.RawMessage `json:"extra_data,omitempty"`
	ExtraDataHash uint64          `json:"extra_data_hash,omitempty"`
}

// NewChannel returns a blank channel entity for the given cid.
func NewChannel(cid string) *Channel {
	return &Channel{
		CID:              cid,
		MessageIDs:       map[string]struct{}{},
		MemberIDs:        map[string]struct{}{},
		ReadUserIDs:      map[string]struct{}{},
		PinnedMessageIDs: map[string]struct{}{},
		WatcherIDs:       map[string]struct{}{},
		TypingUserIDs:    map[string]struct{}{},
	}
}

func (c *Channel) Ref() Ref {
	return Ref{Kind: KindChannel, Key: c.CID}
}

// Clone returns a deep copy. Transactions mutate clones, never the canonical
// instance.
func (c *Channel) Clone() *Channel {
	cp := *c
	cp.MessageIDs = cloneSet(c.MessageIDs)
	cp.MemberIDs = cloneSet(c.MemberIDs)
	cp.ReadUserIDs = cloneSet(c.ReadUserIDs)
	cp.PinnedMessageIDs = cloneSet(c.PinnedMessageIDs)
	cp.WatcherIDs = cloneSet(c.WatcherIDs)
	cp.TypingUserIDs = cloneSet(c.TypingUserIDs)
	cp.DeletedAt = cloneTime(c.DeletedAt)
	cp.LastMessageAt = cloneTime(c.LastMessageAt)
	cp.TruncatedAt = cloneTime(c.TruncatedAt)
	cp.OldestMessageAt = cloneTime(c.OldestMessageAt)
	cp.NewestMessageAt = cloneTime(c.NewestMessageAt)
	cp.ExtraData = cloneRaw(c.ExtraData)
	return &cp
}

func cloneSet(m map[string]struct{}) map[string]struct{} {
	if m == nil {
		return nil
	}
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
