package model

import "time"

// ChannelRead is one user's read cursor for one channel. Unread counts are
// derived by comparing the cursor against message timestamps; the count
// stored here is the last value delivered or computed.
type ChannelRead struct {
	CID    string `json:"cid"`
	UserID string `json:"user_id"`

	LastReadAt        time.Time `json:"last_read_at"`
	LastReadMessageID string    `json:"last_read_message_id,omitempty"`
	UnreadCount       int       `json:"unread_count"`
}

// NewChannelRead returns a blank read cursor for (cid, user).
func NewChannelRead(cid, userID string) *ChannelRead {
	return &ChannelRead{CID: cid, UserID: userID}
}

func (r *ChannelRead) Key() string {
	return ReadKey(r.CID, r.UserID)
}

func (r *ChannelRead) Ref() Ref {
	return Ref{Kind: KindChannelRead, Key: r.Key()}
}

func (r *ChannelRead) Clone() *ChannelRead {
	cp := *r
	return &cp
}
