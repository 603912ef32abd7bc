package model

import "time"

// Member is one user's membership in one channel.
type Member struct {
	CID    string `json:"cid"`
	UserID string `json:"user_id"`

	ChannelRole string `json:"channel_role"`

	Banned       bool       `json:"banned"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`

	Invited          bool       `json:"invited"`
	InviteAcceptedAt *time.Time `json:"invite_accepted_at,omitempty"`
	InviteRejectedAt *time.Time `json:"invite_rejected_at,omitempty"`

	NotificationsMuted bool `json:"notifications_muted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMember returns a blank membership entity for (cid, user).
func NewMember(cid, userID string) *Member {
	return &Member{CID: cid, UserID: userID}
}

func (m *Member) Key() string {
	return MemberKey(m.CID, m.UserID)
}

func (m *Member) Ref() Ref {
	return Ref{Kind: KindMember, Key: m.Key()}
}

func (m *Member) Clone() *Member {
	cp := *m
	cp.BanExpiresAt = cloneTime(m.BanExpiresAt)
	cp.InviteAcceptedAt = cloneTime(m.InviteAcceptedAt)
	cp.InviteRejectedAt = cloneTime(m.InviteRejectedAt)
	return &cp
}
