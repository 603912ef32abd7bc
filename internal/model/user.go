package model

import (
	"encoding/json"
	"time"
)

// User is the live entity for a participant profile. Users are shared
// references: deleting a message or channel never cascades into them.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`

	// Online is ephemeral presence state, wiped on cold start.
	Online bool `json:"online,omitempty"`
	Banned bool `json:"banned"`

	Teams []string `json:"teams,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`

	ExtraData     json.RawMessage `json:"extra_data,omitempty"`
	ExtraDataHash uint64          `json:"extra_data_hash,omitempty"`
}

// NewUser returns a blank user entity for the given id.
func NewUser(id string) *User {
	return &User{ID: id}
}

func (u *User) Ref() Ref {
	return Ref{Kind: KindUser, Key: u.ID}
}

func (u *User) Clone() *User {
	cp := *u
	cp.Teams = cloneStrings(u.Teams)
	cp.DeactivatedAt = cloneTime(u.DeactivatedAt)
	cp.LastActiveAt = cloneTime(u.LastActiveAt)
	cp.ExtraData = cloneRaw(u.ExtraData)
	return &cp
}
