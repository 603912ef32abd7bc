package model

import (
	"encoding/json"
	"time"
)

// Reaction is one user's reaction of one type on one message.
type Reaction struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`

	Score int `json:"score"`

	// Version is an optional optimistic-concurrency token. A removal
	// carrying a non-matching version is a no-op.
	Version string `json:"version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ExtraData     json.RawMessage `json:"extra_data,omitempty"`
	ExtraDataHash uint64          `json:"extra_data_hash,omitempty"`
}

// NewReaction returns a blank reaction entity for (message, user, type).
func NewReaction(messageID, userID, reactionType string) *Reaction {
	return &Reaction{MessageID: messageID, UserID: userID, Type: reactionType, Score: 1}
}

func (r *Reaction) Key() string {
	return ReactionKey(r.MessageID, r.UserID, r.Type)
}

func (r *Reaction) Ref() Ref {
	return Ref{Kind: KindReaction, Key: r.Key()}
}

func (r *Reaction) Clone() *Reaction {
	cp := *r
	cp.ExtraData = cloneRaw(r.ExtraData)
	return &cp
}

// ReactionAggregate is the per-(message, type) tally maintained
// incrementally by the aggregation engine. It exists only while at least
// one live reaction of its type exists.
type ReactionAggregate struct {
	MessageID string `json:"message_id"`
	Type      string `json:"type"`

	SumScore int `json:"sum_score"`
	Count    int `json:"count"`

	FirstReactionAt time.Time `json:"first_reaction_at"`
	LastReactionAt  time.Time `json:"last_reaction_at"`
}

// NewReactionAggregate returns a zeroed aggregate for (message, type).
func NewReactionAggregate(messageID, reactionType string) *ReactionAggregate {
	return &ReactionAggregate{MessageID: messageID, Type: reactionType}
}

func (a *ReactionAggregate) Key() string {
	return AggregateKey(a.MessageID, a.Type)
}

func (a *ReactionAggregate) Ref() Ref {
	return Ref{Kind: KindReactionAggregate, Key: a.Key()}
}

func (a *ReactionAggregate) Clone() *ReactionAggregate {
	cp := *a
	return &cp
}
