package model

import (
	"fmt"
	"strconv"
)

// Kind identifies an entity family inside the store.
type Kind string

const (
	KindChannel           Kind = "channel"
	KindMessage           Kind = "message"
	KindUser              Kind = "user"
	KindMember            Kind = "member"
	KindChannelRead       Kind = "read"
	KindReaction          Kind = "reaction"
	KindReactionAggregate Kind = "aggregate"
	KindAttachment        Kind = "attachment"
)

// Ref is a (kind, natural key) pair identifying exactly one entity.
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.Key
}

// ChannelCID builds a channel's natural key from its type and id.
func ChannelCID(channelType, channelID string) string {
	return channelType + ":" + channelID
}

// Composite key builders. The "|" separator cannot appear in user, message
// or channel identifiers, so the composites stay collision free even though
// a cid itself contains ":".

func MemberKey(cid, userID string) string {
	return cid + "|" + userID
}

func ReadKey(cid, userID string) string {
	return cid + "|" + userID
}

func ReactionKey(messageID, userID, reactionType string) string {
	return messageID + "|" + userID + "|" + reactionType
}

func AggregateKey(messageID, reactionType string) string {
	return messageID + "|" + reactionType
}

func AttachmentKey(messageID string, index int) string {
	return messageID + "|" + strconv.Itoa(index)
}

func (r Ref) GoString() string {
	return fmt.Sprintf("model.Ref{%s %s}", r.Kind, r.Key)
}
