package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
)

// Persistence layout: one pebble key per entity, "<kind>/<natural key>",
// value is the JSON-encoded entity. A committed transaction applies all of
// its writes as one synced pebble batch, so durability is as atomic as the
// in-memory swap.

func persistKey(ref model.Ref) []byte {
	return []byte(string(ref.Kind) + "/" + ref.Key)
}

// loadAll rehydrates the arena from pebble. Entries that fail to decode are
// logged and skipped rather than failing the open; one corrupt row must not
// brick the whole local replica.
func (db *DB) loadAll() error {
	iter, err := db.pdb.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		kind, natural, ok := strings.Cut(key, "/")
		if !ok {
			skipped++
			continue
		}
		if err := db.loadOne(model.Kind(kind), natural, iter.Value()); err != nil {
			db.log.Warn("load_entity_skipped", zap.String("key", key), zap.Error(err))
			skipped++
		}
	}
	if skipped > 0 {
		db.log.Warn("load_entities_skipped", zap.Int("count", skipped))
	}
	return iter.Error()
}

func (db *DB) loadOne(kind model.Kind, key string, data []byte) error {
	switch kind {
	case model.KindChannel:
		var e model.Channel
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		if e.MessageIDs == nil {
			e.MessageIDs = map[string]struct{}{}
		}
		if e.MemberIDs == nil {
			e.MemberIDs = map[string]struct{}{}
		}
		if e.ReadUserIDs == nil {
			e.ReadUserIDs = map[string]struct{}{}
		}
		if e.PinnedMessageIDs == nil {
			e.PinnedMessageIDs = map[string]struct{}{}
		}
		if e.WatcherIDs == nil {
			e.WatcherIDs = map[string]struct{}{}
		}
		if e.TypingUserIDs == nil {
			e.TypingUserIDs = map[string]struct{}{}
		}
		db.state.channels[key] = &e
	case model.KindMessage:
		var e model.Message
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.messages[key] = &e
	case model.KindUser:
		var e model.User
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.users[key] = &e
	case model.KindMember:
		var e model.Member
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.members[key] = &e
	case model.KindChannelRead:
		var e model.ChannelRead
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.reads[key] = &e
	case model.KindReaction:
		var e model.Reaction
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.reactions[key] = &e
	case model.KindReactionAggregate:
		var e model.ReactionAggregate
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.aggregates[key] = &e
	case model.KindAttachment:
		var e model.Attachment
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		db.state.attachments[key] = &e
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}
