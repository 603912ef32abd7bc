package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/utils"
)

// WriteTx is the single write transaction. Entities are cloned into a
// transaction-local overlay on first access, so every lookup of the same
// key within one transaction returns the same instance, and a rollback is
// just dropping the overlay. Nothing touches canonical state until commit.
type WriteTx struct {
	db      *DB
	overlay *state
	deleted map[model.Ref]struct{}
	marked  map[model.Ref]struct{}
	done    bool
}

func newWriteTx(db *DB) *WriteTx {
	return &WriteTx{
		db:      db,
		overlay: newState(),
		deleted: map[model.Ref]struct{}{},
		marked:  map[model.Ref]struct{}{},
	}
}

func (tx *WriteTx) discard() {
	tx.overlay = nil
	tx.deleted = nil
	tx.marked = nil
	tx.done = true
}

// MarkChanged forces the entity into this transaction's dirty set even if
// none of its own fields were written. This is the first-class replacement
// for the "write a field to itself" invalidation trick.
func (tx *WriteTx) MarkChanged(ref model.Ref) {
	tx.marked[ref] = struct{}{}
}

func (tx *WriteTx) isDeleted(ref model.Ref) bool {
	_, ok := tx.deleted[ref]
	return ok
}

func (tx *WriteTx) deleteRef(ref model.Ref) {
	tx.deleted[ref] = struct{}{}
	switch ref.Kind {
	case model.KindChannel:
		delete(tx.overlay.channels, ref.Key)
	case model.KindMessage:
		delete(tx.overlay.messages, ref.Key)
	case model.KindUser:
		delete(tx.overlay.users, ref.Key)
	case model.KindMember:
		delete(tx.overlay.members, ref.Key)
	case model.KindChannelRead:
		delete(tx.overlay.reads, ref.Key)
	case model.KindReaction:
		delete(tx.overlay.reactions, ref.Key)
	case model.KindReactionAggregate:
		delete(tx.overlay.aggregates, ref.Key)
	case model.KindAttachment:
		delete(tx.overlay.attachments, ref.Key)
	}
}

// ---- typed accessors -------------------------------------------------------

// Channel returns the live channel for cid, or nil.
func (tx *WriteTx) Channel(cid string) *model.Channel {
	ref := model.Ref{Kind: model.KindChannel, Key: cid}
	if tx.isDeleted(ref) {
		return nil
	}
	if c, ok := tx.overlay.channels[cid]; ok {
		return c
	}
	if c, ok := tx.db.state.channels[cid]; ok {
		cp := c.Clone()
		tx.overlay.channels[cid] = cp
		return cp
	}
	return nil
}

// ChannelOrCreate returns the unique live channel for cid, creating a blank
// one if absent. Creation materializes only if the transaction commits.
func (tx *WriteTx) ChannelOrCreate(cid string) *model.Channel {
	if c := tx.Channel(cid); c != nil {
		return c
	}
	delete(tx.deleted, model.Ref{Kind: model.KindChannel, Key: cid})
	c := model.NewChannel(cid)
	tx.overlay.channels[cid] = c
	return c
}

func (tx *WriteTx) Message(id string) *model.Message {
	ref := model.Ref{Kind: model.KindMessage, Key: id}
	if tx.isDeleted(ref) {
		return nil
	}
	if m, ok := tx.overlay.messages[id]; ok {
		return m
	}
	if m, ok := tx.db.state.messages[id]; ok {
		cp := m.Clone()
		tx.overlay.messages[id] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) MessageOrCreate(id string) *model.Message {
	if m := tx.Message(id); m != nil {
		return m
	}
	delete(tx.deleted, model.Ref{Kind: model.KindMessage, Key: id})
	m := model.NewMessage(id)
	tx.overlay.messages[id] = m
	return m
}

func (tx *WriteTx) User(id string) *model.User {
	ref := model.Ref{Kind: model.KindUser, Key: id}
	if tx.isDeleted(ref) {
		return nil
	}
	if u, ok := tx.overlay.users[id]; ok {
		return u
	}
	if u, ok := tx.db.state.users[id]; ok {
		cp := u.Clone()
		tx.overlay.users[id] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) UserOrCreate(id string) *model.User {
	if u := tx.User(id); u != nil {
		return u
	}
	delete(tx.deleted, model.Ref{Kind: model.KindUser, Key: id})
	u := model.NewUser(id)
	tx.overlay.users[id] = u
	return u
}

func (tx *WriteTx) Member(cid, userID string) *model.Member {
	return tx.memberByKey(model.MemberKey(cid, userID))
}

func (tx *WriteTx) memberByKey(key string) *model.Member {
	ref := model.Ref{Kind: model.KindMember, Key: key}
	if tx.isDeleted(ref) {
		return nil
	}
	if m, ok := tx.overlay.members[key]; ok {
		return m
	}
	if m, ok := tx.db.state.members[key]; ok {
		cp := m.Clone()
		tx.overlay.members[key] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) MemberOrCreate(cid, userID string) *model.Member {
	if m := tx.Member(cid, userID); m != nil {
		return m
	}
	key := model.MemberKey(cid, userID)
	delete(tx.deleted, model.Ref{Kind: model.KindMember, Key: key})
	m := model.NewMember(cid, userID)
	tx.overlay.members[key] = m
	return m
}

func (tx *WriteTx) ChannelRead(cid, userID string) *model.ChannelRead {
	return tx.readByKey(model.ReadKey(cid, userID))
}

func (tx *WriteTx) readByKey(key string) *model.ChannelRead {
	ref := model.Ref{Kind: model.KindChannelRead, Key: key}
	if tx.isDeleted(ref) {
		return nil
	}
	if r, ok := tx.overlay.reads[key]; ok {
		return r
	}
	if r, ok := tx.db.state.reads[key]; ok {
		cp := r.Clone()
		tx.overlay.reads[key] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) ChannelReadOrCreate(cid, userID string) *model.ChannelRead {
	if r := tx.ChannelRead(cid, userID); r != nil {
		return r
	}
	key := model.ReadKey(cid, userID)
	delete(tx.deleted, model.Ref{Kind: model.KindChannelRead, Key: key})
	r := model.NewChannelRead(cid, userID)
	tx.overlay.reads[key] = r
	return r
}

func (tx *WriteTx) Reaction(messageID, userID, reactionType string) *model.Reaction {
	return tx.reactionByKey(model.ReactionKey(messageID, userID, reactionType))
}

func (tx *WriteTx) reactionByKey(key string) *model.Reaction {
	ref := model.Ref{Kind: model.KindReaction, Key: key}
	if tx.isDeleted(ref) {
		return nil
	}
	if r, ok := tx.overlay.reactions[key]; ok {
		return r
	}
	if r, ok := tx.db.state.reactions[key]; ok {
		cp := r.Clone()
		tx.overlay.reactions[key] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) ReactionOrCreate(messageID, userID, reactionType string) *model.Reaction {
	if r := tx.Reaction(messageID, userID, reactionType); r != nil {
		return r
	}
	key := model.ReactionKey(messageID, userID, reactionType)
	delete(tx.deleted, model.Ref{Kind: model.KindReaction, Key: key})
	r := model.NewReaction(messageID, userID, reactionType)
	tx.overlay.reactions[key] = r
	return r
}

func (tx *WriteTx) Aggregate(messageID, reactionType string) *model.ReactionAggregate {
	return tx.aggregateByKey(model.AggregateKey(messageID, reactionType))
}

func (tx *WriteTx) aggregateByKey(key string) *model.ReactionAggregate {
	ref := model.Ref{Kind: model.KindReactionAggregate, Key: key}
	if tx.isDeleted(ref) {
		return nil
	}
	if a, ok := tx.overlay.aggregates[key]; ok {
		return a
	}
	if a, ok := tx.db.state.aggregates[key]; ok {
		cp := a.Clone()
		tx.overlay.aggregates[key] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) AggregateOrCreate(messageID, reactionType string) *model.ReactionAggregate {
	if a := tx.Aggregate(messageID, reactionType); a != nil {
		return a
	}
	key := model.AggregateKey(messageID, reactionType)
	delete(tx.deleted, model.Ref{Kind: model.KindReactionAggregate, Key: key})
	a := model.NewReactionAggregate(messageID, reactionType)
	tx.overlay.aggregates[key] = a
	return a
}

func (tx *WriteTx) Attachment(messageID string, index int) *model.Attachment {
	return tx.attachmentByKey(model.AttachmentKey(messageID, index))
}

func (tx *WriteTx) attachmentByKey(key string) *model.Attachment {
	ref := model.Ref{Kind: model.KindAttachment, Key: key}
	if tx.isDeleted(ref) {
		return nil
	}
	if a, ok := tx.overlay.attachments[key]; ok {
		return a
	}
	if a, ok := tx.db.state.attachments[key]; ok {
		cp := a.Clone()
		tx.overlay.attachments[key] = cp
		return cp
	}
	return nil
}

func (tx *WriteTx) AttachmentOrCreate(messageID string, index int) *model.Attachment {
	if a := tx.Attachment(messageID, index); a != nil {
		return a
	}
	key := model.AttachmentKey(messageID, index)
	delete(tx.deleted, model.Ref{Kind: model.KindAttachment, Key: key})
	a := model.NewAttachment(messageID, index)
	tx.overlay.attachments[key] = a
	return a
}

// ---- key enumeration and scans ---------------------------------------------

func (tx *WriteTx) channelCIDs() []string {
	return unionMapKeys(tx.db.state.channels, tx.overlay.channels, tx.deleted, model.KindChannel)
}

func (tx *WriteTx) messageIDs() []string {
	return unionMapKeys(tx.db.state.messages, tx.overlay.messages, tx.deleted, model.KindMessage)
}

func (tx *WriteTx) userIDs() []string {
	return unionMapKeys(tx.db.state.users, tx.overlay.users, tx.deleted, model.KindUser)
}

func unionMapKeys[T any](canonical, overlay map[string]*T, deleted map[model.Ref]struct{}, kind model.Kind) []string {
	seen := map[string]struct{}{}
	for k := range canonical {
		seen[k] = struct{}{}
	}
	for k := range overlay {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		if _, del := deleted[model.Ref{Kind: kind, Key: k}]; del {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MessagesForChannel returns the live messages cached for a channel, in key
// order.
func (tx *WriteTx) MessagesForChannel(cid string) []*model.Message {
	ch := tx.Channel(cid)
	if ch == nil {
		return nil
	}
	ids := make([]string, 0, len(ch.MessageIDs))
	for id := range ch.MessageIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Message, 0, len(ids))
	for _, id := range ids {
		if m := tx.Message(id); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// MessagesByCID returns every live message bearing the channel id, in key
// order. Unlike MessagesForChannel this includes messages outside the
// channel's message set (drafts, thread-only replies).
func (tx *WriteTx) MessagesByCID(cid string) []*model.Message {
	keys := scanKeys(tx.db.state.messages, tx.overlay.messages, func(m *model.Message) bool {
		return m.CID == cid
	})
	out := make([]*model.Message, 0, len(keys))
	for _, k := range keys {
		if m := tx.Message(k); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// ReactionsForMessage returns every live reaction on the message.
func (tx *WriteTx) ReactionsForMessage(messageID string) []*model.Reaction {
	keys := scanKeys(tx.db.state.reactions, tx.overlay.reactions, func(r *model.Reaction) bool {
		return r.MessageID == messageID
	})
	out := make([]*model.Reaction, 0, len(keys))
	for _, k := range keys {
		if r := tx.reactionByKey(k); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// AggregatesForMessage returns every live reaction aggregate on the message.
func (tx *WriteTx) AggregatesForMessage(messageID string) []*model.ReactionAggregate {
	keys := scanKeys(tx.db.state.aggregates, tx.overlay.aggregates, func(a *model.ReactionAggregate) bool {
		return a.MessageID == messageID
	})
	out := make([]*model.ReactionAggregate, 0, len(keys))
	for _, k := range keys {
		if a := tx.aggregateByKey(k); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// AttachmentsForMessage returns the message's attachments ordered by index.
func (tx *WriteTx) AttachmentsForMessage(messageID string) []*model.Attachment {
	keys := scanKeys(tx.db.state.attachments, tx.overlay.attachments, func(a *model.Attachment) bool {
		return a.MessageID == messageID
	})
	out := make([]*model.Attachment, 0, len(keys))
	for _, k := range keys {
		if a := tx.attachmentByKey(k); a != nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// MembersForChannel returns every live membership of the channel.
func (tx *WriteTx) MembersForChannel(cid string) []*model.Member {
	keys := scanKeys(tx.db.state.members, tx.overlay.members, func(m *model.Member) bool {
		return m.CID == cid
	})
	out := make([]*model.Member, 0, len(keys))
	for _, k := range keys {
		if m := tx.memberByKey(k); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// ReadsForChannel returns every live read cursor of the channel.
func (tx *WriteTx) ReadsForChannel(cid string) []*model.ChannelRead {
	keys := scanKeys(tx.db.state.reads, tx.overlay.reads, func(r *model.ChannelRead) bool {
		return r.CID == cid
	})
	out := make([]*model.ChannelRead, 0, len(keys))
	for _, k := range keys {
		if r := tx.readByKey(k); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func scanKeys[T any](canonical, overlay map[string]*T, match func(*T) bool) []string {
	seen := map[string]struct{}{}
	for k, v := range canonical {
		if match(v) {
			seen[k] = struct{}{}
		}
	}
	for k, v := range overlay {
		if match(v) {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---- deletes ---------------------------------------------------------------

// DeleteReaction removes the reaction entity. Aggregate maintenance is the
// caller's responsibility.
func (tx *WriteTx) DeleteReaction(messageID, userID, reactionType string) {
	tx.deleteRef(model.Ref{Kind: model.KindReaction, Key: model.ReactionKey(messageID, userID, reactionType)})
}

// DeleteAggregate removes the per-type tally entity.
func (tx *WriteTx) DeleteAggregate(messageID, reactionType string) {
	tx.deleteRef(model.Ref{Kind: model.KindReactionAggregate, Key: model.AggregateKey(messageID, reactionType)})
}

// DeleteAttachment removes one attachment entity.
func (tx *WriteTx) DeleteAttachment(messageID string, index int) {
	tx.deleteRef(model.Ref{Kind: model.KindAttachment, Key: model.AttachmentKey(messageID, index)})
}

// DeleteMember removes one membership entity and its channel back-reference.
func (tx *WriteTx) DeleteMember(cid, userID string) {
	if ch := tx.Channel(cid); ch != nil {
		delete(ch.MemberIDs, userID)
	}
	tx.deleteRef(model.Ref{Kind: model.KindMember, Key: model.MemberKey(cid, userID)})
}

// DeleteMessage removes the message and cascades to its owned children
// (reactions, aggregates, attachments, thread replies) and back-references.
// Shared references (author, quoted message) are left alone.
func (tx *WriteTx) DeleteMessage(id string) {
	m := tx.Message(id)
	if m == nil {
		return
	}
	// Replies remove themselves from m.ReplyIDs as they go, so iterate a
	// copy. Thread-only replies never joined the channel's message set and
	// this is their only removal path.
	for _, rid := range append([]string(nil), m.ReplyIDs...) {
		tx.DeleteMessage(rid)
	}
	for _, r := range tx.ReactionsForMessage(id) {
		tx.deleteRef(r.Ref())
	}
	for _, a := range tx.AggregatesForMessage(id) {
		tx.deleteRef(a.Ref())
	}
	for _, a := range tx.AttachmentsForMessage(id) {
		tx.deleteRef(a.Ref())
	}
	if m.CID != "" {
		if ch := tx.Channel(m.CID); ch != nil {
			delete(ch.MessageIDs, id)
			delete(ch.PinnedMessageIDs, id)
			if ch.PreviewMessageID == id {
				ch.PreviewMessageID = ""
			}
			if ch.DraftMessageID == id {
				ch.DraftMessageID = ""
			}
		}
	}
	if m.ParentMessageID != "" {
		if p := tx.Message(m.ParentMessageID); p != nil {
			p.ReplyIDs = utils.Remove(p.ReplyIDs, id)
			if p.ReplyCount > 0 {
				p.ReplyCount--
			}
		}
	}
	tx.deleteRef(m.Ref())
}

// DeleteChannel removes the channel and cascades to its owned children:
// messages (each with their own cascade), memberships and read cursors.
// Users survive; they are shared references.
func (tx *WriteTx) DeleteChannel(cid string) {
	ch := tx.Channel(cid)
	if ch == nil {
		return
	}
	// Scan by cid rather than ch.MessageIDs: drafts, thread-only replies
	// and parent stubs carry the channel id without being in the set.
	for _, m := range tx.MessagesByCID(cid) {
		tx.DeleteMessage(m.ID)
	}
	for _, m := range tx.MembersForChannel(cid) {
		tx.deleteRef(m.Ref())
	}
	for _, r := range tx.ReadsForChannel(cid) {
		tx.deleteRef(r.Ref())
	}
	tx.deleteRef(model.Ref{Kind: model.KindChannel, Key: cid})
}

// ---- commit ----------------------------------------------------------------

func (tx *WriteTx) commit() error {
	db := tx.db
	if tx.done {
		return fmt.Errorf("commit on finished transaction")
	}
	tx.done = true

	changes := ChangeSet{}
	batch := db.pdb.NewBatch()
	defer batch.Close()

	if err := collectKind(tx, model.KindChannel, tx.overlay.channels, db.state.channels, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindMessage, tx.overlay.messages, db.state.messages, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindUser, tx.overlay.users, db.state.users, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindMember, tx.overlay.members, db.state.members, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindChannelRead, tx.overlay.reads, db.state.reads, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindReaction, tx.overlay.reactions, db.state.reactions, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindReactionAggregate, tx.overlay.aggregates, db.state.aggregates, changes, batch); err != nil {
		return err
	}
	if err := collectKind(tx, model.KindAttachment, tx.overlay.attachments, db.state.attachments, changes, batch); err != nil {
		return err
	}

	for ref := range tx.deleted {
		if !tx.existsCanonically(ref) {
			continue
		}
		if err := batch.Delete(persistKey(ref), nil); err != nil {
			return err
		}
		changes[ref] = ChangeDeleted
	}

	// Ancestor expansion must run before the state swap so deleted
	// entities can still be resolved for their parent links.
	tx.propagate(changes)

	if err := db.pdb.Apply(batch, pebble.Sync); err != nil {
		db.log.Error("commit_persist_failed", zap.Error(err))
		return err
	}

	db.mu.Lock()
	tx.swapInto(db.state, changes)
	db.mu.Unlock()

	if len(changes) > 0 {
		db.notify(changes)
	}
	return nil
}

func collectKind[T any](tx *WriteTx, kind model.Kind, overlay, canonical map[string]*T, changes ChangeSet, batch *pebble.Batch) error {
	for key, ent := range overlay {
		ref := model.Ref{Kind: kind, Key: key}
		if tx.isDeleted(ref) {
			continue
		}
		old, exists := canonical[key]
		if exists && reflect.DeepEqual(ent, old) {
			continue
		}
		data, err := json.Marshal(ent)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ref, err)
		}
		if err := batch.Set(persistKey(ref), data, nil); err != nil {
			return err
		}
		if exists {
			changes[ref] = ChangeUpdated
		} else {
			changes[ref] = ChangeCreated
		}
	}
	return nil
}

func (tx *WriteTx) existsCanonically(ref model.Ref) bool {
	s := tx.db.state
	switch ref.Kind {
	case model.KindChannel:
		_, ok := s.channels[ref.Key]
		return ok
	case model.KindMessage:
		_, ok := s.messages[ref.Key]
		return ok
	case model.KindUser:
		_, ok := s.users[ref.Key]
		return ok
	case model.KindMember:
		_, ok := s.members[ref.Key]
		return ok
	case model.KindChannelRead:
		_, ok := s.reads[ref.Key]
		return ok
	case model.KindReaction:
		_, ok := s.reactions[ref.Key]
		return ok
	case model.KindReactionAggregate:
		_, ok := s.aggregates[ref.Key]
		return ok
	case model.KindAttachment:
		_, ok := s.attachments[ref.Key]
		return ok
	}
	return false
}

// swapInto merges the committed entities into canonical state. Only entries
// recorded in changes move; unchanged overlay clones are discarded.
func (tx *WriteTx) swapInto(s *state, changes ChangeSet) {
	for ref, kind := range changes {
		if kind == ChangeDeleted {
			switch ref.Kind {
			case model.KindChannel:
				delete(s.channels, ref.Key)
			case model.KindMessage:
				delete(s.messages, ref.Key)
			case model.KindUser:
				delete(s.users, ref.Key)
			case model.KindMember:
				delete(s.members, ref.Key)
			case model.KindChannelRead:
				delete(s.reads, ref.Key)
			case model.KindReaction:
				delete(s.reactions, ref.Key)
			case model.KindReactionAggregate:
				delete(s.aggregates, ref.Key)
			case model.KindAttachment:
				delete(s.attachments, ref.Key)
			}
			continue
		}
		switch ref.Kind {
		case model.KindChannel:
			if e, ok := tx.overlay.channels[ref.Key]; ok {
				s.channels[ref.Key] = e
			}
		case model.KindMessage:
			if e, ok := tx.overlay.messages[ref.Key]; ok {
				s.messages[ref.Key] = e
			}
		case model.KindUser:
			if e, ok := tx.overlay.users[ref.Key]; ok {
				s.users[ref.Key] = e
			}
		case model.KindMember:
			if e, ok := tx.overlay.members[ref.Key]; ok {
				s.members[ref.Key] = e
			}
		case model.KindChannelRead:
			if e, ok := tx.overlay.reads[ref.Key]; ok {
				s.reads[ref.Key] = e
			}
		case model.KindReaction:
			if e, ok := tx.overlay.reactions[ref.Key]; ok {
				s.reactions[ref.Key] = e
			}
		case model.KindReactionAggregate:
			if e, ok := tx.overlay.aggregates[ref.Key]; ok {
				s.aggregates[ref.Key] = e
			}
		case model.KindAttachment:
			if e, ok := tx.overlay.attachments[ref.Key]; ok {
				s.attachments[ref.Key] = e
			}
		}
	}
}
