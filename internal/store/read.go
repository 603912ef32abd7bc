package store

import (
	"sort"
	"time"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/utils"
)

var zeroTime time.Time

// ReadTx reads committed state and produces immutable snapshot models.
// Nested message expansion (quoted message, thread parent) is bounded by
// the configured depth and fails closed: past the limit the nested
// relationship is nil, never an unbounded recursion over a quote cycle.
type ReadTx struct {
	db    *DB
	depth int
}

// Channel returns the channel snapshot for cid, or nil if unknown.
func (tx *ReadTx) Channel(cid string) *model.ChannelModel {
	ch, ok := tx.db.state.channels[cid]
	if !ok {
		return nil
	}
	return tx.buildChannel(ch)
}

// Channels returns every channel snapshot ordered by the default sort key,
// newest first.
func (tx *ReadTx) Channels() []*model.ChannelModel {
	out := make([]*model.ChannelModel, 0, len(tx.db.state.channels))
	for _, ch := range tx.db.state.channels {
		out = append(out, tx.buildChannel(ch))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DefaultSortingAt.Equal(out[j].DefaultSortingAt) {
			return out[i].DefaultSortingAt.After(out[j].DefaultSortingAt)
		}
		return out[i].CID < out[j].CID
	})
	return out
}

// Message returns the message snapshot for id, or nil if unknown.
func (tx *ReadTx) Message(id string) *model.MessageModel {
	return tx.buildMessage(id, tx.depth)
}

// User returns the user snapshot for id, or nil if unknown.
func (tx *ReadTx) User(id string) *model.UserModel {
	return tx.buildUser(id)
}

// MessagesForChannel returns the channel's cached messages inside the
// current pagination window, ordered oldest first. Messages still pending
// locally always show regardless of the window; everything else is gated by
// the oldest/newest bounds so stale out-of-window cache entries never leak
// into the page.
func (tx *ReadTx) MessagesForChannel(cid string) []*model.MessageModel {
	ch, ok := tx.db.state.channels[cid]
	if !ok {
		return nil
	}
	out := make([]*model.MessageModel, 0, len(ch.MessageIDs))
	for id := range ch.MessageIDs {
		m, ok := tx.db.state.messages[id]
		if !ok {
			continue
		}
		if !m.PendingLocally() {
			if ch.OldestMessageAt != nil && m.CreatedAt.Before(*ch.OldestMessageAt) {
				continue
			}
			if ch.NewestMessageAt != nil && m.CreatedAt.After(*ch.NewestMessageAt) {
				continue
			}
		}
		if mm := tx.buildMessage(id, tx.depth); mm != nil {
			out = append(out, mm)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UnreadCount returns the user's unread message and mention counts for the
// channel, derived from the read cursor. The mention scan only runs when
// the unread count is non-zero.
func (tx *ReadTx) UnreadCount(cid, userID string) (messages, mentions int) {
	s := tx.db.state
	var lastRead = zeroTime
	if r, ok := s.reads[model.ReadKey(cid, userID)]; ok {
		lastRead = r.LastReadAt
	}
	ch, ok := s.channels[cid]
	if !ok {
		return 0, 0
	}
	unreadIDs := make([]string, 0, 8)
	for id := range ch.MessageIDs {
		m, ok := s.messages[id]
		if !ok || !m.Visible() || m.AuthorID == userID {
			continue
		}
		if m.CreatedAt.After(lastRead) {
			unreadIDs = append(unreadIDs, id)
		}
	}
	if len(unreadIDs) == 0 {
		return 0, 0
	}
	for _, id := range unreadIDs {
		if utils.Contains(s.messages[id].MentionedUserIDs, userID) {
			mentions++
		}
	}
	return len(unreadIDs), mentions
}

// ---- snapshot builders -----------------------------------------------------

func (tx *ReadTx) buildChannel(ch *model.Channel) *model.ChannelModel {
	m := &model.ChannelModel{
		CID:              ch.CID,
		Type:             ch.Type,
		ChannelID:        ch.ChannelID,
		Name:             ch.Name,
		Image:            ch.Image,
		Frozen:           ch.Frozen,
		Hidden:           ch.Hidden,
		Disabled:         ch.Disabled,
		Cooldown:         ch.Cooldown,
		MemberCount:      ch.MemberCount,
		CreatedAt:        ch.CreatedAt,
		UpdatedAt:        ch.UpdatedAt,
		DeletedAt:        copyTime(ch.DeletedAt),
		LastMessageAt:    copyTime(ch.LastMessageAt),
		DefaultSortingAt: ch.DefaultSortingAt,
		OldestMessageAt:  copyTime(ch.OldestMessageAt),
		NewestMessageAt:  copyTime(ch.NewestMessageAt),
		WatcherCount:     ch.WatcherCount,
		Config:           ch.Config,
		ExtraData:        append([]byte(nil), ch.ExtraData...),
	}
	if ch.CreatedByID != "" {
		m.CreatedBy = tx.buildUser(ch.CreatedByID)
	}
	if ch.PreviewMessageID != "" {
		m.Preview = tx.buildMessage(ch.PreviewMessageID, tx.depth)
	}
	for id := range ch.PinnedMessageIDs {
		m.PinnedMessageIDs = append(m.PinnedMessageIDs, id)
	}
	sort.Strings(m.PinnedMessageIDs)

	for _, mb := range tx.membersFor(ch.CID) {
		m.Members = append(m.Members, &model.MemberModel{
			CID:         mb.CID,
			UserID:      mb.UserID,
			User:        tx.buildUser(mb.UserID),
			ChannelRole: mb.ChannelRole,
			Banned:      mb.Banned,
			Invited:     mb.Invited,
			CreatedAt:   mb.CreatedAt,
			UpdatedAt:   mb.UpdatedAt,
		})
	}
	for _, r := range tx.readsFor(ch.CID) {
		m.Reads = append(m.Reads, &model.ReadModel{
			CID:               r.CID,
			UserID:            r.UserID,
			User:              tx.buildUser(r.UserID),
			LastReadAt:        r.LastReadAt,
			LastReadMessageID: r.LastReadMessageID,
			UnreadCount:       r.UnreadCount,
		})
	}
	return m
}

func (tx *ReadTx) buildMessage(id string, depth int) *model.MessageModel {
	if depth < 0 {
		return nil
	}
	msg, ok := tx.db.state.messages[id]
	if !ok {
		return nil
	}
	m := &model.MessageModel{
		ID:               msg.ID,
		CID:              msg.CID,
		Type:             msg.Type,
		Text:             msg.Text,
		AuthorID:         msg.AuthorID,
		ReplyCount:       msg.ReplyCount,
		MentionedUserIDs: append([]string(nil), msg.MentionedUserIDs...),
		CreatedAt:        msg.CreatedAt,
		UpdatedAt:        msg.UpdatedAt,
		DeletedAt:        copyTime(msg.DeletedAt),
		TextUpdatedAt:    copyTime(msg.TextUpdatedAt),
		LocalState:       msg.LocalState,
		ShowInChannel:    msg.ShowInChannel,
		Pinned:           msg.Pinned,
		PinnedAt:         copyTime(msg.PinnedAt),
		PinExpires:       copyTime(msg.PinExpires),
		ExtraData:        append([]byte(nil), msg.ExtraData...),
	}
	if msg.AuthorID != "" {
		m.Author = tx.buildUser(msg.AuthorID)
	}
	if msg.PinnedByID != "" {
		m.PinnedBy = tx.buildUser(msg.PinnedByID)
	}
	if msg.ParentMessageID != "" {
		m.Parent = tx.buildMessage(msg.ParentMessageID, depth-1)
	}
	if msg.QuotedMessageID != "" {
		m.QuotedMessage = tx.buildMessage(msg.QuotedMessageID, depth-1)
	}

	for _, a := range tx.attachmentsFor(id) {
		m.Attachments = append(m.Attachments, &model.AttachmentModel{
			MessageID:         a.MessageID,
			Index:             a.Index,
			Type:              a.Type,
			Payload:           append([]byte(nil), a.Payload...),
			LocalState:        a.LocalState,
			Progress:          a.Progress,
			LocalRelativePath: a.LocalRelativePath,
		})
	}
	m.LatestReactions = tx.buildReactions(msg.LatestReactionIDs)
	m.OwnReactions = tx.buildReactions(msg.OwnReactionIDs)

	groups := map[string]*model.ReactionGroupModel{}
	for _, a := range tx.aggregatesFor(id) {
		groups[a.Type] = &model.ReactionGroupModel{
			Type:            a.Type,
			SumScore:        a.SumScore,
			Count:           a.Count,
			FirstReactionAt: a.FirstReactionAt,
			LastReactionAt:  a.LastReactionAt,
		}
	}
	if len(groups) > 0 {
		m.ReactionGroups = groups
	}
	return m
}

func (tx *ReadTx) buildUser(id string) *model.UserModel {
	u, ok := tx.db.state.users[id]
	if !ok {
		return nil
	}
	return &model.UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Image:        u.Image,
		Role:         u.Role,
		Online:       u.Online,
		Banned:       u.Banned,
		Teams:        append([]string(nil), u.Teams...),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastActiveAt: copyTime(u.LastActiveAt),
		ExtraData:    append([]byte(nil), u.ExtraData...),
	}
}

func (tx *ReadTx) buildReactions(keys []string) []*model.ReactionModel {
	if len(keys) == 0 {
		return nil
	}
	out := make([]*model.ReactionModel, 0, len(keys))
	for _, key := range keys {
		r, ok := tx.db.state.reactions[key]
		if !ok {
			continue
		}
		out = append(out, &model.ReactionModel{
			MessageID: r.MessageID,
			UserID:    r.UserID,
			User:      tx.buildUser(r.UserID),
			Type:      r.Type,
			Score:     r.Score,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			ExtraData: append([]byte(nil), r.ExtraData...),
		})
	}
	return out
}

func (tx *ReadTx) membersFor(cid string) []*model.Member {
	keys := scanKeys(tx.db.state.members, nil, func(m *model.Member) bool { return m.CID == cid })
	out := make([]*model.Member, 0, len(keys))
	for _, k := range keys {
		out = append(out, tx.db.state.members[k])
	}
	return out
}

func (tx *ReadTx) readsFor(cid string) []*model.ChannelRead {
	keys := scanKeys(tx.db.state.reads, nil, func(r *model.ChannelRead) bool { return r.CID == cid })
	out := make([]*model.ChannelRead, 0, len(keys))
	for _, k := range keys {
		out = append(out, tx.db.state.reads[k])
	}
	return out
}

func (tx *ReadTx) attachmentsFor(messageID string) []*model.Attachment {
	keys := scanKeys(tx.db.state.attachments, nil, func(a *model.Attachment) bool { return a.MessageID == messageID })
	out := make([]*model.Attachment, 0, len(keys))
	for _, k := range keys {
		out = append(out, tx.db.state.attachments[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (tx *ReadTx) aggregatesFor(messageID string) []*model.ReactionAggregate {
	keys := scanKeys(tx.db.state.aggregates, nil, func(a *model.ReactionAggregate) bool { return a.MessageID == messageID })
	out := make([]*model.ReactionAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, tx.db.state.aggregates[k])
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
