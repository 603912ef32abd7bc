package repository

import (
	"time"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/store"
	"github.com/Gopher0727/ChatSync/utils"
)

// Derived channel views, recomputed as a side effect of the mutations that
// can move them: preview message, default sort key, pagination bounds and
// the pinned-message set.

// updateDefaultSorting sets the channel sort key to max(lastMessageAt,
// createdAt). A lastMessageAt in the distant past (older than the channel
// itself) falls back to createdAt, so a bogus server timestamp cannot sink
// the channel to the bottom of the list.
func updateDefaultSorting(ch *model.Channel) {
	sortingAt := ch.CreatedAt
	if ch.LastMessageAt != nil {
		sortingAt = utils.LaterTime(sortingAt, *ch.LastMessageAt)
	}
	if sortingAt.Before(ch.CreatedAt) {
		sortingAt = ch.CreatedAt
	}
	ch.DefaultSortingAt = sortingAt
}

// maybeUpdatePreview promotes m to channel preview when it is newer than
// the current preview, or falls back to a full recompute when the current
// preview became invalid.
func maybeUpdatePreview(tx *store.WriteTx, ch *model.Channel, m *model.Message) {
	if !m.Visible() || (m.ParentMessageID != "" && !m.ShowInChannel) {
		if ch.PreviewMessageID == m.ID {
			recomputePreview(tx, ch)
		}
		return
	}
	cur := tx.Message(ch.PreviewMessageID)
	if cur == nil || !cur.Visible() {
		recomputePreview(tx, ch)
		return
	}
	if m.CreatedAt.After(cur.CreatedAt) {
		ch.PreviewMessageID = m.ID
	}
}

// recomputePreview selects the newest visible message among the channel's
// cached messages.
func recomputePreview(tx *store.WriteTx, ch *model.Channel) {
	var best *model.Message
	for _, m := range tx.MessagesForChannel(ch.CID) {
		if !m.Visible() || (m.ParentMessageID != "" && !m.ShowInChannel) {
			continue
		}
		if best == nil || m.CreatedAt.After(best.CreatedAt) ||
			(m.CreatedAt.Equal(best.CreatedAt) && m.ID > best.ID) {
			best = m
		}
	}
	if best != nil {
		ch.PreviewMessageID = best.ID
	} else {
		ch.PreviewMessageID = ""
	}
}

// bumpLastMessageAt advances lastMessageAt for a newly seen visible
// message and refreshes the sort key.
func bumpLastMessageAt(ch *model.Channel, m *model.Message) {
	if !m.Visible() {
		return
	}
	if ch.LastMessageAt == nil || m.CreatedAt.After(*ch.LastMessageAt) {
		at := m.CreatedAt
		ch.LastMessageAt = &at
	}
	updateDefaultSorting(ch)
}

// recomputeLastMessageAt rebuilds lastMessageAt from the surviving cached
// messages after a bulk removal.
func recomputeLastMessageAt(tx *store.WriteTx, ch *model.Channel) {
	ch.LastMessageAt = nil
	for _, m := range tx.MessagesForChannel(ch.CID) {
		bumpLastMessageAt(ch, m)
	}
	updateDefaultSorting(ch)
}

// widenBounds moves the pagination window outward for a fetched message
// page. oldestMessageAt only ever decreases; newestMessageAt, when set,
// only ever increases. A nil newest bound means the window reaches the
// present and stays that way.
func widenBounds(ch *model.Channel, pageMin, pageMax time.Time) {
	if pageMin.IsZero() {
		return
	}
	if ch.OldestMessageAt == nil || pageMin.Before(*ch.OldestMessageAt) {
		at := pageMin
		ch.OldestMessageAt = &at
	}
	if ch.NewestMessageAt != nil && pageMax.After(*ch.NewestMessageAt) {
		at := pageMax
		ch.NewestMessageAt = &at
	}
}

// syncPinSet keeps the channel pin set aligned with the message's pinned
// flag on every save.
func syncPinSet(ch *model.Channel, m *model.Message) {
	if m.Pinned && m.Visible() {
		ch.PinnedMessageIDs[m.ID] = struct{}{}
	} else {
		delete(ch.PinnedMessageIDs, m.ID)
	}
}
