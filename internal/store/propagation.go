package store

import "github.com/Gopher0727/ChatSync/internal/model"

// Change propagation: some mutations must surface on an ancestor so its
// observers refresh even though none of the ancestor's own fields moved
// (a read-cursor update refreshing the channel's unread badge, a reaction
// refreshing the message's reaction list). Each entity kind declares one
// propagate-to relationship; commit walks the links to a fixpoint and marks
// every reachable live ancestor as updated.

// parentRef resolves the declared propagate-to ancestor of ref, using the
// transaction overlay first and pre-commit canonical state second, so links
// of freshly deleted entities still resolve.
func (tx *WriteTx) parentRef(ref model.Ref) (model.Ref, bool) {
	s := tx.db.state
	switch ref.Kind {
	case model.KindReaction:
		r, ok := tx.overlay.reactions[ref.Key]
		if !ok {
			r, ok = s.reactions[ref.Key]
		}
		if ok && r.MessageID != "" {
			return model.Ref{Kind: model.KindMessage, Key: r.MessageID}, true
		}
	case model.KindReactionAggregate:
		a, ok := tx.overlay.aggregates[ref.Key]
		if !ok {
			a, ok = s.aggregates[ref.Key]
		}
		if ok && a.MessageID != "" {
			return model.Ref{Kind: model.KindMessage, Key: a.MessageID}, true
		}
	case model.KindAttachment:
		a, ok := tx.overlay.attachments[ref.Key]
		if !ok {
			a, ok = s.attachments[ref.Key]
		}
		if ok && a.MessageID != "" {
			return model.Ref{Kind: model.KindMessage, Key: a.MessageID}, true
		}
	case model.KindMessage:
		m, ok := tx.overlay.messages[ref.Key]
		if !ok {
			m, ok = s.messages[ref.Key]
		}
		if ok && m.CID != "" {
			return model.Ref{Kind: model.KindChannel, Key: m.CID}, true
		}
	case model.KindMember:
		m, ok := tx.overlay.members[ref.Key]
		if !ok {
			m, ok = s.members[ref.Key]
		}
		if ok && m.CID != "" {
			return model.Ref{Kind: model.KindChannel, Key: m.CID}, true
		}
	case model.KindChannelRead:
		r, ok := tx.overlay.reads[ref.Key]
		if !ok {
			r, ok = s.reads[ref.Key]
		}
		if ok && r.CID != "" {
			return model.Ref{Kind: model.KindChannel, Key: r.CID}, true
		}
	}
	return model.Ref{}, false
}

// propagate expands the change set with explicitly marked refs and with the
// transitive propagate-to ancestors of every change. Ancestors already in
// the set, deleted in this transaction, or absent from the graph are
// skipped.
func (tx *WriteTx) propagate(changes ChangeSet) {
	queue := make([]model.Ref, 0, len(changes)+len(tx.marked))
	for ref := range changes {
		queue = append(queue, ref)
	}
	for ref := range tx.marked {
		if _, seen := changes[ref]; seen || tx.isDeleted(ref) {
			continue
		}
		if !tx.refLive(ref) {
			continue
		}
		changes[ref] = ChangeUpdated
		queue = append(queue, ref)
	}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		parent, ok := tx.parentRef(ref)
		if !ok {
			continue
		}
		if _, seen := changes[parent]; seen || tx.isDeleted(parent) {
			continue
		}
		if !tx.refLive(parent) {
			continue
		}
		changes[parent] = ChangeUpdated
		queue = append(queue, parent)
	}
}

// refLive reports whether ref resolves to an entity in the overlay or in
// pre-commit canonical state.
func (tx *WriteTx) refLive(ref model.Ref) bool {
	if tx.isDeleted(ref) {
		return false
	}
	s := tx.db.state
	switch ref.Kind {
	case model.KindChannel:
		if _, ok := tx.overlay.channels[ref.Key]; ok {
			return true
		}
		_, ok := s.channels[ref.Key]
		return ok
	case model.KindMessage:
		if _, ok := tx.overlay.messages[ref.Key]; ok {
			return true
		}
		_, ok := s.messages[ref.Key]
		return ok
	case model.KindUser:
		if _, ok := tx.overlay.users[ref.Key]; ok {
			return true
		}
		_, ok := s.users[ref.Key]
		return ok
	case model.KindMember:
		if _, ok := tx.overlay.members[ref.Key]; ok {
			return true
		}
		_, ok := s.members[ref.Key]
		return ok
	case model.KindChannelRead:
		if _, ok := tx.overlay.reads[ref.Key]; ok {
			return true
		}
		_, ok := s.reads[ref.Key]
		return ok
	case model.KindReaction:
		if _, ok := tx.overlay.reactions[ref.Key]; ok {
			return true
		}
		_, ok := s.reactions[ref.Key]
		return ok
	case model.KindReactionAggregate:
		if _, ok := tx.overlay.aggregates[ref.Key]; ok {
			return true
		}
		_, ok := s.aggregates[ref.Key]
		return ok
	case model.KindAttachment:
		if _, ok := tx.overlay.attachments[ref.Key]; ok {
			return true
		}
		_, ok := s.attachments[ref.Key]
		return ok
	}
	return false
}
