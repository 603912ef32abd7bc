package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
	"github.com/Gopher0727/ChatSync/utils"
)

// Reaction aggregation engine. Single-reaction events maintain the
// per-(message, type) tallies incrementally; a full message payload
// replaces reactions and tallies wholesale with what the server delivered.

// AddReaction applies one reaction event. With enforceUnique the user's
// previous reactions of every other type on the message are removed first,
// so the user holds at most one reaction on it.
func (r *Repository) AddReaction(ctx context.Context, sess *session.Session, p *payload.Reaction, enforceUnique bool) error {
	if p == nil || p.MessageID == "" || p.Type == "" {
		return ErrInvalidPayload
	}
	return r.db.Update(func(tx *store.WriteTx) error {
		cache := store.NewPreloadCache()
		m := tx.Message(p.MessageID)
		if m == nil {
			return ErrMessageNotFound
		}

		userID := p.UserID
		if p.User != nil {
			u, err := r.upsertUser(ctx, tx, cache, p.User)
			if err != nil {
				return err
			}
			userID = u.ID
		}
		if userID == "" {
			return ErrInvalidPayload
		}

		if enforceUnique {
			for _, prev := range tx.ReactionsForMessage(p.MessageID) {
				if prev.UserID == userID && prev.Type != p.Type {
					removeReactionLocked(tx, m, prev)
				}
			}
		}

		rx := tx.ReactionOrCreate(p.MessageID, userID, p.Type)
		wasLive := rx.Score > 0
		prevScore := rx.Score

		score := p.Score
		if score <= 0 {
			score = 1
		}
		rx.Score = score
		rx.Version = p.Version
		rx.CreatedAt = p.CreatedAt
		rx.UpdatedAt = p.UpdatedAt
		rx.ExtraData, rx.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "reaction", rx.Key())

		agg := tx.AggregateOrCreate(p.MessageID, p.Type)
		agg.SumScore += score - prevScore
		if !wasLive {
			agg.Count++
		}
		if agg.FirstReactionAt.IsZero() || p.CreatedAt.Before(agg.FirstReactionAt) {
			agg.FirstReactionAt = p.CreatedAt
		}
		if p.CreatedAt.After(agg.LastReactionAt) {
			agg.LastReactionAt = p.CreatedAt
		}

		m.LatestReactionIDs = utils.AppendUnique(m.LatestReactionIDs, rx.Key())
		if sess.Valid() && sess.UserID == userID {
			m.OwnReactionIDs = utils.AppendUnique(m.OwnReactionIDs, rx.Key())
		}
		return nil
	})
}

// RemoveReaction applies one reaction-removed event. A version token that
// does not match the stored reaction makes the removal a no-op, as does a
// reaction that is not present.
func (r *Repository) RemoveReaction(ctx context.Context, sess *session.Session, messageID, userID, reactionType, version string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(messageID)
		if m == nil {
			return ErrMessageNotFound
		}
		rx := tx.Reaction(messageID, userID, reactionType)
		if rx == nil {
			return nil
		}
		if version != "" && rx.Version != version {
			r.log.DebugContext(ctx, "reaction_remove_version_mismatch",
				zap.String("message_id", messageID),
				zap.String("type", reactionType))
			return nil
		}
		removeReactionLocked(tx, m, rx)
		return nil
	})
}

// removeReactionLocked retires one live reaction inside an open
// transaction: decrement the tally with clamping, drop the aggregate when
// it empties, delete the entity and unlink it from the message lists.
func removeReactionLocked(tx *store.WriteTx, m *model.Message, rx *model.Reaction) {
	if agg := tx.Aggregate(rx.MessageID, rx.Type); agg != nil {
		agg.SumScore = utils.Max(agg.SumScore-rx.Score, 0)
		agg.Count = utils.Max(agg.Count-1, 0)
		if agg.Count == 0 {
			tx.DeleteAggregate(rx.MessageID, rx.Type)
		}
	}
	key := rx.Key()
	m.LatestReactionIDs = utils.Remove(m.LatestReactionIDs, key)
	m.OwnReactionIDs = utils.Remove(m.OwnReactionIDs, key)
	tx.DeleteReaction(rx.MessageID, rx.UserID, rx.Type)
}

// replacePayloadReactions applies the reaction portion of a full message
// payload. The server tallies are authoritative: local aggregates are
// replaced, reactions not present in the payload are dropped, and with
// syncOwn the own-reaction list is replaced too.
func (r *Repository) replacePayloadReactions(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, sess *session.Session, m *model.Message, p *payload.Message, syncOwn bool) {
	keep := make(map[string]struct{}, len(p.LatestReactions))
	m.LatestReactionIDs = m.LatestReactionIDs[:0]
	for _, rp := range p.LatestReactions {
		rx, err := r.upsertReaction(ctx, tx, cache, m.ID, rp)
		if err != nil {
			r.log.WarnContext(ctx, "reaction_upsert_skipped",
				zap.String("message_id", m.ID), zap.Error(err))
			continue
		}
		keep[rx.Key()] = struct{}{}
		m.LatestReactionIDs = utils.AppendUnique(m.LatestReactionIDs, rx.Key())
	}
	if syncOwn {
		m.OwnReactionIDs = m.OwnReactionIDs[:0]
		for _, rp := range p.OwnReactions {
			rx, err := r.upsertReaction(ctx, tx, cache, m.ID, rp)
			if err != nil {
				continue
			}
			keep[rx.Key()] = struct{}{}
			m.OwnReactionIDs = utils.AppendUnique(m.OwnReactionIDs, rx.Key())
		}
	} else {
		for _, key := range m.OwnReactionIDs {
			keep[key] = struct{}{}
		}
	}

	for _, rx := range tx.ReactionsForMessage(m.ID) {
		if _, ok := keep[rx.Key()]; !ok {
			tx.DeleteReaction(rx.MessageID, rx.UserID, rx.Type)
		}
	}

	// Server tallies replace local ones wholesale; absent groups clear.
	liveTypes := make(map[string]struct{}, len(p.ReactionGroups))
	for typ, g := range p.ReactionGroups {
		if g == nil || g.Count <= 0 {
			continue
		}
		liveTypes[typ] = struct{}{}
		agg := tx.AggregateOrCreate(m.ID, typ)
		agg.SumScore = g.SumScores
		agg.Count = g.Count
		agg.FirstReactionAt = g.FirstReactionAt
		agg.LastReactionAt = g.LastReactionAt
	}
	for _, agg := range tx.AggregatesForMessage(m.ID) {
		if _, ok := liveTypes[agg.Type]; !ok {
			tx.DeleteAggregate(agg.MessageID, agg.Type)
		}
	}
}

func (r *Repository) upsertReaction(ctx context.Context, tx *store.WriteTx, cache *store.PreloadCache, messageID string, p *payload.Reaction) (*model.Reaction, error) {
	if p == nil || p.Type == "" {
		return nil, ErrInvalidPayload
	}
	userID := p.UserID
	if p.User != nil {
		u, err := r.upsertUser(ctx, tx, cache, p.User)
		if err != nil {
			return nil, err
		}
		userID = u.ID
	}
	if userID == "" {
		return nil, ErrInvalidPayload
	}
	rx := tx.ReactionOrCreate(messageID, userID, p.Type)
	rx.Score = utils.Max(p.Score, 1)
	rx.Version = p.Version
	rx.CreatedAt = p.CreatedAt
	rx.UpdatedAt = p.UpdatedAt
	rx.ExtraData, rx.ExtraDataHash = r.sanitizeBlob(ctx, p.ExtraData, "reaction", rx.Key())
	return rx, nil
}
