package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
)

func reactionPayload(messageID, userID, typ string, score int, at time.Time) *payload.Reaction {
	return &payload.Reaction{
		MessageID: messageID,
		Type:      typ,
		Score:     score,
		UserID:    userID,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestReactionAggregateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	saveChannel(t, repo, "messaging:general")
	require.NoError(t, repo.SaveMessage(ctx, nil, messagePayload("m1", "messaging:general", "react to me", baseTime)))

	require.NoError(t, repo.AddReaction(ctx, session.New("userA"), reactionPayload("m1", "userA", "like", 1, baseTime), false))
	require.NoError(t, repo.AddReaction(ctx, session.New("userB"), reactionPayload("m1", "userB", "like", 1, baseTime.Add(time.Minute)), false))

	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		m := tx.Message("m1")
		require.Contains(t, m.ReactionGroups, "like")
		g := m.ReactionGroups["like"]
		assert.Equal(t, 2, g.Count)
		assert.Equal(t, 2, g.SumScore)
		assert.True(t, g.FirstReactionAt.Equal(baseTime))
		assert.True(t, g.LastReactionAt.Equal(baseTime.Add(time.Minute)))
		assert.Len(t, m.LatestReactions, 2)
		return nil
	}))

	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userA", "like", ""))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		g := tx.Message("m1").ReactionGroups["like"]
		require.NotNil(t, g)
		assert.Equal(t, 1, g.Count)
		assert.Equal(t, 1, g.SumScore)
		return nil
	}))

	// Removing the last reaction deletes the aggregate entirely.
	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userB", "like", ""))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		assert.NotContains(t, tx.Message("m1").ReactionGroups, "like")
		return nil
	}))
}

func TestEnforceUniqueReplacesPriorReaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	sess := session.New("userA")
	saveChannel(t, repo, "messaging:general")
	require.NoError(t, repo.SaveMessage(ctx, sess, messagePayload("m1", "messaging:general", "pick one", baseTime)))

	require.NoError(t, repo.AddReaction(ctx, sess, reactionPayload("m1", "userA", "like", 1, baseTime), true))
	require.NoError(t, repo.AddReaction(ctx, sess, reactionPayload("m1", "userA", "love", 1, baseTime.Add(time.Second)), true))

	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		m := tx.Message("m1")
		assert.NotContains(t, m.ReactionGroups, "like")
		require.Contains(t, m.ReactionGroups, "love")
		assert.Equal(t, 1, m.ReactionGroups["love"].Count)
		require.Len(t, m.OwnReactions, 1)
		assert.Equal(t, "love", m.OwnReactions[0].Type)
		return nil
	}))
}

func TestRemoveReactionVersionMismatchIsNoOp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	saveChannel(t, repo, "messaging:general")
	require.NoError(t, repo.SaveMessage(ctx, nil, messagePayload("m1", "messaging:general", "versioned", baseTime)))

	p := reactionPayload("m1", "userA", "like", 1, baseTime)
	p.Version = "v1"
	require.NoError(t, repo.AddReaction(ctx, nil, p, false))

	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userA", "like", "v-other"))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		assert.Contains(t, tx.Message("m1").ReactionGroups, "like")
		return nil
	}))

	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userA", "like", "v1"))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		assert.NotContains(t, tx.Message("m1").ReactionGroups, "like")
		return nil
	}))

	// A token against an unversioned stored reaction is a mismatch too.
	require.NoError(t, repo.AddReaction(ctx, nil, reactionPayload("m1", "userB", "like", 1, baseTime), false))
	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userB", "like", "v-mismatch"))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		assert.Contains(t, tx.Message("m1").ReactionGroups, "like")
		return nil
	}))

	// An empty token always applies.
	require.NoError(t, repo.RemoveReaction(ctx, nil, "m1", "userB", "like", ""))
	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		assert.NotContains(t, tx.Message("m1").ReactionGroups, "like")
		return nil
	}))
}

func TestPayloadReactionGroupsReplaceLocalTallies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	saveChannel(t, repo, "messaging:general")
	require.NoError(t, repo.SaveMessage(ctx, nil, messagePayload("m1", "messaging:general", "tallied", baseTime)))
	require.NoError(t, repo.AddReaction(ctx, nil, reactionPayload("m1", "userA", "like", 1, baseTime), false))

	// The refreshed message payload carries only a "wow" group; the local
	// "like" tally and reaction disappear.
	p := messagePayload("m1", "messaging:general", "tallied", baseTime)
	p.LatestReactions = []*payload.Reaction{reactionPayload("m1", "userB", "wow", 3, baseTime.Add(time.Minute))}
	p.ReactionGroups = map[string]*payload.ReactionGroup{
		"wow": {SumScores: 3, Count: 1, FirstReactionAt: baseTime.Add(time.Minute), LastReactionAt: baseTime.Add(time.Minute)},
	}
	require.NoError(t, repo.SaveMessage(ctx, nil, p))

	require.NoError(t, repo.DB().View(func(tx *store.ReadTx) error {
		m := tx.Message("m1")
		assert.NotContains(t, m.ReactionGroups, "like")
		require.Contains(t, m.ReactionGroups, "wow")
		assert.Equal(t, 3, m.ReactionGroups["wow"].SumScore)
		require.Len(t, m.LatestReactions, 1)
		assert.Equal(t, "userB", m.LatestReactions[0].UserID)
		return nil
	}))
}
