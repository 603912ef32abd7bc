package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/ChatSync/config"
	"github.com/Gopher0727/ChatSync/internal/model"
	logger "github.com/Gopher0727/ChatSync/middleware/log"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.StoreConfig{
		Path:                  t.TempDir(),
		SnapshotDepth:         2,
		ResetEphemeralsOnOpen: true,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadOrCreateReturnsSameInstance(t *testing.T) {
	db := openTestDB(t)

	err := db.Update(func(tx *WriteTx) error {
		a := tx.ChannelOrCreate("messaging:general")
		b := tx.ChannelOrCreate("messaging:general")
		assert.Same(t, a, b)

		m1 := tx.MessageOrCreate("m1")
		m2 := tx.MessageOrCreate("m1")
		assert.Same(t, m1, m2)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateRollbackLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)

	sentinel := assert.AnError
	err := db.Update(func(tx *WriteTx) error {
		ch := tx.ChannelOrCreate("messaging:doomed")
		ch.Name = "doomed"
		m := tx.MessageOrCreate("m-doomed")
		m.CID = ch.CID
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	err = db.View(func(tx *ReadTx) error {
		assert.Nil(t, tx.Channel("messaging:doomed"))
		assert.Nil(t, tx.Message("m-doomed"))
		return nil
	})
	require.NoError(t, err)
}

func TestCommitIsIdempotentOnIdenticalWrite(t *testing.T) {
	db := openTestDB(t)

	write := func() error {
		return db.Update(func(tx *WriteTx) error {
			ch := tx.ChannelOrCreate("messaging:stable")
			ch.Name = "stable"
			ch.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			return nil
		})
	}
	require.NoError(t, write())

	var changes ChangeSet
	cancel := db.Subscribe(func(cs ChangeSet) { changes = cs })
	defer cancel()

	// Writing identical values must not mark anything dirty.
	require.NoError(t, write())
	assert.Empty(t, changes)
}

func TestChildChangePropagatesToAncestors(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		ch := tx.ChannelOrCreate("messaging:prop")
		m := tx.MessageOrCreate("m-prop")
		m.CID = ch.CID
		ch.MessageIDs[m.ID] = struct{}{}
		return nil
	}))

	var changes ChangeSet
	cancel := db.Subscribe(func(cs ChangeSet) { changes = cs })
	defer cancel()

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		rx := tx.ReactionOrCreate("m-prop", "u1", "like")
		rx.Score = 1
		return nil
	}))

	assert.Equal(t, ChangeCreated, changes[model.Ref{Kind: model.KindReaction, Key: model.ReactionKey("m-prop", "u1", "like")}])
	// The reaction's message and, transitively, its channel refresh even
	// though none of their own fields moved.
	assert.Equal(t, ChangeUpdated, changes[model.Ref{Kind: model.KindMessage, Key: "m-prop"}])
	assert.Equal(t, ChangeUpdated, changes[model.Ref{Kind: model.KindChannel, Key: "messaging:prop"}])
}

func TestMarkChangedNotifiesWithoutFieldWrite(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		tx.ChannelOrCreate("messaging:marked")
		return nil
	}))

	var changes ChangeSet
	cancel := db.Subscribe(func(cs ChangeSet) { changes = cs })
	defer cancel()

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		tx.MarkChanged(model.Ref{Kind: model.KindChannel, Key: "messaging:marked"})
		return nil
	}))
	assert.Equal(t, ChangeUpdated, changes[model.Ref{Kind: model.KindChannel, Key: "messaging:marked"}])
}

func TestDeleteMessageCascades(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		ch := tx.ChannelOrCreate("messaging:cascade")
		m := tx.MessageOrCreate("m-cascade")
		m.CID = ch.CID
		ch.MessageIDs[m.ID] = struct{}{}
		rx := tx.ReactionOrCreate("m-cascade", "u1", "like")
		rx.Score = 1
		agg := tx.AggregateOrCreate("m-cascade", "like")
		agg.SumScore, agg.Count = 1, 1
		a := tx.AttachmentOrCreate("m-cascade", 0)
		a.Type = "image"
		// A thread-only reply: owned by the message, outside the
		// channel's message set.
		reply := tx.MessageOrCreate("m-cascade-reply")
		reply.CID = ch.CID
		reply.ParentMessageID = m.ID
		m.ReplyIDs = append(m.ReplyIDs, reply.ID)
		m.ReplyCount = 1
		return nil
	}))

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		tx.DeleteMessage("m-cascade")
		return nil
	}))

	require.NoError(t, db.Update(func(tx *WriteTx) error {
		assert.Nil(t, tx.Message("m-cascade"))
		assert.Nil(t, tx.Message("m-cascade-reply"))
		assert.Nil(t, tx.Reaction("m-cascade", "u1", "like"))
		assert.Nil(t, tx.Aggregate("m-cascade", "like"))
		assert.Nil(t, tx.Attachment("m-cascade", 0))
		ch := tx.Channel("messaging:cascade")
		require.NotNil(t, ch)
		assert.NotContains(t, ch.MessageIDs, "m-cascade")
		return nil
	}))
}

func TestReopenRestoresCommittedState(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.StoreConfig{Path: dir, SnapshotDepth: 2}

	db, err := Open(cfg, logger.NewNop())
	require.NoError(t, err)

	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.Update(func(tx *WriteTx) error {
		ch := tx.ChannelOrCreate("messaging:durable")
		ch.Name = "durable"
		ch.CreatedAt = createdAt
		m := tx.MessageOrCreate("m-durable")
		m.CID = ch.CID
		m.Text = "still here"
		m.CreatedAt = createdAt
		ch.MessageIDs[m.ID] = struct{}{}
		return nil
	}))
	require.NoError(t, db.Close())

	db2, err := Open(cfg, logger.NewNop())
	require.NoError(t, err)
	defer db2.Close()

	require.NoError(t, db2.View(func(tx *ReadTx) error {
		ch := tx.Channel("messaging:durable")
		require.NotNil(t, ch)
		assert.Equal(t, "durable", ch.Name)
		m := tx.Message("m-durable")
		require.NotNil(t, m)
		assert.Equal(t, "still here", m.Text)
		return nil
	}))
}

func TestOpenResetsEphemeralState(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.StoreConfig{Path: dir, SnapshotDepth: 2, ResetEphemeralsOnOpen: true}

	db, err := Open(cfg, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *WriteTx) error {
		u := tx.UserOrCreate("u-online")
		u.Online = true
		ch := tx.ChannelOrCreate("messaging:busy")
		ch.WatcherIDs["u-online"] = struct{}{}
		ch.TypingUserIDs["u-online"] = struct{}{}
		ch.WatcherCount = 1
		m := tx.MessageOrCreate("m-inflight")
		m.CID = ch.CID
		m.LocalState = model.LocalStatePendingSend
		m2 := tx.MessageOrCreate("m-editing")
		m2.CID = ch.CID
		m2.LocalState = model.LocalStatePendingSync
		return nil
	}))
	require.NoError(t, db.Close())

	db2, err := Open(cfg, logger.NewNop())
	require.NoError(t, err)
	defer db2.Close()

	require.NoError(t, db2.Update(func(tx *WriteTx) error {
		assert.False(t, tx.User("u-online").Online)
		ch := tx.Channel("messaging:busy")
		assert.Empty(t, ch.WatcherIDs)
		assert.Empty(t, ch.TypingUserIDs)
		assert.Zero(t, ch.WatcherCount)
		assert.Equal(t, model.LocalStateSendingFailed, tx.Message("m-inflight").LocalState)
		assert.Equal(t, model.LocalStateSyncingFailed, tx.Message("m-editing").LocalState)
		return nil
	}))
}
