// Package store implements the transactional entity arena backing the local
// chat replica: identity-keyed storage with at most one live instance per
// natural key, single-writer atomic transactions, pebble-backed durability,
// and commit-time change propagation to registered observers.
package store

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/config"
	logger "github.com/Gopher0727/ChatSync/middleware/log"
	"github.com/Gopher0727/ChatSync/internal/model"
)

// state is the canonical in-memory object graph: one map per entity kind,
// keyed by natural key. It is only mutated at commit time, under db.mu.
type state struct {
	channels    map[string]*model.Channel
	messages    map[string]*model.Message
	users       map[string]*model.User
	members     map[string]*model.Member
	reads       map[string]*model.ChannelRead
	reactions   map[string]*model.Reaction
	aggregates  map[string]*model.ReactionAggregate
	attachments map[string]*model.Attachment
}

func newState() *state {
	return &state{
		channels:    map[string]*model.Channel{},
		messages:    map[string]*model.Message{},
		users:       map[string]*model.User{},
		members:     map[string]*model.Member{},
		reads:       map[string]*model.ChannelRead{},
		reactions:   map[string]*model.Reaction{},
		aggregates:  map[string]*model.ReactionAggregate{},
		attachments: map[string]*model.Attachment{},
	}
}

// DB is the store handle. Writes are serialized through writeMu; reads take
// mu.RLock and observe only committed state.
type DB struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *state

	pdb *pebble.DB
	log *logger.Logger

	snapshotDepth int

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// Open opens (or creates) the pebble database at cfg.Path, rehydrates the
// arena from it, and runs the ephemeral-reset pass before returning, so no
// stale presence or typing state survives a cold start.
func Open(cfg *config.StoreConfig, log *logger.Logger) (*DB, error) {
	log.Info("opening_store", zap.String("path", cfg.Path))
	pdb, err := pebble.Open(cfg.Path, &pebble.Options{})
	if err != nil {
		log.Error("store_open_failed", zap.String("path", cfg.Path), zap.Error(err))
		return nil, err
	}

	depth := cfg.SnapshotDepth
	if depth <= 0 {
		depth = 2
	}

	db := &DB{
		state:         newState(),
		pdb:           pdb,
		log:           log,
		snapshotDepth: depth,
		observers:     map[int]Observer{},
	}

	if err := db.loadAll(); err != nil {
		_ = pdb.Close()
		return nil, err
	}

	if cfg.ResetEphemeralsOnOpen {
		if err := db.resetEphemeralState(); err != nil {
			_ = pdb.Close()
			return nil, err
		}
	}

	log.Info("store_opened",
		zap.Int("channels", len(db.state.channels)),
		zap.Int("messages", len(db.state.messages)),
		zap.Int("users", len(db.state.users)))
	return db, nil
}

// Close closes the underlying pebble database.
func (db *DB) Close() error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if db.pdb == nil {
		return nil
	}
	err := db.pdb.Close()
	db.pdb = nil
	db.log.Info("store_closed")
	return err
}

// Update runs fn inside the single write transaction. Any error returned by
// fn rolls back every uncommitted change: no partial graph mutation
// survives. The transaction overlay and any dedup cache built inside fn are
// dropped on both paths.
func (db *DB) Update(fn func(tx *WriteTx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx := newWriteTx(db)
	if err := fn(tx); err != nil {
		tx.discard()
		return err
	}
	return tx.commit()
}

// View runs fn against committed state under a read lock. A View issued
// after Update returns is guaranteed to observe that update
// (write-then-read semantics); observer callbacks are the relaxed path.
func (db *DB) View(fn func(tx *ReadTx) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&ReadTx{db: db, depth: db.snapshotDepth})
}

// resetEphemeralState clears values that must not survive a process
// restart: user presence, watcher and typing sets, and local message states
// stuck mid-send. Runs as one atomic pass.
func (db *DB) resetEphemeralState() error {
	return db.Update(func(tx *WriteTx) error {
		for _, id := range tx.userIDs() {
			u := tx.User(id)
			if u != nil && u.Online {
				u.Online = false
			}
		}
		for _, cid := range tx.channelCIDs() {
			ch := tx.Channel(cid)
			if ch == nil {
				continue
			}
			if len(ch.WatcherIDs) > 0 || len(ch.TypingUserIDs) > 0 || ch.WatcherCount != 0 {
				ch.WatcherIDs = map[string]struct{}{}
				ch.TypingUserIDs = map[string]struct{}{}
				ch.WatcherCount = 0
			}
		}
		for _, id := range tx.messageIDs() {
			m := tx.Message(id)
			if m == nil {
				continue
			}
			switch m.LocalState {
			case model.LocalStatePendingSend:
				m.LocalState = model.LocalStateSendingFailed
			case model.LocalStatePendingSync:
				m.LocalState = model.LocalStateSyncingFailed
			}
		}
		return nil
	})
}
