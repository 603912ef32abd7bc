// Package repository implements the upsert engine: payload-to-entity merge
// for every entity kind, the conflict-resolution guards protecting local
// state, the reaction aggregation engine, the attachment lifecycle and the
// derived channel views. Every write runs inside one atomic store
// transaction; referential and precondition failures abort it, while
// per-item decode problems degrade and log instead.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/internal/store"
	logger "github.com/Gopher0727/ChatSync/middleware/log"
)

var (
	// Referential errors: the operation names a parent that must already
	// exist locally.
	ErrChannelNotFound = errors.New("channel not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")

	// Precondition errors: required ambient context is missing.
	ErrNoCurrentUser = errors.New("no current user in session")
	ErrNoDevice      = errors.New("no device registered")

	ErrInvalidPayload = errors.New("invalid payload")
)

// Repository is the save/query surface the sync layer talks to.
type Repository struct {
	db  *store.DB
	log *logger.Logger
}

// New wires a repository over an open store.
func New(db *store.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// DB exposes the underlying store for read access and observer
// subscription.
func (r *Repository) DB() *store.DB {
	return r.db
}

// sanitizeBlob validates an opaque JSON blob (entity extra data, attachment
// payloads). A malformed blob never aborts a save: it falls back to an
// empty object and is logged. The murmur3 content hash rides along so
// callers can detect changed blobs without byte comparison.
func (r *Repository) sanitizeBlob(ctx context.Context, raw json.RawMessage, entity, key string) (json.RawMessage, uint64) {
	if len(raw) == 0 {
		return nil, 0
	}
	if !json.Valid(raw) {
		r.log.WarnContext(ctx, "extra_data_decode_failed",
			zap.String("entity", entity),
			zap.String("key", key))
		fallback := json.RawMessage(`{}`)
		return fallback, murmur3.Sum64(fallback)
	}
	return raw, murmur3.Sum64(raw)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
