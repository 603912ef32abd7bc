package store

import "github.com/Gopher0727/ChatSync/internal/model"

// ChangeKind classifies what happened to an entity in a committed
// transaction.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota + 1
	ChangeUpdated
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	}
	return "unknown"
}

// ChangeSet maps every entity touched by a commit (including propagated
// ancestors) to what happened to it.
type ChangeSet map[model.Ref]ChangeKind

// Observer receives the change set of each committed transaction, after the
// canonical state swap. Callbacks run on the committing goroutine; a
// callback issuing View observes the commit it was notified about.
type Observer func(ChangeSet)

// Subscribe registers an observer and returns its cancel function.
func (db *DB) Subscribe(fn Observer) func() {
	db.obsMu.Lock()
	id := db.nextObsID
	db.nextObsID++
	db.observers[id] = fn
	db.obsMu.Unlock()

	return func() {
		db.obsMu.Lock()
		delete(db.observers, id)
		db.obsMu.Unlock()
	}
}

func (db *DB) notify(changes ChangeSet) {
	db.obsMu.Lock()
	fns := make([]Observer, 0, len(db.observers))
	for _, fn := range db.observers {
		fns = append(fns, fn)
	}
	db.obsMu.Unlock()

	for _, fn := range fns {
		fn(changes)
	}
}
