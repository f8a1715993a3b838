package repository

import "context"

// Entry is a stored value and the revision it was written at.
// A Revision of 0 means the key has never been written.
type Entry struct {
	Key      string
	Value    []byte
	Revision int64
}

// Exists reports whether the entry holds a committed value.
func (e Entry) Exists() bool {
	return e.Revision > 0
}

// Change is emitted by Watch after a value is committed.
type Change struct {
	Key      string
	Value    []byte
	Revision int64
}

// KVStore is a durable key-value store shared by every process that
// opens the same backend. Writes are whole-value replacements guarded
// by a revision check.
type KVStore interface {
	// Get returns the current entry. Missing keys yield a zero-revision
	// entry and a nil error.
	Get(ctx context.Context, key string) (Entry, error)
	// CompareAndSwap writes value if the stored revision still equals
	// expectedRevision and returns the new revision. It returns
	// ErrConflict when another writer got there first.
	CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error)
	// Watch streams committed changes to key until ctx is done.
	Watch(ctx context.Context, key string) (<-chan Change, error)
	// Close releases backend resources.
	Close() error
}
