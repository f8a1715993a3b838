package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpggio/promptkeeper/internal/repository"
)

// DefaultPollInterval is how often Watch checks for commits made by
// other processes sharing the database file.
const DefaultPollInterval = 500 * time.Millisecond

// KVStore implements repository.KVStore for SQLite
type KVStore struct {
	db           *DB
	pollInterval time.Duration

	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

// NewKVStore creates a new KVStore. The caller keeps ownership of db.
func NewKVStore(db *DB, pollInterval time.Duration) *KVStore {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &KVStore{
		db:           db,
		pollInterval: pollInterval,
		watchers:     make(map[string]map[chan struct{}]struct{}),
	}
}

// Get retrieves the entry stored under key
func (s *KVStore) Get(ctx context.Context, key string) (repository.Entry, error) {
	query := `SELECT value, revision FROM kv_entries WHERE key = ?`

	entry := repository.Entry{Key: key}
	err := s.db.QueryRowContext(ctx, query, key).Scan(&entry.Value, &entry.Revision)
	if err == sql.ErrNoRows {
		return repository.Entry{Key: key}, nil
	}
	if err != nil {
		return repository.Entry{}, s.wrap("failed to get entry", err)
	}

	return entry, nil
}

// CompareAndSwap writes value when the stored revision matches expectedRevision
func (s *KVStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error) {
	if key == "" || expectedRevision < 0 {
		return 0, repository.ErrInvalidInput
	}

	now := time.Now().UTC()
	if expectedRevision == 0 {
		query := `INSERT INTO kv_entries (key, value, revision, updated_at) VALUES (?, ?, 1, ?)`
		if _, err := s.db.ExecContext(ctx, query, key, value, now); err != nil {
			if isUniqueViolation(err) {
				return 0, repository.ErrConflict
			}
			return 0, s.wrap("failed to insert entry", err)
		}
		s.notify(key)
		return 1, nil
	}

	query := `
		UPDATE kv_entries
		SET value = ?, revision = revision + 1, updated_at = ?
		WHERE key = ? AND revision = ?
	`
	result, err := s.db.ExecContext(ctx, query, value, now, key, expectedRevision)
	if err != nil {
		return 0, s.wrap("failed to update entry", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Either the key vanished or its revision moved on.
	if rowsAffected == 0 {
		return 0, repository.ErrConflict
	}

	s.notify(key)
	return expectedRevision + 1, nil
}

// Watch polls key for revision changes. Local commits wake the poller
// immediately; commits from other processes are seen on the next tick.
func (s *KVStore) Watch(ctx context.Context, key string) (<-chan repository.Change, error) {
	current, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	wake := make(chan struct{}, 1)
	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan struct{}]struct{})
	}
	s.watchers[key][wake] = struct{}{}
	s.mu.Unlock()

	out := make(chan repository.Change, 16)
	go func() {
		defer close(out)
		defer s.unregister(key, wake)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		lastRevision := current.Revision
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-wake:
			}

			entry, err := s.Get(ctx, key)
			if err != nil || entry.Revision == lastRevision {
				continue
			}
			lastRevision = entry.Revision

			select {
			case out <- repository.Change{Key: key, Value: entry.Value, Revision: entry.Revision}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the database handle belongs to the caller.
func (s *KVStore) Close() error {
	return nil
}

func (s *KVStore) notify(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for wake := range s.watchers[key] {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (s *KVStore) unregister(key string, wake chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[key], wake)
	if len(s.watchers[key]) == 0 {
		delete(s.watchers, key)
	}
}

func (s *KVStore) wrap(msg string, err error) error {
	if isBusy(err) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %v", msg, repository.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
