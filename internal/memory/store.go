package memory

import (
	"context"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/rpggio/promptkeeper/internal/repository"
)

// watchBuffer bounds how many undelivered changes a watcher may hold.
const watchBuffer = 16

type item struct {
	value    []byte
	revision int64
}

// Store is an in-process repository.KVStore. Changes are only visible to
// watchers in the same process.
type Store struct {
	cache *cache.Cache

	mu       sync.Mutex
	watchers map[string]map[chan repository.Change]struct{}
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		cache:    cache.New(cache.NoExpiration, 0),
		watchers: make(map[string]map[chan repository.Change]struct{}),
	}
}

func (s *Store) load(key string) (item, bool) {
	if x, found := s.cache.Get(key); found {
		return x.(item), true
	}
	return item{}, false
}

// Get retrieves the entry stored under key
func (s *Store) Get(ctx context.Context, key string) (repository.Entry, error) {
	if err := ctx.Err(); err != nil {
		return repository.Entry{}, err
	}

	s.mu.Lock()
	it, found := s.load(key)
	s.mu.Unlock()

	entry := repository.Entry{Key: key}
	if !found {
		return entry, nil
	}
	entry.Value = append([]byte(nil), it.value...)
	entry.Revision = it.revision
	return entry, nil
}

// CompareAndSwap writes value when the stored revision matches expectedRevision
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error) {
	if key == "" || expectedRevision < 0 {
		return 0, repository.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.load(key)
	if current.revision != expectedRevision {
		return 0, repository.ErrConflict
	}

	next := item{value: append([]byte(nil), value...), revision: current.revision + 1}
	s.cache.Set(key, next, cache.NoExpiration)

	change := repository.Change{Key: key, Value: next.value, Revision: next.revision}
	for ch := range s.watchers[key] {
		offerLatest(ch, change)
	}

	return next.revision, nil
}

// offerLatest queues change on ch, evicting the oldest queued change when
// the watcher is full. Callers hold s.mu, so the retry cannot lose the slot.
func offerLatest(ch chan repository.Change, change repository.Change) {
	select {
	case ch <- change:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- change:
	default:
	}
}

// Watch registers for changes to key until ctx is done.
func (s *Store) Watch(ctx context.Context, key string) (<-chan repository.Change, error) {
	ch := make(chan repository.Change, watchBuffer)

	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan repository.Change]struct{})
	}
	s.watchers[key][ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[key], ch)
		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
		close(ch)
	}()

	return ch, nil
}

// Close drops all entries.
func (s *Store) Close() error {
	s.cache.Flush()
	return nil
}
