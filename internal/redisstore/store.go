// Package redisstore implements repository.KVStore on Redis. Writes are
// guarded with WATCH/MULTI and announced on a pub/sub channel so every
// process sharing the server sees commits from the others.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/promptkeeper/internal/repository"
)

// DefaultChannel is the pub/sub channel used for change announcements.
const DefaultChannel = "promptkeeper:changes"

// changeMessage is the payload published after each committed write.
type changeMessage struct {
	Key      string          `json:"key"`
	Revision int64           `json:"revision"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// Store implements repository.KVStore for Redis
type Store struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
	owned   bool
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb *redis.Client, channel string, logger *slog.Logger) *Store {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With("component", "redisstore"),
	}
}

// Open connects to the server at url and verifies it answers PING.
func Open(ctx context.Context, url, channel string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w: %v", repository.ErrUnavailable, err)
	}

	store := New(rdb, channel, logger)
	store.owned = true
	return store, nil
}

func revisionKey(key string) string {
	return key + ":rev"
}

// Get retrieves the entry stored under key
func (s *Store) Get(ctx context.Context, key string) (repository.Entry, error) {
	values, err := s.rdb.MGet(ctx, key, revisionKey(key)).Result()
	if err != nil {
		return repository.Entry{}, unavailable("failed to get entry", err)
	}

	entry := repository.Entry{Key: key}
	if values[0] == nil || values[1] == nil {
		return entry, nil
	}

	raw, ok := values[0].(string)
	if !ok {
		return repository.Entry{}, fmt.Errorf("unexpected value type %T for %s", values[0], key)
	}
	rawRevision, _ := values[1].(string)
	revision, err := strconv.ParseInt(rawRevision, 10, 64)
	if err != nil {
		return repository.Entry{}, fmt.Errorf("invalid revision for %s: %w", key, err)
	}

	entry.Value = []byte(raw)
	entry.Revision = revision
	return entry, nil
}

// CompareAndSwap writes value when the stored revision matches expectedRevision
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedRevision int64) (int64, error) {
	if key == "" || expectedRevision < 0 {
		return 0, repository.ErrInvalidInput
	}

	revKey := revisionKey(key)
	var newRevision int64

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, revKey).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}

		if current != expectedRevision {
			return repository.ErrConflict
		}

		newRevision = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, 0)
			pipe.Set(ctx, revKey, newRevision, 0)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, key, revKey)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return 0, repository.ErrConflict
	default:
		return 0, unavailable("failed to write entry", err)
	}

	s.publish(ctx, key, value, newRevision)
	return newRevision, nil
}

// publish announces a committed write. The write already succeeded, so
// failures are logged and swallowed; watchers catch up on the next change.
func (s *Store) publish(ctx context.Context, key string, value []byte, revision int64) {
	msg := changeMessage{Key: key, Revision: revision}
	if json.Valid(value) {
		msg.Value = json.RawMessage(value)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to encode change message", "key", key, "error", err)
		return
	}

	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish change", "key", key, "revision", revision, "error", err)
	}
}

// Watch subscribes to the change channel and emits changes for key.
func (s *Store) Watch(ctx context.Context, key string) (<-chan repository.Change, error) {
	current, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	sub := s.rdb.Subscribe(ctx, s.channel)
	// Wait for the subscription confirmation so no publish is missed after
	// Watch returns.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, unavailable("failed to subscribe", err)
	}

	out := make(chan repository.Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		lastRevision := current.Revision
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-messages:
				if !ok {
					return
				}

				var msg changeMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					s.logger.Warn("ignoring malformed change message", "error", err)
					continue
				}
				if msg.Key != key || msg.Revision <= lastRevision {
					continue
				}

				change := repository.Change{Key: key, Value: msg.Value, Revision: msg.Revision}
				if change.Value == nil {
					entry, err := s.Get(ctx, key)
					if err != nil {
						s.logger.Warn("failed to load changed entry", "key", key, "error", err)
						continue
					}
					change.Value = entry.Value
					change.Revision = entry.Revision
				}
				lastRevision = change.Revision

				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the client when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

func unavailable(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %v", msg, repository.ErrUnavailable, err)
}
