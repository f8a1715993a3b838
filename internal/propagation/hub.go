// Package propagation rebroadcasts changes of the stored prompt collection
// to every interested consumer in the process.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/repository"
)

// Topic carries the full collection after each committed change.
const Topic = "prompts.changed"

const revisionMetadata = "revision"

// ErrWatchClosed is returned by Run when the store ends the watch stream.
var ErrWatchClosed = errors.New("store watch closed")

// Watcher is the part of the store the hub consumes.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan repository.Change, error)
}

// Handler receives the new collection. Errors are logged and dropped.
type Handler func(ctx context.Context, prompts []prompt.Prompt) error

// Hub fans store changes out to subscribers. Delivery is best effort: a
// subscriber that fails, panics or lags never affects the others.
type Hub struct {
	store  Watcher
	key    string
	logger *slog.Logger
	pubSub *gochannel.GoChannel

	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
}

// NewHub creates a hub for key. Call Run to start consuming changes.
func NewHub(store Watcher, key string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		store:  store,
		key:    key,
		logger: logger.With("component", "propagation"),
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16},
			watermill.NewStdLogger(false, false),
		),
		ready: make(chan struct{}),
	}
}

// Ready is closed once Run has established the store watch.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Subscribe registers handler under name. The returned function stops
// delivery and waits for an in-flight handler call to finish.
func (h *Hub) Subscribe(name string, handler Handler) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	messages, err := h.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing %s: %w", name, err)
	}

	done := make(chan struct{})
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer close(done)

		var lastRevision int64
		for msg := range messages {
			revision, _ := strconv.ParseInt(msg.Metadata.Get(revisionMetadata), 10, 64)
			if revision > 0 && revision <= lastRevision {
				msg.Ack()
				continue
			}
			lastRevision = revision

			h.deliver(ctx, name, handler, msg)
			msg.Ack()
		}
	}()

	h.logger.Debug("subscriber added", "subscriber", name)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			h.logger.Debug("subscriber removed", "subscriber", name)
		})
	}, nil
}

func (h *Hub) deliver(ctx context.Context, name string, handler Handler, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("subscriber panicked", "subscriber", name, "panic", r)
		}
	}()

	// Each subscriber decodes its own copy.
	prompts, err := prompt.DecodeCollection(msg.Payload)
	if err != nil {
		h.logger.Warn("dropping undecodable change", "subscriber", name, "error", err)
		return
	}

	if err := handler(ctx, prompts); err != nil {
		h.logger.Warn("subscriber failed", "subscriber", name, "error", err)
	}
}

// Run consumes the store watch until ctx is done, then closes the bus.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		if err := h.pubSub.Close(); err != nil {
			h.logger.Warn("closing pubsub", "error", err)
		}
		h.wg.Wait()
	}()

	changes, err := h.store.Watch(ctx, h.key)
	if err != nil {
		return fmt.Errorf("watching %s: %w", h.key, err)
	}
	h.readyOnce.Do(func() { close(h.ready) })
	h.logger.Info("propagation started", "key", h.key)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrWatchClosed
			}
			h.publish(change)
		}
	}
}

func (h *Hub) publish(change repository.Change) {
	if _, err := prompt.DecodeCollection(change.Value); err != nil {
		h.logger.Warn("skipping malformed collection", "revision", change.Revision, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), message.Payload(change.Value))
	msg.Metadata.Set(revisionMetadata, strconv.FormatInt(change.Revision, 10))

	if err := h.pubSub.Publish(Topic, msg); err != nil {
		h.logger.Warn("publishing change", "revision", change.Revision, "error", err)
		return
	}
	h.logger.Debug("change published", "revision", change.Revision)
}
