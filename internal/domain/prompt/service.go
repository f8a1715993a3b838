package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/promptkeeper/internal/repository"
)

// Service owns the prompt collection. Every mutation is a read-modify-write
// of the whole collection guarded by the store's revision.
type Service struct {
	store  Store
	logger *slog.Logger
	opts   Options
	ids    idGenerator

	// mu serializes mutations issued from this process.
	mu sync.Mutex
}

// NewService creates a new prompt service.
func NewService(store Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  store,
		logger: logger.With("service", "prompt"),
		opts:   opts.withDefaults(),
	}
}

// Key returns the store key holding the collection.
func (s *Service) Key() string {
	return s.opts.Key
}

// MaxPrompts returns the collection cap.
func (s *Service) MaxPrompts() int {
	return s.opts.MaxPrompts
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

func (s *Service) load(ctx context.Context) ([]Prompt, int64, error) {
	entry, err := s.store.Get(ctx, s.opts.Key)
	if err != nil {
		return nil, 0, storeError("reading collection", err)
	}
	prompts, err := DecodeCollection(entry.Value)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptCollection, err)
	}
	return prompts, entry.Revision, nil
}

// mutate applies fn to a fresh copy of the collection and writes the result
// if the stored revision is unchanged, retrying on conflict. fn may run more
// than once and must not retain the slice it is given. Returning errNoChange
// from fn skips the write.
func (s *Service) mutate(ctx context.Context, op string, fn func([]Prompt) ([]Prompt, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		current, revision, err := s.load(ctx)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			return err
		}

		next = truncate(next, s.opts.MaxPrompts)
		value, err := EncodeCollection(next)
		if err != nil {
			return fmt.Errorf("encoding collection: %w", err)
		}

		_, err = s.store.CompareAndSwap(ctx, s.opts.Key, value, revision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return storeError(op, err)
		}

		if attempt+1 >= s.opts.MaxRetries {
			s.logger.Warn("giving up after write conflicts", "op", op, "attempts", attempt+1)
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		s.logger.Debug("write conflict, retrying", "op", op, "attempt", attempt+1, "revision", revision)

		select {
		case <-ctx.Done():
			return storeError(op, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * s.opts.RetryBackoff):
		}
	}
}

// read loads the collection under the operation timeout.
func (s *Service) read(ctx context.Context) ([]Prompt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	prompts, _, err := s.load(ctx)
	return prompts, err
}

// GetAll returns the full collection, newest first.
func (s *Service) GetAll(ctx context.Context) ([]Prompt, error) {
	return s.read(ctx)
}

// Get returns the prompt with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Prompt, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(prompts, id)
	if idx < 0 {
		return nil, ErrPromptNotFound
	}
	p := prompts[idx]
	return &p, nil
}

// Create validates and prepends a new prompt, evicting the oldest entries
// beyond the cap.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Prompt, error) {
	if err := ValidateCreateInput(req); err != nil {
		return nil, err
	}

	var created Prompt
	err := s.mutate(ctx, "create", func(prompts []Prompt) ([]Prompt, error) {
		now := NewTimestamp(s.now())
		created = Prompt{
			ID:         s.ids.next(now.Time),
			Title:      strings.TrimSpace(req.Title),
			Content:    strings.TrimSpace(req.Content),
			CreatedAt:  now,
			UpdatedAt:  now,
			UsageCount: 0,
			Tags:       normalizeTags(req.Tags),
			Favorite:   false,
		}
		return prepend(prompts, created), nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating prompt: %w", err)
	}

	s.logger.Info("prompt created", "id", created.ID)
	return &created, nil
}

// Update merges patch into the prompt and refreshes updatedAt. Identity,
// creation time and usage data are never changed here.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Prompt, error) {
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}

	var updated Prompt
	err := s.mutate(ctx, "update", func(prompts []Prompt) ([]Prompt, error) {
		idx := indexOf(prompts, id)
		if idx < 0 {
			return nil, ErrPromptNotFound
		}

		p := prompts[idx].clone()
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Content != nil {
			p.Content = strings.TrimSpace(*patch.Content)
		}
		if patch.Tags != nil {
			p.Tags = normalizeTags(*patch.Tags)
		}
		if patch.Favorite != nil {
			p.Favorite = *patch.Favorite
		}
		p.UpdatedAt = NewTimestamp(s.now())

		prompts[idx] = p
		updated = p
		return prompts, nil
	})
	if err != nil {
		if errors.Is(err, ErrPromptNotFound) {
			s.logger.Warn("prompt not found", "op", "update", "id", id)
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("updating prompt: %w", err)
	}

	return &updated, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := s.mutate(ctx, "toggle_favorite", func(prompts []Prompt) ([]Prompt, error) {
		idx := indexOf(prompts, id)
		if idx < 0 {
			return nil, ErrPromptNotFound
		}
		prompts[idx].Favorite = !prompts[idx].Favorite
		prompts[idx].UpdatedAt = NewTimestamp(s.now())
		favorite = prompts[idx].Favorite
		return prompts, nil
	})
	if err != nil {
		if errors.Is(err, ErrPromptNotFound) {
			s.logger.Warn("prompt not found", "op", "toggle_favorite", "id", id)
			return false, ErrPromptNotFound
		}
		return false, fmt.Errorf("toggling favorite: %w", err)
	}
	return favorite, nil
}

// Delete removes the prompt. Deleting a missing id is a no-op that still
// succeeds; the returned bool reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, "delete", func(prompts []Prompt) ([]Prompt, error) {
		idx := indexOf(prompts, id)
		if idx < 0 {
			removed = false
			return nil, errNoChange
		}
		removed = true
		return append(prompts[:idx], prompts[idx+1:]...), nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting prompt: %w", err)
	}
	return removed, nil
}

// IncrementUsage bumps usageCount and stamps lastUsed.
func (s *Service) IncrementUsage(ctx context.Context, id string) (*Prompt, error) {
	var used Prompt
	err := s.mutate(ctx, "increment_usage", func(prompts []Prompt) ([]Prompt, error) {
		idx := indexOf(prompts, id)
		if idx < 0 {
			return nil, ErrPromptNotFound
		}
		now := NewTimestamp(s.now())
		prompts[idx].UsageCount++
		prompts[idx].LastUsed = &now
		used = prompts[idx].clone()
		return prompts, nil
	})
	if err != nil {
		if errors.Is(err, ErrPromptNotFound) {
			s.logger.Warn("prompt not found", "op", "increment_usage", "id", id)
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("incrementing usage: %w", err)
	}
	return &used, nil
}

// Clear replaces the collection with an empty one.
func (s *Service) Clear(ctx context.Context) error {
	err := s.mutate(ctx, "clear", func([]Prompt) ([]Prompt, error) {
		return []Prompt{}, nil
	})
	if err != nil {
		return fmt.Errorf("clearing prompts: %w", err)
	}
	s.logger.Info("prompts cleared")
	return nil
}

func indexOf(prompts []Prompt, id string) int {
	for i := range prompts {
		if prompts[i].ID == id {
			return i
		}
	}
	return -1
}

func prepend(prompts []Prompt, p Prompt) []Prompt {
	out := make([]Prompt, 0, len(prompts)+1)
	out = append(out, p)
	return append(out, prompts...)
}

func truncate(prompts []Prompt, max int) []Prompt {
	if len(prompts) > max {
		return prompts[:max]
	}
	return prompts
}

func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
