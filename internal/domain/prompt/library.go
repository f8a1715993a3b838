package prompt

import (
	"context"
	"errors"
	"log/slog"
)

// Library is the fail-soft face of Service for consumers that only need
// success flags. Errors are logged and never returned: reads degrade to
// empty results and writes to false.
type Library struct {
	svc    *Service
	logger *slog.Logger
}

// NewLibrary wraps svc.
func NewLibrary(svc *Service, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Library{svc: svc, logger: logger.With("component", "library")}
}

// Service returns the wrapped service.
func (l *Library) Service() *Service {
	return l.svc
}

func (l *Library) absorb(op string, err error) {
	if errors.Is(err, ErrPromptNotFound) {
		l.logger.Warn("prompt not found", "op", op)
		return
	}
	l.logger.Error("prompt operation failed", "op", op, "error", err)
}

// GetAll returns the collection or an empty slice.
func (l *Library) GetAll(ctx context.Context) []Prompt {
	prompts, err := l.svc.GetAll(ctx)
	if err != nil {
		l.absorb("get_all", err)
		return []Prompt{}
	}
	return prompts
}

// Create saves a new prompt. The prompt is nil when ok is false.
func (l *Library) Create(ctx context.Context, req CreateRequest) (*Prompt, bool) {
	p, err := l.svc.Create(ctx, req)
	if err != nil {
		l.absorb("create", err)
		return nil, false
	}
	return p, true
}

func (l *Library) Update(ctx context.Context, id string, patch Patch) bool {
	if _, err := l.svc.Update(ctx, id, patch); err != nil {
		l.absorb("update", err)
		return false
	}
	return true
}

// Delete reports success for missing ids too.
func (l *Library) Delete(ctx context.Context, id string) bool {
	if _, err := l.svc.Delete(ctx, id); err != nil {
		l.absorb("delete", err)
		return false
	}
	return true
}

func (l *Library) IncrementUsage(ctx context.Context, id string) bool {
	if _, err := l.svc.IncrementUsage(ctx, id); err != nil {
		l.absorb("increment_usage", err)
		return false
	}
	return true
}

func (l *Library) ToggleFavorite(ctx context.Context, id string) bool {
	if _, err := l.svc.ToggleFavorite(ctx, id); err != nil {
		l.absorb("toggle_favorite", err)
		return false
	}
	return true
}

func (l *Library) Search(ctx context.Context, query string) []Prompt {
	prompts, err := l.svc.Search(ctx, query)
	if err != nil {
		l.absorb("search", err)
		return []Prompt{}
	}
	return prompts
}

func (l *Library) MostUsed(ctx context.Context, limit int) []Prompt {
	prompts, err := l.svc.MostUsed(ctx, limit)
	if err != nil {
		l.absorb("most_used", err)
		return []Prompt{}
	}
	return prompts
}

func (l *Library) Favorites(ctx context.Context) []Prompt {
	prompts, err := l.svc.Favorites(ctx)
	if err != nil {
		l.absorb("favorites", err)
		return []Prompt{}
	}
	return prompts
}

// Export returns the indented snapshot, or nil on failure.
func (l *Library) Export(ctx context.Context) []byte {
	data, err := l.svc.ExportJSON(ctx)
	if err != nil {
		l.absorb("export", err)
		return nil
	}
	return data
}

// Import always returns a result; failures are reported inside it.
func (l *Library) Import(ctx context.Context, data []byte, merge bool) ImportResult {
	result, err := l.svc.Import(ctx, data, merge)
	if err != nil {
		l.absorb("import", err)
	}
	return result
}

func (l *Library) Clear(ctx context.Context) bool {
	if err := l.svc.Clear(ctx); err != nil {
		l.absorb("clear", err)
		return false
	}
	return true
}

// Stats returns nil on failure.
func (l *Library) Stats(ctx context.Context) *Stats {
	stats, err := l.svc.Stats(ctx)
	if err != nil {
		l.absorb("stats", err)
		return nil
	}
	return stats
}

func (l *Library) SaveSelection(ctx context.Context, sourceURL, text string) bool {
	if _, err := l.svc.SaveSelection(ctx, sourceURL, text); err != nil {
		l.absorb("save_selection", err)
		return false
	}
	return true
}

// Seed reports whether sample prompts were inserted by this call.
func (l *Library) Seed(ctx context.Context) bool {
	seeded, err := l.svc.Seed(ctx)
	if err != nil {
		l.absorb("seed", err)
		return false
	}
	return seeded
}
