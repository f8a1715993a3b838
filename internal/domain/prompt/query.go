package prompt

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Search returns prompts whose title, content or any tag contains query,
// case-insensitively. A blank query returns the whole collection.
func (s *Service) Search(ctx context.Context, query string) ([]Prompt, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return FilterPrompts(prompts, query), nil
}

// FilterPrompts applies the search predicate to an already loaded collection.
func FilterPrompts(prompts []Prompt, query string) []Prompt {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return prompts
	}

	return lo.Filter(prompts, func(p Prompt, _ int) bool {
		return strings.Contains(strings.ToLower(p.Title), term) ||
			strings.Contains(strings.ToLower(p.Content), term) ||
			lo.SomeBy(p.Tags, func(tag string) bool {
				return strings.Contains(strings.ToLower(tag), term)
			})
	})
}

// MostUsed returns used prompts ordered by usageCount descending. Ties
// keep collection order. limit <= 0 means DefaultMostUsed.
func (s *Service) MostUsed(ctx context.Context, limit int) ([]Prompt, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return RankByUsage(prompts, limit), nil
}

// RankByUsage is the MostUsed ordering over an already loaded collection.
func RankByUsage(prompts []Prompt, limit int) []Prompt {
	if limit <= 0 {
		limit = DefaultMostUsed
	}

	used := lo.Filter(prompts, func(p Prompt, _ int) bool {
		return p.UsageCount > 0
	})
	slices.SortStableFunc(used, func(a, b Prompt) int {
		return b.UsageCount - a.UsageCount
	})

	if len(used) > limit {
		used = used[:limit]
	}
	return used
}

// Favorites returns favorite prompts in collection order.
func (s *Service) Favorites(ctx context.Context) ([]Prompt, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(prompts, func(p Prompt, _ int) bool {
		return p.Favorite
	}), nil
}

// Stats summarizes the current collection.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStats(prompts)
}

// ComputeStats summarizes a loaded collection. Sizes are in bytes of the
// serialized collection.
func ComputeStats(prompts []Prompt) (*Stats, error) {
	encoded, err := EncodeCollection(prompts)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Count:     len(prompts),
		TotalSize: len(encoded),
	}
	if len(prompts) == 0 {
		return stats, nil
	}

	stats.AverageSize = int(math.Round(float64(stats.TotalSize) / float64(len(prompts))))

	created := lo.Map(prompts, func(p Prompt, _ int) time.Time {
		return p.CreatedAt.Time
	})
	oldest := lo.MinBy(created, func(a, b time.Time) bool { return a.Before(b) })
	newest := lo.MaxBy(created, func(a, b time.Time) bool { return a.After(b) })
	stats.OldestCreatedAt = &oldest
	stats.NewestCreatedAt = &newest

	return stats, nil
}
