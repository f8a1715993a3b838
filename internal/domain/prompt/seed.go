package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/promptkeeper/internal/repository"
)

// SamplePrompts are inserted the first time a store is initialised.
var SamplePrompts = []CreateRequest{
	{
		Title: "Code Review Request",
		Content: "Please review the following code and provide feedback on:\n" +
			"1. Code quality and best practices\n" +
			"2. Potential bugs or issues\n" +
			"3. Performance optimizations\n" +
			"4. Readability improvements\n\n" +
			"Code:\n[Paste your code here]",
	},
	{
		Title: "Explain Like I'm 5",
		Content: "Please explain the following concept in very simple terms, " +
			"as if you're explaining it to a 5-year-old child.\n\n[Insert topic here]",
	},
	{
		Title: "Professional Email",
		Content: "Please help me write a professional email with the following details:\n\n" +
			"To: [Recipient]\n" +
			"Subject: [Subject]\n" +
			"Context: [Brief context]\n" +
			"Purpose: [What you want to achieve]\n" +
			"Tone: [Professional/Friendly/Formal]",
	},
}

func (s *Service) installedKey() string {
	return s.opts.Key + ":installed"
}

// releasedMarker re-arms seeding after a failed attempt.
var releasedMarker = []byte("null")

// Seed inserts SamplePrompts once per store. The installed marker is
// claimed before inserting so concurrent processes seed at most once; a
// failed insert releases it again. Returns true when this call performed
// the seeding.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	current, err := s.store.Get(claimCtx, s.installedKey())
	if err != nil {
		return false, storeError("reading install marker", err)
	}
	if current.Exists() && !bytes.Equal(current.Value, releasedMarker) {
		return false, nil
	}

	marker := []byte(fmt.Sprintf("%q", NewTimestamp(s.now()).Format(TimeLayout)))
	claimed, err := s.store.CompareAndSwap(claimCtx, s.installedKey(), marker, current.Revision)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, storeError("claiming install marker", err)
	}

	err = s.mutate(ctx, "seed", func(prompts []Prompt) ([]Prompt, error) {
		now := NewTimestamp(s.now())
		for _, req := range SamplePrompts {
			prompts = prepend(prompts, Prompt{
				ID:        s.ids.next(now.Time),
				Title:     req.Title,
				Content:   req.Content,
				CreatedAt: now,
				UpdatedAt: now,
				Tags:      []string{},
			})
		}
		return prompts, nil
	})
	if err != nil {
		s.releaseMarker(ctx, claimed)
		return false, fmt.Errorf("seeding prompts: %w", err)
	}

	s.logger.Info("sample prompts initialized", "count", len(SamplePrompts))
	return true, nil
}

func (s *Service) releaseMarker(ctx context.Context, revision int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.OpTimeout)
	defer cancel()

	if _, err := s.store.CompareAndSwap(ctx, s.installedKey(), releasedMarker, revision); err != nil {
		s.logger.Warn("releasing install marker failed", "error", err)
	}
}
