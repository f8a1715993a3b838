package prompt

import (
	"context"
	"net/url"
	"strings"
)

// SelectionTitle names a prompt saved from a page selection.
func SelectionTitle(sourceURL string) string {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || u.Hostname() == "" {
		return "Saved selection"
	}
	return "Saved from " + u.Hostname()
}

// SaveSelection stores text selected on sourceURL as a new prompt.
func (s *Service) SaveSelection(ctx context.Context, sourceURL, text string) (*Prompt, error) {
	return s.Create(ctx, CreateRequest{
		Title:   SelectionTitle(sourceURL),
		Content: text,
	})
}
