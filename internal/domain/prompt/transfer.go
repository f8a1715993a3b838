package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const invalidRecordMessage = "Invalid prompt: missing title or content"

// Export returns a snapshot of the whole collection.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	prompts, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting prompts: %w", err)
	}
	return &Snapshot{
		Version:    SnapshotVersion,
		ExportDate: NewTimestamp(s.now()),
		Prompts:    prompts,
	}, nil
}

// ExportJSON returns the snapshot as indented JSON.
func (s *Service) ExportJSON(ctx context.Context) ([]byte, error) {
	snapshot, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// importDocument is the lenient shape accepted on import.
type importDocument struct {
	Version string            `json:"version"`
	Prompts []json.RawMessage `json:"prompts"`
}

// importRecord mirrors Prompt with optional fields so absent values can be
// defaulted. Incoming ids are ignored.
type importRecord struct {
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CreatedAt  *Timestamp `json:"createdAt"`
	UpdatedAt  *Timestamp `json:"updatedAt"`
	UsageCount int        `json:"usageCount"`
	LastUsed   *Timestamp `json:"lastUsed"`
	Tags       []string   `json:"tags"`
	Favorite   bool       `json:"favorite"`
}

// parseSnapshot validates the document envelope. Any failure here means
// nothing is imported.
func parseSnapshot(data []byte) (*importDocument, error) {
	var doc *importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedSnapshot)
	}
	if !supportedVersion(doc.Version) {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedSnapshot, doc.Version)
	}
	return doc, nil
}

// supportedVersion accepts a missing version or any 1.x version.
func supportedVersion(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	major, _, _ := strings.Cut(v, ".")
	return major == "1"
}

// Import adds the snapshot's prompts to the collection (merge) or replaces
// the collection with them. Invalid records are skipped with an error
// message; records equal in title and content to one already present are
// skipped silently. A malformed document leaves the collection untouched.
func (s *Service) Import(ctx context.Context, data []byte, merge bool) (ImportResult, error) {
	doc, err := parseSnapshot(data)
	if err != nil {
		s.logger.Warn("rejected import", "error", err)
		return ImportResult{Success: false, ImportedCount: 0, Errors: []string{err.Error()}}, err
	}

	var result ImportResult
	err = s.mutate(ctx, "import", func(current []Prompt) ([]Prompt, error) {
		result = ImportResult{Success: true, Errors: []string{}}

		target := []Prompt{}
		if merge {
			target = current
		}

		now := NewTimestamp(s.now())
		for _, raw := range doc.Prompts {
			var rec importRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Invalid prompt: %v", err))
				continue
			}

			title := strings.TrimSpace(rec.Title)
			content := strings.TrimSpace(rec.Content)
			if title == "" || content == "" {
				result.Errors = append(result.Errors, invalidRecordMessage)
				continue
			}

			if containsPrompt(target, title, content) {
				continue
			}

			target = prepend(target, rec.toPrompt(s.ids.next(now.Time), title, content, now))
			result.ImportedCount++
		}

		if merge && result.ImportedCount == 0 {
			return nil, errNoChange
		}
		return target, nil
	})
	if err != nil {
		err = fmt.Errorf("importing prompts: %w", err)
		return ImportResult{Success: false, ImportedCount: 0, Errors: []string{err.Error()}}, err
	}

	s.logger.Info("prompts imported", "imported", result.ImportedCount, "rejected", len(result.Errors), "merge", merge)
	return result, nil
}

func (r importRecord) toPrompt(id, title, content string, now Timestamp) Prompt {
	p := Prompt{
		ID:         id,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		UsageCount: max(r.UsageCount, 0),
		LastUsed:   r.LastUsed,
		Tags:       normalizeTags(r.Tags),
		Favorite:   r.Favorite,
		ImportedAt: &now,
	}
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		p.CreatedAt = *r.CreatedAt
	}
	if r.UpdatedAt != nil && !r.UpdatedAt.IsZero() {
		p.UpdatedAt = *r.UpdatedAt
	}
	if p.LastUsed != nil && p.LastUsed.IsZero() {
		p.LastUsed = nil
	}
	return p
}

func containsPrompt(prompts []Prompt, title, content string) bool {
	for i := range prompts {
		if prompts[i].Title == title && prompts[i].Content == content {
			return true
		}
	}
	return false
}
