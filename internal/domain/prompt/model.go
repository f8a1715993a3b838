package prompt

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimeLayout is the persisted timestamp format: ISO-8601 UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a time.Time that serializes with TimeLayout
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC at millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimeLayout))
}

// UnmarshalJSON accepts any RFC 3339 string; null and "" leave t zero.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Prompt is a saved, reusable text template
type Prompt struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CreatedAt  Timestamp  `json:"createdAt"`
	UpdatedAt  Timestamp  `json:"updatedAt"`
	UsageCount int        `json:"usageCount"`
	LastUsed   *Timestamp `json:"lastUsed,omitempty"`
	Tags       []string   `json:"tags"`
	Favorite   bool       `json:"favorite"`
	ImportedAt *Timestamp `json:"importedAt,omitempty"`
}

// CreateRequest defines prompt creation inputs.
type CreateRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Patch lists the fields an update may change. Nil fields are preserved.
type Patch struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Favorite *bool     `json:"favorite,omitempty"`
}

// SnapshotVersion is written into every export.
const SnapshotVersion = "1.0"

// Snapshot is the export/import document
type Snapshot struct {
	Version    string    `json:"version"`
	ExportDate Timestamp `json:"exportDate"`
	Prompts    []Prompt  `json:"prompts"`
}

// ImportResult reports the outcome of an import
type ImportResult struct {
	Success       bool     `json:"success"`
	ImportedCount int      `json:"importedCount"`
	Errors        []string `json:"errors"`
}

// Stats summarizes the stored collection
type Stats struct {
	Count           int        `json:"count"`
	TotalSize       int        `json:"totalSize"`
	AverageSize     int        `json:"averageSize"`
	OldestCreatedAt *time.Time `json:"oldestCreatedAt"`
	NewestCreatedAt *time.Time `json:"newestCreatedAt"`
}

func (p Prompt) clone() Prompt {
	out := p
	out.Tags = append([]string{}, p.Tags...)
	if p.LastUsed != nil {
		v := *p.LastUsed
		out.LastUsed = &v
	}
	if p.ImportedAt != nil {
		v := *p.ImportedAt
		out.ImportedAt = &v
	}
	return out
}

// DecodeCollection parses a stored collection. Empty input is an empty collection.
func DecodeCollection(data []byte) ([]Prompt, error) {
	prompts := []Prompt{}
	if len(bytes.TrimSpace(data)) == 0 {
		return prompts, nil
	}
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []Prompt{}
	}
	for i := range prompts {
		if prompts[i].Tags == nil {
			prompts[i].Tags = []string{}
		}
	}
	return prompts, nil
}

// EncodeCollection serializes a collection in its persisted form.
func EncodeCollection(prompts []Prompt) ([]byte, error) {
	if prompts == nil {
		prompts = []Prompt{}
	}
	for i := range prompts {
		if prompts[i].Tags == nil {
			prompts[i].Tags = []string{}
		}
	}
	return json.Marshal(prompts)
}
