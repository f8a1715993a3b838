package mcp

import (
	"encoding/json"

	"github.com/rpggio/promptkeeper/internal/domain/prompt"
)

type GetPromptParams struct {
	ID string `json:"id"`
}

type SavePromptParams struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type UpdatePromptParams struct {
	ID       string    `json:"id"`
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Favorite *bool     `json:"favorite,omitempty"`
}

type PromptIDParams struct {
	ID string `json:"id"`
}

type SearchPromptsParams struct {
	Query string `json:"query"`
}

type MostUsedParams struct {
	Limit int `json:"limit,omitempty"`
}

// ImportPromptsParams carries an export document either as a JSON object
// or as a JSON string holding the document text. Merge defaults to true.
type ImportPromptsParams struct {
	Snapshot json.RawMessage `json:"snapshot"`
	Merge    *bool           `json:"merge,omitempty"`
}

type SaveSelectionParams struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type PromptListResponse struct {
	Prompts []prompt.Prompt `json:"prompts"`
	Count   int             `json:"count"`
}

type DeletePromptResponse struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

type ToggleFavoriteResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func listResponse(prompts []prompt.Prompt) PromptListResponse {
	if prompts == nil {
		prompts = []prompt.Prompt{}
	}
	return PromptListResponse{Prompts: prompts, Count: len(prompts)}
}
