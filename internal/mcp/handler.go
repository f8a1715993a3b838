package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/promptkeeper/internal/domain/prompt"
)

// PromptService defines the prompt operations exposed over MCP and JSON-RPC.
type PromptService interface {
	GetAll(ctx context.Context) ([]prompt.Prompt, error)
	Get(ctx context.Context, id string) (*prompt.Prompt, error)
	Create(ctx context.Context, req prompt.CreateRequest) (*prompt.Prompt, error)
	Update(ctx context.Context, id string, patch prompt.Patch) (*prompt.Prompt, error)
	Delete(ctx context.Context, id string) (bool, error)
	IncrementUsage(ctx context.Context, id string) (*prompt.Prompt, error)
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string) ([]prompt.Prompt, error)
	MostUsed(ctx context.Context, limit int) ([]prompt.Prompt, error)
	Favorites(ctx context.Context) ([]prompt.Prompt, error)
	Export(ctx context.Context) (*prompt.Snapshot, error)
	Import(ctx context.Context, data []byte, merge bool) (prompt.ImportResult, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*prompt.Stats, error)
	SaveSelection(ctx context.Context, sourceURL, text string) (*prompt.Prompt, error)
}

// Handler dispatches method calls to the prompt service. MCP tools and the
// JSON-RPC endpoint share it so both surfaces behave identically.
type Handler struct {
	prompts PromptService
}

// NewHandler creates a Handler.
func NewHandler(prompts PromptService) *Handler {
	return &Handler{prompts: prompts}
}

// Handle routes method calls to the appropriate service operation.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "list_prompts":
		prompts, err := h.prompts.GetAll(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(prompts), nil
	case "get_prompt":
		var req GetPromptParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		p, err := h.prompts.Get(ctx, req.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return p, nil
	case "save_prompt":
		var req SavePromptParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		p, err := h.prompts.Create(ctx, prompt.CreateRequest{
			Title:   req.Title,
			Content: req.Content,
			Tags:    req.Tags,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return p, nil
	case "update_prompt":
		var req UpdatePromptParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		p, err := h.prompts.Update(ctx, req.ID, prompt.Patch{
			Title:    req.Title,
			Content:  req.Content,
			Tags:     req.Tags,
			Favorite: req.Favorite,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return p, nil
	case "delete_prompt":
		var req PromptIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		removed, err := h.prompts.Delete(ctx, req.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return DeletePromptResponse{ID: req.ID, Removed: removed}, nil
	case "increment_usage":
		var req PromptIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		p, err := h.prompts.IncrementUsage(ctx, req.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return p, nil
	case "toggle_favorite":
		var req PromptIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		favorite, err := h.prompts.ToggleFavorite(ctx, req.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return ToggleFavoriteResponse{ID: req.ID, Favorite: favorite}, nil
	case "search_prompts":
		var req SearchPromptsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		prompts, err := h.prompts.Search(ctx, req.Query)
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(prompts), nil
	case "most_used_prompts":
		var req MostUsedParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		prompts, err := h.prompts.MostUsed(ctx, req.Limit)
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(prompts), nil
	case "favorite_prompts":
		prompts, err := h.prompts.Favorites(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(prompts), nil
	case "export_prompts":
		snapshot, err := h.prompts.Export(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return snapshot, nil
	case "import_prompts":
		var req ImportPromptsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		data, err := snapshotBytes(req.Snapshot)
		if err != nil {
			return nil, err
		}
		merge := req.Merge == nil || *req.Merge
		result, err := h.prompts.Import(ctx, data, merge)
		if errors.Is(err, prompt.ErrMalformedSnapshot) {
			// A rejected document is reported in the result, not as a call failure.
			return result, nil
		}
		if err != nil {
			return nil, mapError(err)
		}
		return result, nil
	case "clear_prompts":
		if err := h.prompts.Clear(ctx); err != nil {
			return nil, mapError(err)
		}
		return StatusResponse{Status: "cleared"}, nil
	case "prompt_stats":
		stats, err := h.prompts.Stats(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return stats, nil
	case "save_selection":
		var req SaveSelectionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		p, err := h.prompts.SaveSelection(ctx, req.URL, req.Text)
		if err != nil {
			return nil, mapError(err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return mapError(fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}
	return nil
}

// snapshotBytes unwraps a snapshot passed as a JSON string; objects are
// used as-is.
func snapshotBytes(raw json.RawMessage) ([]byte, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, mapError(fmt.Errorf("%w: %v", ErrInvalidParams, err))
		}
		return []byte(text), nil
	}
	return raw, nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
