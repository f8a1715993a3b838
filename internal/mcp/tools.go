package mcp

// ToolDefinition describes one method exposed as an MCP tool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	ReadOnly    bool
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var idProperty = map[string]any{
	"type":        "string",
	"description": "Prompt ID",
}

var tagsProperty = map[string]any{
	"type":        "array",
	"description": "Free-form labels; blank entries are dropped",
	"items":       map[string]any{"type": "string"},
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Reading
		{
			Name:        "list_prompts",
			Description: "List every saved prompt, newest first",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "get_prompt",
			Description: "Get a single prompt by ID",
			InputSchema: objectSchema(map[string]any{"id": idProperty}, "id"),
			ReadOnly:    true,
		},
		{
			Name:        "search_prompts",
			Description: "Case-insensitive search over title, content and tags. An empty query returns everything",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search text",
				},
			}, "query"),
			ReadOnly: true,
		},
		{
			Name:        "most_used_prompts",
			Description: "Prompts used at least once, ordered by usage count",
			InputSchema: objectSchema(map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 10)",
				},
			}),
			ReadOnly: true,
		},
		{
			Name:        "favorite_prompts",
			Description: "Prompts marked as favorite, in collection order",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "prompt_stats",
			Description: "Count, serialized size and creation time range of the collection",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},
		{
			Name:        "export_prompts",
			Description: "Export the whole collection as a versioned snapshot document",
			InputSchema: objectSchema(map[string]any{}),
			ReadOnly:    true,
		},

		// Writing
		{
			Name:        "save_prompt",
			Description: "Save a new prompt. The oldest prompts are evicted once the collection is full",
			InputSchema: objectSchema(map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Prompt title",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Prompt text",
				},
				"tags": tagsProperty,
			}, "title", "content"),
		},
		{
			Name:        "update_prompt",
			Description: "Change title, content, tags or favorite flag of a prompt. Omitted fields are kept",
			InputSchema: objectSchema(map[string]any{
				"id": idProperty,
				"title": map[string]any{
					"type":        "string",
					"description": "New title",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "New prompt text",
				},
				"tags": tagsProperty,
				"favorite": map[string]any{
					"type":        "boolean",
					"description": "New favorite flag",
				},
			}, "id"),
		},
		{
			Name:        "delete_prompt",
			Description: "Delete a prompt. Deleting an unknown ID succeeds with removed=false",
			InputSchema: objectSchema(map[string]any{"id": idProperty}, "id"),
		},
		{
			Name:        "increment_usage",
			Description: "Record that a prompt was used (copied or inserted)",
			InputSchema: objectSchema(map[string]any{"id": idProperty}, "id"),
		},
		{
			Name:        "toggle_favorite",
			Description: "Flip the favorite flag of a prompt and return the new value",
			InputSchema: objectSchema(map[string]any{"id": idProperty}, "id"),
		},
		{
			Name:        "import_prompts",
			Description: "Import a snapshot produced by export_prompts. Merge (default) skips duplicates; merge=false replaces the collection",
			InputSchema: objectSchema(map[string]any{
				"snapshot": map[string]any{
					"type":        []string{"object", "string"},
					"description": "Export document, as an object or as JSON text",
				},
				"merge": map[string]any{
					"type":        "boolean",
					"description": "Merge into the collection instead of replacing it (default true)",
				},
			}, "snapshot"),
		},
		{
			Name:        "clear_prompts",
			Description: "Remove every prompt",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "save_selection",
			Description: "Save a text selection from a web page as a prompt titled after the page host",
			InputSchema: objectSchema(map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Address of the page the text came from",
				},
				"text": map[string]any{
					"type":        "string",
					"description": "Selected text",
				},
			}, "text"),
		},
	}
}
