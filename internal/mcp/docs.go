package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `promptkeeper stores a personal library of reusable prompts as one shared collection.

Core concepts:
- Prompt: id, title, content, tags, favorite flag, usage count and timestamps.
- Collection: every prompt, newest first, capped (oldest entries are evicted on save).
- All clients see the same collection; changes made elsewhere show up on the next read.

Typical workflow:
1) Find: search_prompts (title, content and tags) or list_prompts / favorite_prompts / most_used_prompts.
2) Use: after inserting or copying a prompt, call increment_usage so ranking stays useful.
3) Write: save_prompt / update_prompt / toggle_favorite / delete_prompt.
4) Move data: export_prompts produces a snapshot; import_prompts merges it back (or replaces with merge=false).

Resources:
- promptkeeper://prompts (the live collection; subscribe to get notified on every change)
- promptkeeper://docs/guide (field reference and error codes)
`

// CollectionURI is the resource holding the full prompt collection.
const CollectionURI = "promptkeeper://prompts"

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "promptkeeper://docs/guide",
		Name:        "docs_guide",
		Title:       "promptkeeper guide",
		Description: "Field reference, ordering rules, import format and error codes.",
		Content: `# promptkeeper guide

## Prompt fields

| Field | Notes |
|---|---|
| ` + "`id`" + ` | Assigned on save; unique, never reused. |
| ` + "`title`" + `, ` + "`content`" + ` | Required; surrounding whitespace is trimmed. |
| ` + "`tags`" + ` | Free-form labels. Blank tags are dropped. |
| ` + "`favorite`" + ` | Toggle with ` + "`toggle_favorite`" + ` or set via ` + "`update_prompt`" + `. |
| ` + "`usageCount`" + `, ` + "`lastUsed`" + ` | Maintained by ` + "`increment_usage`" + ` only. |
| ` + "`createdAt`" + `, ` + "`updatedAt`" + ` | ISO-8601 UTC with milliseconds. |
| ` + "`importedAt`" + ` | Present on prompts that arrived through an import. |

## Ordering

- The collection is newest first. Saving or importing a prompt puts it at the front.
- When the collection is full the oldest prompts are dropped.
- ` + "`most_used_prompts`" + ` only lists prompts with usageCount > 0, highest first; ties keep collection order.

## Import

` + "`import_prompts`" + ` accepts the document returned by ` + "`export_prompts`" + `:

` + "```json" + `
{"version": "1.0", "exportDate": "2024-01-01T00:00:00.000Z", "prompts": [...]}
` + "```" + `

- Records without a title or content are reported in ` + "`errors`" + ` and skipped.
- In merge mode, records whose title and content match an existing prompt are skipped silently.
- A document that is not an object with a ` + "`prompts`" + ` array, or whose version is not 1.x, is rejected and nothing changes. The result then has ` + "`success: false`" + ` and the reason in ` + "`errors`" + `.

## Error codes

| Code | Meaning |
|---|---|
| ` + "`PROMPT_NOT_FOUND`" + ` | No prompt with that id. |
| ` + "`INVALID_INPUT`" + ` | Missing title/content or bad params. |
| ` + "`CONFLICT`" + ` | Other writers kept winning; retry. |
| ` + "`STORE_UNAVAILABLE`" + ` | The storage backend failed or timed out. |
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
