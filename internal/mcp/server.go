package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/propagation"
)

// Config contains server configuration.
type Config struct {
	Prompts       PromptService
	Resolver      ClientResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools, resources
// and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "promptkeeper",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions:       serverInstructions,
		Logger:             cfg.Logger,
		SubscribeHandler:   subscribeHandler,
		UnsubscribeHandler: unsubscribeHandler,
	})

	registerDocResources(server)
	registerCollectionResource(server, cfg.Prompts)

	// Stdio is local only and never authenticates.
	identify := noAuthMiddleware("local")
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		identify = authMiddleware(cfg.Resolver)
	}
	// Listed outermost first, so the loggers see the resolved caller.
	server.AddReceivingMiddleware(
		identify,
		contextIDMiddleware(),
		writeAuditMiddleware(cfg.Logger, writeToolNames(buildToolCatalog())),
		trafficLoggingMiddleware(cfg.Logger, "inbound"),
	)
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, NewHandler(cfg.Prompts))

	return server
}

func registerTools(server *sdkmcp.Server, handler *Handler) {
	for _, def := range buildToolCatalog() {
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
			Annotations: &sdkmcp.ToolAnnotations{ReadOnlyHint: def.ReadOnly},
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}

			result, err := handler.Handle(ctx, def.Name, args)
			if err != nil {
				return toolError(err), nil
			}
			return toolResult(result)
		})
	}
}

func toolResult(result any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content:           []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		StructuredContent: json.RawMessage(data),
	}, nil
}

func toolError(err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if apiErr == nil {
		apiErr = &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func registerCollectionResource(server *sdkmcp.Server, prompts PromptService) {
	server.AddResource(&sdkmcp.Resource{
		URI:         CollectionURI,
		Name:        "prompts",
		Title:       "Prompt collection",
		Description: "Every saved prompt as a JSON array, newest first. Subscribe to be notified of changes.",
		MIMEType:    "application/json",
	}, func(ctx context.Context, _ *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		all, err := prompts.GetAll(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		data, err := prompt.EncodeCollection(all)
		if err != nil {
			return nil, err
		}
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{
				URI:      CollectionURI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	})
}

func subscribeHandler(_ context.Context, req *sdkmcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || req.Params.URI != CollectionURI {
		return fmt.Errorf("%w: only %s supports subscriptions", ErrInvalidParams, CollectionURI)
	}
	return nil
}

func unsubscribeHandler(context.Context, *sdkmcp.UnsubscribeRequest) error {
	return nil
}

// ChangeSource delivers the collection after every committed change.
type ChangeSource interface {
	Subscribe(name string, handler propagation.Handler) (func(), error)
}

// NotifyCollectionChanges forwards every change from source to sessions
// subscribed to CollectionURI. The returned function stops forwarding.
func NotifyCollectionChanges(source ChangeSource, server *sdkmcp.Server) (func(), error) {
	return source.Subscribe("mcp", func(ctx context.Context, _ []prompt.Prompt) error {
		return server.ResourceUpdated(ctx, &sdkmcp.ResourceUpdatedNotificationParams{URI: CollectionURI})
	})
}
