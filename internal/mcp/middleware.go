package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	contextIDHeader  = "X-Context-Id"
	contextIDMetaKey = "context_id"
)

var errUnauthorized = errors.New("unauthorized")

// caller identifies who issued a request. Client comes from the API key,
// ContextID is a free-form label such as a browser tab.
type caller struct {
	Client    string
	ContextID string
}

type callerKey struct{}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

func withCaller(ctx context.Context, update func(*caller)) context.Context {
	c := callerFrom(ctx)
	update(&c)
	return context.WithValue(ctx, callerKey{}, c)
}

func getClient(ctx context.Context) string    { return callerFrom(ctx).Client }
func getContextID(ctx context.Context) string { return callerFrom(ctx).ContextID }

// ClientResolver resolves a client name from a bearer token.
type ClientResolver interface {
	ResolveClient(ctx context.Context, token string) (string, error)
}

// publicMethod reports whether method is part of the protocol handshake and
// may run before a client is known.
func publicMethod(method string) bool {
	switch method {
	case "initialize", "ping":
		return true
	}
	return strings.HasPrefix(method, "notifications/")
}

func bearerToken(req sdkmcp.Request) string {
	extra := req.GetExtra()
	if extra == nil || extra.Header == nil {
		return ""
	}
	auth := extra.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// authMiddleware rejects every prompt operation whose bearer token does
// not resolve to a client.
func authMiddleware(resolver ClientResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if publicMethod(method) {
				return next(ctx, method, req)
			}

			token := bearerToken(req)
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", errUnauthorized)
			}
			client, err := resolver.ResolveClient(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errUnauthorized, err)
			}
			if client == "" {
				return nil, fmt.Errorf("%w: unknown token", errUnauthorized)
			}

			ctx = withCaller(ctx, func(c *caller) { c.Client = client })
			return next(ctx, method, req)
		}
	}
}

// noAuthMiddleware attributes every request to client.
func noAuthMiddleware(client string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = withCaller(ctx, func(c *caller) { c.Client = client })
			return next(ctx, method, req)
		}
	}
}

// contextIDMiddleware labels the request with the X-Context-Id header, or
// with _meta.context_id when there are no headers (stdio).
func contextIDMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			id := ""
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				id = extra.Header.Get(contextIDHeader)
			}
			if id == "" {
				id = metaString(req, contextIDMetaKey)
			}
			if id != "" {
				ctx = withCaller(ctx, func(c *caller) { c.ContextID = id })
			}
			return next(ctx, method, req)
		}
	}
}

// metaString reads a string from the request's _meta. Params of some
// notifications are typed nils whose GetMeta panics.
func metaString(req sdkmcp.Request, key string) (value string) {
	params := req.GetParams()
	if params == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			value = ""
		}
	}()
	value, _ = params.GetMeta()[key].(string)
	return value
}

// writeAuditMiddleware logs every tool call that changed the collection,
// attributed to the caller. Failed calls are logged at warn.
func writeAuditMiddleware(logger *slog.Logger, writeTools map[string]bool) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			result, err := next(ctx, method, req)
			if method != "tools/call" {
				return result, err
			}

			params, ok := req.GetParams().(*sdkmcp.CallToolParamsRaw)
			if !ok || params == nil {
				return result, err
			}
			c := callerFrom(ctx)
			attrs := []any{"tool", params.Name, "client", c.Client, "context_id", c.ContextID}

			if res, ok := result.(*sdkmcp.CallToolResult); err != nil || (ok && res != nil && res.IsError) {
				logger.Warn("prompt tool failed", append(attrs, "error", toolFailure(err, res))...)
				return result, err
			}
			if writeTools[params.Name] {
				logger.Info("prompt collection written", attrs...)
			}
			return result, err
		}
	}
}

func toolFailure(err error, res *sdkmcp.CallToolResult) string {
	if err != nil {
		return err.Error()
	}
	if res != nil && len(res.Content) > 0 {
		if text, ok := res.Content[0].(*sdkmcp.TextContent); ok {
			return text.Text
		}
	}
	return "unknown"
}

// writeToolNames lists catalog tools that modify the collection.
func writeToolNames(catalog []ToolDefinition) map[string]bool {
	names := make(map[string]bool)
	for _, def := range catalog {
		if !def.ReadOnly {
			names[def.Name] = true
		}
	}
	return names
}
