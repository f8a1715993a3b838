package mcp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/memory"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is a bytes.Buffer safe for the server's logging goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type staticResolver map[string]string

func (r staticResolver) ResolveClient(_ context.Context, token string) (string, error) {
	return r[token], nil
}

func callerRecorder(seen *caller) sdkmcp.MethodHandler {
	return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		*seen = callerFrom(ctx)
		return &sdkmcp.CallToolResult{}, nil
	}
}

func toolRequest(header http.Header) *sdkmcp.CallToolRequest {
	return &sdkmcp.CallToolRequest{
		Params: &sdkmcp.CallToolParamsRaw{Name: "list_prompts"},
		Extra:  &sdkmcp.RequestExtra{Header: header},
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := authMiddleware(staticResolver{"secret": "browser"})
	ctx := context.Background()

	var seen caller
	handler := auth(callerRecorder(&seen))

	_, err := handler(ctx, "tools/call", toolRequest(http.Header{"Authorization": {"Bearer secret"}}))
	require.NoError(t, err)
	require.Equal(t, "browser", seen.Client)

	_, err = handler(ctx, "tools/call", toolRequest(http.Header{"Authorization": {"Bearer wrong"}}))
	require.ErrorIs(t, err, errUnauthorized)

	_, err = handler(ctx, "resources/read", toolRequest(nil))
	require.ErrorIs(t, err, errUnauthorized)

	// The handshake runs before any token is checked.
	_, err = handler(ctx, "initialize", toolRequest(nil))
	require.NoError(t, err)
}

func TestContextIDMiddleware(t *testing.T) {
	var seen caller
	handler := noAuthMiddleware("local")(contextIDMiddleware()(callerRecorder(&seen)))

	_, err := handler(context.Background(), "tools/call", toolRequest(http.Header{contextIDHeader: {"tab-1"}}))
	require.NoError(t, err)
	require.Equal(t, caller{Client: "local", ContextID: "tab-1"}, seen)

	req := toolRequest(nil)
	req.Params.Meta = sdkmcp.Meta{contextIDMetaKey: "tab-2"}
	_, err = handler(context.Background(), "tools/call", req)
	require.NoError(t, err)
	require.Equal(t, "tab-2", seen.ContextID)

	// Typed-nil params must not panic.
	_, err = handler(context.Background(), "notifications/initialized", &sdkmcp.InitializedRequest{})
	require.NoError(t, err)
	require.Empty(t, seen.ContextID)
}

func TestWriteAuditMiddleware(t *testing.T) {
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store := memory.NewStore()
	t.Cleanup(func() { _ = store.Close() })
	server := NewServer(Config{
		Prompts:       prompt.NewService(store, nil, prompt.Options{}),
		TransportMode: "stdio",
		Logger:        logger,
	})

	ctx := context.Background()
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	session, err := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "v0.0.1"}, nil).Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})

	_, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Meta:      sdkmcp.Meta{contextIDMetaKey: "tab-9"},
		Name:      "save_prompt",
		Arguments: map[string]any{"title": "t", "content": "c"},
	})
	require.NoError(t, err)
	require.Contains(t, logs.String(), `"msg":"prompt collection written","tool":"save_prompt","client":"local","context_id":"tab-9"`)

	logs.Reset()
	_, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "list_prompts"})
	require.NoError(t, err)
	require.NotContains(t, logs.String(), "prompt collection written")

	_, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "increment_usage", Arguments: map[string]any{"id": "missing"}})
	require.NoError(t, err)
	require.Contains(t, logs.String(), `"msg":"prompt tool failed","tool":"increment_usage"`)
}

func TestWriteToolNames(t *testing.T) {
	names := writeToolNames(buildToolCatalog())
	require.True(t, names["save_prompt"])
	require.True(t, names["import_prompts"])
	require.False(t, names["list_prompts"])
	require.False(t, names["export_prompts"])
}

func TestToolFailure(t *testing.T) {
	require.Equal(t, "boom", toolFailure(errors.New("boom"), nil))
	require.Equal(t, "bad", toolFailure(nil, &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "bad"}}}))
	require.Equal(t, "unknown", toolFailure(nil, nil))
}
