package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/mcp"
	"github.com/rpggio/promptkeeper/internal/memory"
	"github.com/rpggio/promptkeeper/internal/propagation"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store   *memory.Store
	svc     *prompt.Service
	server  *sdkmcp.Server
	session *sdkmcp.ClientSession
	updates chan string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	svc := prompt.NewService(store, nil, prompt.Options{})
	server := mcp.NewServer(mcp.Config{Prompts: svc, TransportMode: "stdio"})

	h := &harness{store: store, svc: svc, server: server, updates: make(chan string, 16)}

	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "v0.0.1"}, &sdkmcp.ClientOptions{
		ResourceUpdatedHandler: func(_ context.Context, req *sdkmcp.ResourceUpdatedNotificationRequest) {
			h.updates <- req.Params.URI
		},
	})
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	h.session = session

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
		_ = store.Close()
	})
	return h
}

func (h *harness) callTool(t *testing.T, name string, args map[string]any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func resultText(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ListsAllTools(t *testing.T) {
	h := newHarness(t)

	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{
		"list_prompts", "save_prompt", "update_prompt", "delete_prompt",
		"increment_usage", "toggle_favorite", "search_prompts", "most_used_prompts",
		"favorite_prompts", "export_prompts", "import_prompts", "clear_prompts",
		"prompt_stats", "save_selection",
	} {
		require.True(t, names[name], name)
	}
}

func TestServer_SaveThenReadCollection(t *testing.T) {
	h := newHarness(t)

	res := h.callTool(t, "save_prompt", map[string]any{"title": "Greeting", "content": "Say hi"})
	require.False(t, res.IsError)

	var saved prompt.Prompt
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &saved))
	require.Equal(t, "Greeting", saved.Title)

	read, err := h.session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: mcp.CollectionURI})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)

	prompts, err := prompt.DecodeCollection([]byte(read.Contents[0].Text))
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Equal(t, saved.ID, prompts[0].ID)
}

func TestServer_ToolErrorsAreResults(t *testing.T) {
	h := newHarness(t)

	res := h.callTool(t, "toggle_favorite", map[string]any{"id": "missing"})
	require.True(t, res.IsError)

	var apiErr mcp.APIError
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &apiErr))
	require.Equal(t, "PROMPT_NOT_FOUND", apiErr.Code)
}

func TestServer_ReadsGuide(t *testing.T) {
	h := newHarness(t)

	read, err := h.session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "promptkeeper://docs/guide"})
	require.NoError(t, err)
	require.Contains(t, read.Contents[0].Text, "PROMPT_NOT_FOUND")
}

func TestServer_NotifiesSubscribersOfChanges(t *testing.T) {
	h := newHarness(t)

	hub := propagation.NewHub(h.store, h.svc.Key(), nil)
	stop, err := mcp.NotifyCollectionChanges(hub, h.server)
	require.NoError(t, err)
	t.Cleanup(stop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-hub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub not ready")
	}

	require.NoError(t, h.session.Subscribe(context.Background(), &sdkmcp.SubscribeParams{URI: mcp.CollectionURI}))

	// A write from another service on the same store still reaches the client.
	other := prompt.NewService(h.store, nil, prompt.Options{})
	_, err = other.Create(context.Background(), prompt.CreateRequest{Title: "t", Content: "c"})
	require.NoError(t, err)

	select {
	case uri := <-h.updates:
		require.Equal(t, mcp.CollectionURI, uri)
	case <-time.After(2 * time.Second):
		t.Fatal("no resource update received")
	}
}

func TestServer_RejectsUnknownSubscription(t *testing.T) {
	h := newHarness(t)
	err := h.session.Subscribe(context.Background(), &sdkmcp.SubscribeParams{URI: "promptkeeper://docs/guide"})
	require.Error(t, err)
}
