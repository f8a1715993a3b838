// Package testserver runs the complete HTTP surface (JSON-RPC and MCP)
// over an in-memory SQLite store for end-to-end tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/promptkeeper/internal/config"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/mcp"
	"github.com/rpggio/promptkeeper/internal/propagation"
	"github.com/rpggio/promptkeeper/internal/sqlite"
	"github.com/rpggio/promptkeeper/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Store   *sqlite.KVStore
	Service *prompt.Service
	Hub     *propagation.Hub
	Token   string
}

// New starts a server that accepts token as its only bearer credential.
func New(t *testing.T, token string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	store := sqlite.NewKVStore(db, 20*time.Millisecond)
	svc := prompt.NewService(store, nil, prompt.Options{})
	hub := propagation.NewHub(store, svc.Key(), nil)

	keys := []config.APIKey{{Client: "test", KeyHash: config.HashToken(token)}}
	resolver := transport.NewKeyResolver(keys)

	mcpServer := mcp.NewServer(mcp.Config{
		Prompts:       svc,
		Resolver:      resolver,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	stopNotify, err := mcp.NotifyCollectionChanges(hub, mcpServer)
	require.NoError(t, err)

	router := transport.NewServer(mcp.NewHandler(svc), transport.AuthMiddleware(resolver), nil)
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		nil,
	)
	router.Handle("/mcp", mcpHandler)
	server := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	select {
	case <-hub.Ready():
	case err := <-hubDone:
		t.Fatalf("hub stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub not ready")
	}

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-hubDone
		stopNotify()
		_ = db.Close()
	})

	return &TestServer{
		Server:  server,
		DB:      db,
		Store:   store,
		Service: svc,
		Hub:     hub,
		Token:   token,
	}
}

// HTTPClient returns a client that sends the server's bearer token.
func (ts *TestServer) HTTPClient() *http.Client {
	return &http.Client{Transport: bearerTransport{token: ts.Token, base: http.DefaultTransport}}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}
