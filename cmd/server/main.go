package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/promptkeeper/internal/backend"
	"github.com/rpggio/promptkeeper/internal/config"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/logging"
	"github.com/rpggio/promptkeeper/internal/mcp"
	"github.com/rpggio/promptkeeper/internal/propagation"
	"github.com/rpggio/promptkeeper/internal/transport"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("PROMPTKEEPER_LOG_PATH"); logPath != "" {
		fileWriter, err := logging.OpenFile(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := logging.New(cfg.Log, logWriter)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := prompt.NewService(store, logger, prompt.Options{
		Key:        cfg.Store.Key,
		MaxPrompts: cfg.Repository.MaxPrompts,
		OpTimeout:  cfg.Repository.OpTimeout,
		MaxRetries: cfg.Repository.MaxRetries,
	})

	seeded, err := svc.Seed(ctx)
	if err != nil {
		logger.Warn("seeding sample prompts failed", "error", err)
	} else if seeded {
		logger.Info("sample prompts installed")
	}

	hub := propagation.NewHub(store, svc.Key(), logger)

	mcpServer := mcp.NewServer(mcp.Config{
		Prompts:       svc,
		Resolver:      transport.NewKeyResolver(cfg.Auth.Keys),
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})
	stopNotify, err := mcp.NotifyCollectionChanges(hub, mcpServer)
	if err != nil {
		return err
	}
	defer stopNotify()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})

	if cfg.Transport.Mode == "stdio" {
		g.Go(func() error {
			// Stdin closing ends the process just like a signal does.
			defer stop()
			return runStdio(gctx, logger, mcpServer)
		})
	} else {
		handler := newHTTPHandler(cfg, logger, svc, mcpServer)
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		g.Go(func() error {
			return serveHTTP(gctx, logger, addr, handler)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStdio(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")
	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func newHTTPHandler(cfg config.Config, logger *slog.Logger, svc *prompt.Service, mcpServer *sdkmcp.Server) http.Handler {
	var auth func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(transport.NewKeyResolver(cfg.Auth.Keys))
	}

	router := transport.NewServer(mcp.NewHandler(svc), auth, logger)

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/*", mcpHandler)

	return router
}

func serveHTTP(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
