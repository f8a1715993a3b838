package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/promptkeeper/internal/mcp"
)

// MethodHandler handles method dispatch.
type MethodHandler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Server wires HTTP handlers.
type Server struct {
	handler MethodHandler
	logger  *slog.Logger
}

// NewServer creates an HTTP router serving JSON-RPC on /rpc and a health
// check on /health. Further routes (such as the MCP endpoint) can be
// mounted on the returned router.
func NewServer(handler MethodHandler, authMiddleware func(http.Handler) http.Handler, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}
	r.Use(ContextIDMiddleware)

	srv := &Server{handler: handler, logger: logger.With("component", "jsonrpc")}

	r.Post("/rpc", srv.handleRPC)
	r.Get("/health", srv.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, errInvalidRequest) {
			WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
			return
		}
		WriteError(w, nil, ErrParseCode, "parse error", nil)
		return
	}

	client, _ := ClientFromContext(r.Context())
	contextID, _ := ContextIDFromContext(r.Context())
	s.logger.Debug("rpc request", "method", req.Method, "client", client, "context_id", contextID)

	result, err := s.handler.Handle(r.Context(), req.Method, req.Params)
	if err != nil {
		s.logger.Warn("rpc failed", "method", req.Method, "client", client, "context_id", contextID, "error", err)
		writeHandlerError(w, req.ID, err)
		return
	}

	WriteResult(w, req.ID, result)
}

func writeHandlerError(w http.ResponseWriter, id any, err error) {
	if errors.Is(err, mcp.ErrUnknownMethod) {
		WriteError(w, id, ErrMethodNotFound, err.Error(), nil)
		return
	}
	apiErr := mcp.MapError(err)
	if apiErr == nil {
		WriteError(w, id, ErrInternal, err.Error(), nil)
		return
	}
	code := ErrApplication
	if apiErr.Code == "INVALID_INPUT" {
		code = ErrInvalidParams
	}
	WriteError(w, id, code, apiErr.Message, apiErr)
}
