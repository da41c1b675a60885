package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const maxBodyBytes = 1 << 20

// Handler dispatches JSON-RPC methods.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// CodedError is implemented by application errors that carry a stable code.
type CodedError interface {
	error
	CodeValue() string
	MessageValue() string
	DetailsValue() any
	RecoveryHintValue() string
}

// Options configures the HTTP router.
type Options struct {
	AllowedOrigins []string
	// MCP, when set, is mounted at /mcp (streamable HTTP transport).
	MCP http.Handler
	// Health reports backing store reachability for /health.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler Handler
	health  func(ctx context.Context) error
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(handler Handler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
			ExposedHeaders: []string{"Mcp-Session-Id"},
			MaxAge:         300,
		}))
	}

	srv := &Server{handler: handler, health: opts.Health, logger: logger}

	r.Post("/rpc", srv.handleRPC)
	r.Get("/health", srv.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		code := ErrInvalidReq
		if errors.Is(err, ErrParse) {
			code = ErrParseCode
		}
		WriteError(w, nil, code, err.Error(), nil)
		return
	}

	result, err := s.handler.Handle(r.Context(), req.Method, req.Params)
	if req.IsNotification() {
		if err != nil {
			s.logger.Warn("rpc notification failed", "method", req.Method, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeHandlerError(w, req, err)
		return
	}

	WriteResult(w, req.ID, result)
}

func (s *Server) writeHandlerError(w http.ResponseWriter, req Request, err error) {
	var coded CodedError
	if !errors.As(err, &coded) {
		s.logger.Error("rpc method failed", "method", req.Method, "error", err)
		WriteError(w, req.ID, ErrInternal, "internal error", nil)
		return
	}

	data := ErrorData{
		Code:         coded.CodeValue(),
		Details:      coded.DetailsValue(),
		RecoveryHint: coded.RecoveryHintValue(),
	}
	WriteError(w, req.ID, rpcCode(coded.CodeValue()), coded.MessageValue(), data)
}

// rpcCode maps application error codes onto JSON-RPC error codes.
func rpcCode(code string) int {
	switch code {
	case "METHOD_NOT_FOUND":
		return ErrMethodNotFound
	case "INVALID_INPUT", "INVALID_INTERVAL":
		return ErrInvalidParams
	default:
		return ErrApplication
	}
}
