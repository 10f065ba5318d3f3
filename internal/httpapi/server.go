// Package httpapi serves the loopback control API: status, manual toggle,
// dismiss and query submission for sessions where the global hotkey cannot
// bind.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/logging"
)

// Service is the engine surface the API layer needs.
type Service interface {
	Status() domain.EngineStatus
	Toggle()
	Dismiss()
	Submit(text string)
}

// Server wraps the HTTP listener around the engine.
type Server struct {
	addr   string
	logger *zap.Logger
	http   *http.Server
}

// NewServer builds the control API server. An empty addr falls back to the
// loopback default.
func NewServer(addr string, svc Service, logger *zap.Logger) *Server {
	if addr == "" {
		addr = domain.DefaultListenAddr
	}
	logger = logging.NopIfNil(logger)
	return &Server{
		addr:   addr,
		logger: logger,
		http: &http.Server{
			Addr:              addr,
			Handler:           NewMux(svc, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control api listen %s: %w", s.addr, err)
	}
	s.logger.Info("control api listening", zap.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewMux builds the route table.
func NewMux(svc Service, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logging.NopIfNil(logger)))
	r.Use(MetricsMiddleware)
	r.Use(noSniff)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/v1/toggle", func(w http.ResponseWriter, _ *http.Request) {
		svc.Toggle()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/v1/dismiss", func(w http.ResponseWriter, _ *http.Request) {
		svc.Dismiss()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/v1/query", handleQuery(svc))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type queryRequest struct {
	Text string `json:"text"`
}

func handleQuery(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, "text is required")
			return
		}
		// The engine drops submissions while hidden; tell the caller up
		// front instead of accepting a no-op.
		if !svc.Status().State.Occupied() {
			writeJSONError(w, http.StatusConflict, "prompt is hidden, toggle first")
			return
		}
		svc.Submit(req.Text)
		w.WriteHeader(http.StatusAccepted)
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
