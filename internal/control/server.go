// Package control serves the local HTTP API that CLI subcommands, camera
// producers and scripts use to reach a running daemon.
package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the orchestrator the API drives.
type Engine interface {
	Post(ctx context.Context, sig orchestrator.Signal) error
	Do(ctx context.Context, input string, args ...string) (orchestrator.Reply, error)
	Snapshot() orchestrator.Snapshot
}

// Config configures the Server.
type Config struct {
	// Addr is the listen address, e.g. 127.0.0.1:7717.
	Addr string
	// RateLimit is requests per second per client. 0 disables limiting.
	RateLimit int
}

// Server is the control API.
type Server struct {
	cfg    Config
	engine Engine
	logger *logging.Logger
	router *chi.Mux
}

// NewServer builds the router. Call Run to serve it.
func NewServer(cfg Config, engine Engine, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger.WithComponent("control"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, time.Second))
		}
		r.Get("/status", s.handleStatus)
		r.Post("/commands", s.handleCommand)
		r.Post("/commands/{name}", s.handleCommand)
		r.Post("/camera/sample", s.handleCameraSample)
		r.Post("/camera/error", s.handleCameraError)
		r.Post("/config", s.handleConfig)
	})
	return r
}

// rateLimit limits each client IP with a sliding window.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limit_exceeded"})
		}),
	)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Run listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control API: %w", err)
	}
	<-errCh
	s.logger.Info("control API stopped")
	return nil
}
