package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

// statusServer exposes /health and /status while a build runs.
type statusServer struct {
	logger     *slog.Logger
	tracker    *statusTracker
	httpServer *http.Server
}

func newStatusServer(logger *slog.Logger, port int, tracker *statusTracker) *statusServer {
	s := &statusServer{logger: logger, tracker: tracker}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}
	return s
}

func (s *statusServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tracker.Snapshot()); err != nil {
		s.logger.Warn("Failed to encode status snapshot.", "error", err)
	}
}

// start binds the listener synchronously so that a busy port is reported to
// the caller, then serves in the background.
func (s *statusServer) start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	s.logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://%s/status", ln.Addr()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

func (s *statusServer) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.Info("🩺 Shutting down status server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Status server shutdown failed", "error", err)
		return err
	}
	s.logger.Debug("Status server shut down gracefully.")
	return nil
}
