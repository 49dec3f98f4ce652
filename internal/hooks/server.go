package hooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/logging"
)

// MaxPayloadBytes bounds a hook request body.
const MaxPayloadBytes = 1 << 20

// Server is the local HTTP hook receiver.
type Server struct {
	intake *Intake
	logger *logging.Logger
	router chi.Router
}

// NewServer creates a Server feeding intake.
func NewServer(intake *Intake, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{intake: intake, logger: logger.WithComponent("hook-server")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	s.RegisterRoutes(r)
	s.router = r
	return s
}

// RegisterRoutes registers the hook routes.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/hooks", func(r chi.Router) {
		r.Post("/{agentID}", s.handleHook)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hook receiver listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return srv.Shutdown(shutdownCtx)
}

type hookResponse struct {
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Hook    string `json:"hook,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	if len(body) > MaxPayloadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
		return
	}

	ev, err := s.intake.Handle(r.Context(), agentID, body, time.Time{})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errors.ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		s.logger.Warn("hook rejected", "agent_id", agentID, "status", status, "error", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, hookResponse{AgentID: agentID, Kind: ev.Kind.String(), Hook: ev.Name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
