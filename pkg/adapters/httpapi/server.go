// Package httpapi exposes the engine over HTTP. One conversation turn
// per request: the response body carries the turn outcome, and the
// state behind it is durable before the response is written.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseflow-io/caseflow/internal/logging"
	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Engine is the subset of the caseflow engine the HTTP surface needs.
type Engine interface {
	Handle(ctx context.Context, msg domain.Message) (domain.Outcome, error)
	Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	Conversations(ctx context.Context) ([]string, error)
}

// Server routes HTTP requests into the engine.
type Server struct {
	engine Engine
	logger *slog.Logger
	now    func() time.Time
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewHandler builds the HTTP handler. A nil gatherer disables the
// /metrics endpoint.
func NewHandler(engine Engine, gatherer prometheus.Gatherer, opts ...ServerOption) http.Handler {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.listConversations)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Get("/", s.getConversation)
			r.Post("/messages", s.postMessage)
		})
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// messageRequest is the POST /conversations/{id}/messages body.
type messageRequest struct {
	Text string `json:"text"`
}

// errorResponse is the body for non-2xx replies.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		s.writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	outcome, err := s.engine.Handle(r.Context(), domain.Message{
		ConversationID: conversationID,
		Text:           body.Text,
		Timestamp:      s.now().Unix(),
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "turn failed",
			"conversation_id", conversationID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Node-level failures are a valid turn outcome, not a transport
	// error. 502 signals a retryable backend problem to upstream
	// automation; everything else is the turn's result.
	status := http.StatusOK
	if outcome.Type == domain.OutcomeError && outcome.Retryable {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, outcome)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	state, err := s.engine.Conversation(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "failed to load conversation",
			"conversation_id", conversationID, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Conversations(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to list conversations", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"conversations": ids})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
