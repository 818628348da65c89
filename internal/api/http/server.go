package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appExecutor "github.com/execution-hub/choreographer/internal/application/executor"
	"github.com/execution-hub/choreographer/internal/application/selector"
	"github.com/execution-hub/choreographer/internal/domain/executor"
	"github.com/execution-hub/choreographer/internal/infrastructure/metrics"
	"github.com/execution-hub/choreographer/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	executorSvc *appExecutor.Service
	selector    *selector.Selector
	metrics     *metrics.Collector
	events      *sse.Hub
	apiKeyHash  []byte
	logger      zerolog.Logger
}

func NewServer(
	executorSvc *appExecutor.Service,
	sel *selector.Selector,
	collector *metrics.Collector,
	events *sse.Hub,
	apiKeyHash string,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		executorSvc: executorSvc,
		selector:    sel,
		metrics:     collector,
		events:      events,
		logger:      logger.With().Str("component", "http").Logger(),
	}
	if apiKeyHash != "" {
		s.apiKeyHash = []byte(apiKeyHash)
	}
	return s
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Route("/executors", func(r chi.Router) {
			r.Post("/", s.createExecutor)
			r.Get("/", s.listExecutors)
			r.Get("/{executorId}", s.getExecutor)
			r.Delete("/{executorId}", s.deleteExecutor)
			r.Post("/{executorId}/release", s.releaseExecutor)
		})

		r.Post("/selections", s.selectExecutor)
		r.Get("/events", s.lockEvents)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps executor sentinel errors to HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, executor.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case errors.Is(err, executor.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, executor.ErrLocked):
		respondError(w, http.StatusConflict, "LOCKED", err.Error())
	case errors.Is(err, executor.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, executor.ErrUpstreamUnavailable):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", err.Error())
	default:
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func contextFromRequest(r *http.Request) context.Context {
	return r.Context()
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
