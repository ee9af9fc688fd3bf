// Package server exposes the fan-out engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/fanout"
	"github.com/example/notification-fanout/internal/models"
)

// Engine is the subset of the fan-out engine the HTTP layer uses.
type Engine interface {
	Send(ctx context.Context, req fanout.SendRequest) (*fanout.SendResult, error)
	Get(ctx context.Context, messageID string) (*fanout.SendResult, error)
	RetryFailed(ctx context.Context, messageID string) (*fanout.SendResult, error)
}

// Server wires HTTP routes to the fan-out engine.
type Server struct {
	engine Engine
	logger zerolog.Logger
}

// New builds a Server around the given engine.
func New(engine Engine, logger zerolog.Logger) *Server {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Server{engine: engine, logger: logger.With().Str("component", "http_server").Logger()}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/messages", func(r chi.Router) {
		r.Post("/", s.handleSend)
		r.Get("/{messageID}", s.handleGet)
		r.Post("/{messageID}/retry", s.handleRetry)
	})
	return r
}

type sendRequest struct {
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	PersonnelIDs []string `json:"personnel_ids"`
	Channels     []string `json:"channels,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	channels := make([]models.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		ch, err := models.ParseChannel(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		channels = append(channels, ch)
	}

	res, err := s.engine.Send(r.Context(), fanout.SendRequest{
		Subject:      req.Subject,
		Body:         req.Body,
		PersonnelIDs: req.PersonnelIDs,
		Channels:     channels,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Get(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.RetryFailed(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case models.IsNotFound(err):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
