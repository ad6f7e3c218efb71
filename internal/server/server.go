// Package server exposes the collaboration core over HTTP and
// WebSocket: REST endpoints for login, area mutations, and range
// queries, plus the live channel that relays edits and presence.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/oedima/gis-colab/internal/auth"
	"github.com/oedima/gis-colab/internal/collab"
	"github.com/oedima/gis-colab/internal/config"
	"github.com/oedima/gis-colab/internal/geo"
	"github.com/oedima/gis-colab/internal/metrics"
	"github.com/oedima/gis-colab/internal/presence"
	"github.com/oedima/gis-colab/internal/ratelimit"
	"github.com/oedima/gis-colab/internal/store"
)

// Server wires the HTTP surface to the collaboration core
type Server struct {
	cfg  config.Config
	auth *auth.Registry
	svc  *collab.Service
	hub  *presence.Broadcaster
	log  *slog.Logger
}

// New creates a server around an already-wired core
func New(cfg config.Config, reg *auth.Registry, svc *collab.Service, hub *presence.Broadcaster, log *slog.Logger) *Server {
	return &Server{cfg: cfg, auth: reg, svc: svc, hub: hub, log: log}
}

// Router builds the full route table, including the prometheus scrape
// endpoint outside the API prefix
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	base := s.cfg.APIBase
	r.Methods(http.MethodPost).Path(base + "/login").HandlerFunc(s.handleLogin)
	r.Methods(http.MethodPost).Path(base + "/areas").HandlerFunc(s.handleSaveArea)
	r.Methods(http.MethodGet).Path(base + "/areas").HandlerFunc(s.handleQueryAreas)
	r.Methods(http.MethodGet).Path(base + "/health").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path(base + "/ping").HandlerFunc(s.handlePing)
	r.Methods(http.MethodGet).Path(base + "/ws").HandlerFunc(s.handleWebSocket)
	r.Methods(http.MethodGet).Path("/metrics").Handler(metrics.Handler())
	return r
}

// requestLogger logs one line per handled request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("handled", "method", r.Method, "url", r.URL.String(), "status", m.Code, "duration", m.Duration)
	})
}

type loginRequest struct {
	Username string `json:"username"`
}

type saveAreaRequest struct {
	Name        string   `json:"name"`
	Coordinates geo.Ring `json:"coordinates"`
	ID          string   `json:"id,omitempty"`
	Version     int      `json:"version,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Stable error codes clients branch on: retry (rate_limited),
// refresh-and-reapply (version_conflict), or fix input (geometry_invalid)
const (
	codeBadRequest      = "bad_request"
	codeInvalidToken    = "invalid_token"
	codeGeometryInvalid = "geometry_invalid"
	codeNotFound        = "not_found"
	codeVersionConflict = "version_conflict"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "username required")
		return
	}
	token := s.auth.Login(req.Username)
	s.log.Info("login", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleSaveArea(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Resolve(r.Header.Get("Token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidToken, err.Error())
		return
	}
	var req saveAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "bad json")
		return
	}

	rec, err := s.svc.Save(collab.SaveRequest{
		Name:            req.Name,
		Ring:            req.Coordinates,
		ID:              req.ID,
		ExpectedVersion: req.Version,
		Actor:           identity,
	})
	if err != nil {
		s.writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleQueryAreas(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Resolve(r.Header.Get("Token")); err != nil {
		writeError(w, http.StatusUnauthorized, codeInvalidToken, err.Error())
		return
	}
	q := r.URL.Query()
	bbox := geo.BBox{}
	for _, bind := range []struct {
		name string
		dst  *float64
	}{
		{"north", &bbox.North},
		{"south", &bbox.South},
		{"east", &bbox.East},
		{"west", &bbox.West},
	} {
		v, err := strconv.ParseFloat(q.Get(bind.name), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "missing or malformed bound: "+bind.name)
			return
		}
		*bind.dst = v
	}
	writeJSON(w, http.StatusOK, s.svc.Query(bbox))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

// writeMutationError maps core failures onto distinct, stable response
// codes so clients can decide how to recover
func (s *Server) writeMutationError(w http.ResponseWriter, err error) {
	var vc *store.VersionConflictError
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, err.Error())
	case errors.Is(err, geo.ErrTooFewPoints), errors.Is(err, geo.ErrNotSimple):
		writeError(w, http.StatusBadRequest, codeGeometryInvalid, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.As(err, &vc):
		writeError(w, http.StatusConflict, codeVersionConflict, err.Error())
	default:
		s.log.Error("mutation_failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
