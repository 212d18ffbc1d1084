package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/sessiontrack/pkg/httpserver"
	"github.com/dmitrymomot/sessiontrack/pkg/httpsession"
	"github.com/dmitrymomot/sessiontrack/pkg/logger"
	"github.com/dmitrymomot/sessiontrack/pkg/metrics"
	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

const maxBodySize = 64 << 10

type handlers struct {
	tracker *tracker.Tracker
	log     *slog.Logger
}

func newRouter(t *tracker.Tracker, sessions *httpsession.Manager, m *metrics.Collector, log *slog.Logger, checks ...func(ctx context.Context) error) http.Handler {
	h := &handlers{tracker: t, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(requestLogger(log))

	r.Get("/healthz", httpserver.HealthCheckHandler(log, checks...))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/track", func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Post("/visit", h.visit)
		r.Post("/event", h.event)
		r.Post("/user", h.user)
		r.Get("/config", h.config)
	})

	return r
}

type visitRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type eventRequest struct {
	Name  string          `json:"name"`
	Title string          `json:"title"`
	Data  json.RawMessage `json:"data"`
}

type userRequest struct {
	UserID *string `json:"user_id"`
}

type sessionResponse struct {
	SessionID string  `json:"session_id"`
	UserID    *string `json:"user_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type configResponse struct {
	App struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Hash        string `json:"hash"`
		Environment string `json:"environment"`
	} `json:"app"`
	Endpoint      string `json:"endpoint"`
	SessionKey    string `json:"session_key"`
	CookieName    string `json:"cookie_name"`
	MaxAttempts   int    `json:"max_attempts"`
	RetryInterval string `json:"retry_interval"`
	SessionMaxAge string `json:"session_max_age"`
}

func (h *handlers) visit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	c := httpsession.MustFromContext(r.Context())
	if err := h.tracker.TrackVisit(r.Context(), c, req.Name, req.Title); err != nil {
		h.trackFailed(w, r, err)
		return
	}
	writeSession(w, http.StatusAccepted, c)
}

func (h *handlers) event(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}

	c := httpsession.MustFromContext(r.Context())
	if err := h.tracker.TrackEvent(r.Context(), c, req.Name, req.Title, data); err != nil {
		h.trackFailed(w, r, err)
		return
	}
	writeSession(w, http.StatusAccepted, c)
}

func (h *handlers) user(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := httpsession.MustFromContext(r.Context())
	if _, err := h.tracker.Ensure(r.Context(), c); err != nil {
		h.trackFailed(w, r, err)
		return
	}
	h.tracker.AssignUser(c, req.UserID)
	writeSession(w, http.StatusOK, c)
}

func (h *handlers) config(w http.ResponseWriter, _ *http.Request) {
	cfg := h.tracker.Config()

	var resp configResponse
	resp.App.Name = cfg.App.Name
	resp.App.Version = cfg.App.Version
	resp.App.Hash = cfg.App.Hash
	resp.App.Environment = cfg.App.Environment
	resp.Endpoint = cfg.Endpoint
	resp.SessionKey = cfg.SessionKey
	resp.CookieName = cfg.CookieName
	resp.MaxAttempts = cfg.MaxAttempts
	resp.RetryInterval = cfg.RetryInterval.String()
	resp.SessionMaxAge = cfg.Store.SessionMaxAge.String()

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.DebugContext(r.Context(), "invalid request body", logger.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (h *handlers) trackFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tracker.ErrClosed) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "tracker is shutting down"})
		return
	}
	h.log.ErrorContext(r.Context(), "tracking failed", logger.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "tracking failed"})
}

func writeSession(w http.ResponseWriter, status int, c *httpsession.Carrier) {
	attrs := c.Attributes()
	writeJSON(w, status, sessionResponse{SessionID: attrs.SessionID, UserID: attrs.UserID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.DebugContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("size", ww.BytesWritten()),
				logger.Duration(time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
