// Package api exposes the feature pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"DDoSDefender/internal/features"
	"DDoSDefender/internal/model"
	"DDoSDefender/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultWindowMinutes = 5
	defaultRecentLimit   = 10
	maxRecentLimit       = 1000
	defaultStatsLimit    = 100
)

// Runner computes and stores one window.
type Runner interface {
	Run(ctx context.Context, windowSizeMinutes int, now time.Time) (features.Result, error)
}

// StatusSource reports storage health.
type StatusSource interface {
	Status() store.Status
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	runner   Runner
	features model.FeatureStore
	status   StatusSource
	hub      *Hub
	gatherer prometheus.Gatherer
	log      logrus.FieldLogger
}

// NewHandler creates the API handler. status, hub and gatherer may be nil,
// in which case their routes answer 404.
func NewHandler(runner Runner, fs model.FeatureStore, status StatusSource, hub *Hub, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Handler {
	return &Handler{
		runner:   runner,
		features: fs,
		status:   status,
		hub:      hub,
		gatherer: gatherer,
		log:      log.WithField("component", "api"),
	}
}

// Router returns the routes served by h.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/features/aggregate", h.aggregateHandler).Methods(http.MethodPost)
	v1.HandleFunc("/features/recent", h.recentHandler).Methods(http.MethodGet)
	v1.HandleFunc("/features/vector", h.vectorHandler).Methods(http.MethodGet)
	v1.HandleFunc("/features/stats", h.statsHandler).Methods(http.MethodGet)
	if h.status != nil {
		v1.HandleFunc("/status", h.statusHandler).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", h.healthHandler).Methods(http.MethodGet)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	if h.hub != nil {
		r.HandleFunc("/ws/features", h.hub.ServeWS)
	}
	return r
}

// AggregateRequest is the body of POST /api/v1/features/aggregate.
type AggregateRequest struct {
	// WindowSizeMinutes defaults to 5 when absent. An explicit value of zero
	// or less is rejected.
	WindowSizeMinutes *int `json:"windowSizeMinutes"`
	// Now ends the window. Zero means the current time.
	Now time.Time `json:"now"`
}

// AggregateResponse reports one pipeline run.
type AggregateResponse struct {
	Record    *model.FeatureRecord  `json:"record"`
	Recent    []model.FeatureRecord `json:"recent"`
	Persisted bool                  `json:"persisted"`
}

type errorResponse struct {
	Error  string               `json:"error"`
	Kind   string               `json:"kind"`
	Record *model.FeatureRecord `json:"record,omitempty"`
}

func (h *Handler) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("failed to decode request: %w", err), nil)
		return
	}

	window := defaultWindowMinutes
	if req.WindowSizeMinutes != nil {
		window = *req.WindowSizeMinutes
	}

	res, err := h.runner.Run(r.Context(), window, req.Now)
	if err != nil {
		var pe *features.PersistenceError
		switch {
		case errors.Is(err, features.ErrInvalidWindow):
			h.writeError(w, http.StatusBadRequest, "invalid_window", err, nil)
		case features.IsSourceError(err):
			h.writeError(w, http.StatusBadGateway, "source_unavailable", err, nil)
		case errors.As(err, &pe):
			rec := pe.Record
			h.writeError(w, http.StatusServiceUnavailable, "persistence_failed", err, &rec)
		default:
			h.writeError(w, http.StatusInternalServerError, "internal", err, nil)
		}
		return
	}

	if res.Record != nil && h.hub != nil {
		h.hub.Broadcast(*res.Record, features.Extract([]model.FeatureRecord{*res.Record}))
	}
	h.writeJSON(w, http.StatusOK, AggregateResponse{Record: res.Record, Recent: nonNil(res.Recent), Persisted: res.Persisted})
}

func (h *Handler) recentHandler(w http.ResponseWriter, r *http.Request) {
	window, limit, ok := h.windowAndLimit(w, r, defaultRecentLimit)
	if !ok {
		return
	}
	recent, err := h.features.QueryRecent(r.Context(), window, limit)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "persistence_failed", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(recent))
}

// VectorResponse carries the newest vector, or a sequence when requested.
type VectorResponse struct {
	Version  int                   `json:"version"`
	Vector   model.FeatureVector   `json:"vector"`
	Sequence []model.FeatureVector `json:"sequence,omitempty"`
}

func (h *Handler) vectorHandler(w http.ResponseWriter, r *http.Request) {
	window, err := positiveParam(r, "window", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err, nil)
		return
	}
	length, err := positiveParam(r, "sequence", 1)
	if err != nil || length > maxRecentLimit {
		h.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("sequence must be between 1 and %d", maxRecentLimit), nil)
		return
	}
	recent, err := h.features.QueryRecent(r.Context(), window, length)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "persistence_failed", err, nil)
		return
	}
	resp := VectorResponse{Version: model.FeatureVectorVersion, Vector: features.Extract(recent)}
	if r.URL.Query().Get("sequence") != "" {
		resp.Sequence = features.ExtractSequence(recent, length)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) statsHandler(w http.ResponseWriter, r *http.Request) {
	window, limit, ok := h.windowAndLimit(w, r, defaultStatsLimit)
	if !ok {
		return
	}
	recent, err := h.features.QueryRecent(r.Context(), window, limit)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "persistence_failed", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, features.Summarize(recent))
}

func (h *Handler) statusHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.status.Status())
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) windowAndLimit(w http.ResponseWriter, r *http.Request, defaultLimit int) (int, int, bool) {
	window, err := positiveParam(r, "window", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err, nil)
		return 0, 0, false
	}
	limit, err := positiveParam(r, "limit", defaultLimit)
	if err != nil || limit > maxRecentLimit {
		h.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("limit must be between 1 and %d", maxRecentLimit), nil)
		return 0, 0, false
	}
	return window, limit, true
}

// positiveParam reads a positive integer query parameter. A missing
// parameter yields def, or an error when def is zero.
func positiveParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if def == 0 {
			return 0, fmt.Errorf("query parameter %q is required", name)
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("query parameter %q must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind string, err error, rec *model.FeatureRecord) {
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("kind", kind).Error("Request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind, Record: rec})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func nonNil(records []model.FeatureRecord) []model.FeatureRecord {
	if records == nil {
		return []model.FeatureRecord{}
	}
	return records
}
