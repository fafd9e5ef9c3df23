package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"Go2NetSentry/internal/engine/detector"
	"Go2NetSentry/internal/engine/manager"
	"Go2NetSentry/internal/metrics"
	"Go2NetSentry/internal/model"
	"Go2NetSentry/internal/query"

	"github.com/gorilla/mux"
)

// Engine is the part of the manager the API reads and controls.
type Engine interface {
	Status() manager.Status
	Detector() *detector.Detector
	Label() model.Label
	SetLabel(model.Label)
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	manager.Status
	AlertListener string `json:"alert_listener"`
}

type labelBody struct {
	Label string `json:"label"`
}

// Option configures a Server.
type Option func(*Server)

// WithQuerier enables the feature history endpoint.
func WithQuerier(q query.Querier) Option {
	return func(s *Server) { s.querier = q }
}

// WithHealth lets the status endpoint report the alert listener state.
func WithHealth(h *HealthServer) Option {
	return func(s *Server) { s.health = h }
}

// Server is the HTTP API of the engine.
type Server struct {
	engine  Engine
	metrics *metrics.Metrics
	querier query.Querier
	health  *HealthServer
	router  *mux.Router
	http    *http.Server
}

// NewServer builds the router for addr. The server is not started.
func NewServer(addr string, engine Engine, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{engine: engine, metrics: m, router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	v1.HandleFunc("/hosts", s.hostsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/hosts/blocked", s.blockedHandler).Methods(http.MethodGet)
	v1.HandleFunc("/label", s.getLabelHandler).Methods(http.MethodGet)
	v1.HandleFunc("/label", s.putLabelHandler).Methods(http.MethodPut)
	v1.HandleFunc("/features", s.featuresHandler).Methods(http.MethodGet)

	// Fallbacks come after the method routes so a wrong method gets 405, not 404.
	s.router.Handle("/metrics", methodNotAllowed(http.MethodGet))
	for path, allow := range map[string]string{
		"/status":        http.MethodGet,
		"/hosts":         http.MethodGet,
		"/hosts/blocked": http.MethodGet,
		"/label":         http.MethodGet + ", " + http.MethodPut,
		"/features":      http.MethodGet,
	} {
		v1.Handle(path, methodNotAllowed(allow))
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func methodNotAllowed(allow string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		slog.Info("API server starting", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server stopped", "addr", s.http.Addr, "err", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: s.engine.Status(), AlertListener: "disabled"}
	if s.health != nil {
		resp.AlertListener = "down"
		if s.health.Serving(AlertsService) {
			resp.AlertListener = "up"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) hostsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Detector().Counters().Snapshot())
}

func (s *Server) blockedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Detector().Registry().List())
}

func (s *Server) getLabelHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, labelBody{Label: s.engine.Label().String()})
}

func (s *Server) putLabelHandler(w http.ResponseWriter, r *http.Request) {
	var body labelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	label, ok := model.ParseLabel(body.Label)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown label '%s'", body.Label), http.StatusBadRequest)
		return
	}
	s.engine.SetLabel(label)
	writeJSON(w, http.StatusOK, labelBody{Label: label.String()})
}

func (s *Server) featuresHandler(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		http.Error(w, "feature history requires an enabled clickhouse writer", http.StatusServiceUnavailable)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.querier.RecentFeatures(r.Context(), f)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query features: %v", err), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []query.FeatureRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	var f query.Filter
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit '%s'", v)
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid since '%s': %w", v, err)
		}
		f.Since = t
	}
	if v := q.Get("label"); v != "" {
		l, ok := model.ParseLabel(v)
		if !ok {
			return f, fmt.Errorf("unknown label '%s'", v)
		}
		f.Label = &l
	}
	f.Flow = q.Get("flow")
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}
