// Package http exposes the submission pipeline over a small JSON API with
// Prometheus metrics. It is thin glue: all decisions live in the core.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crowdqueue/internal/core"
	"crowdqueue/internal/flood"
)

// SubmissionService is the core surface the server calls into.
type SubmissionService interface {
	ProcessSubmission(ctx context.Context, rawQuery string) core.SubmissionOutcome
	Insights() core.Insights
	IsOwnerAuthenticated(ctx context.Context) bool
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	metrics  *Metrics
	registry *prometheus.Registry
	pipeline SubmissionService
	gate     *flood.Floodgate
}

type Metrics struct {
	SubmissionsTotal     *prometheus.CounterVec
	DuplicatesTotal      prometheus.Counter
	RecommendationsTotal prometheus.Counter
	FloodBlockedTotal    prometheus.Counter
	ProcessingTime       prometheus.Histogram
	RecencyWindowSize    prometheus.Gauge
}

func NewServer(
	config *core.ServerConfig,
	pipeline SubmissionService,
	gate *flood.Floodgate,
	logger *zap.Logger,
) *Server {
	metrics := &Metrics{
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdqueue_submissions_total",
				Help: "Total number of submissions processed",
			},
			[]string{"status"},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdqueue_duplicates_total",
				Help: "Total number of near-duplicate submissions blocked",
			},
		),
		RecommendationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdqueue_recommendations_total",
				Help: "Total number of recommendations served",
			},
		),
		FloodBlockedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crowdqueue_flood_blocked_total",
				Help: "Total number of submissions blocked by rate limiting",
			},
		),
		ProcessingTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crowdqueue_processing_duration_seconds",
				Help:    "Time spent processing submissions",
				Buckets: prometheus.DefBuckets,
			},
		),
		RecencyWindowSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crowdqueue_recency_window_size",
				Help: "Current number of retained recent tracks",
			},
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.SubmissionsTotal,
		metrics.DuplicatesTotal,
		metrics.RecommendationsTotal,
		metrics.FloodBlockedTotal,
		metrics.ProcessingTime,
		metrics.RecencyWindowSize,
	)

	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		pipeline: pipeline,
		gate:     gate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

type submitResponse struct {
	Status          string                `json:"status"`
	Allowed         bool                  `json:"allowed"`
	Message         string                `json:"message"`
	Recommendations []core.Recommendation `json:"recommendations"`
	Suggestion      string                `json:"suggestion,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	query := r.FormValue("query")
	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	if !s.gate.Allow(remoteIP(r)) {
		s.metrics.FloodBlockedTotal.Inc()
		s.writeJSON(w, http.StatusTooManyRequests,
			map[string]string{"error": "Too many submissions. Give others a turn and try again in a minute."})
		return
	}

	start := time.Now()
	outcome := s.pipeline.ProcessSubmission(r.Context(), query)
	s.metrics.ProcessingTime.Observe(time.Since(start).Seconds())

	s.metrics.SubmissionsTotal.WithLabelValues(outcome.Status.String()).Inc()
	if outcome.Status == core.StatusRejected {
		s.metrics.DuplicatesTotal.Inc()
	}
	if n := len(outcome.Recommendations); n > 0 {
		s.metrics.RecommendationsTotal.Add(float64(n))
	}

	recommendations := outcome.Recommendations
	if recommendations == nil {
		recommendations = []core.Recommendation{}
	}

	s.writeJSON(w, http.StatusOK, submitResponse{
		Status:          outcome.Status.String(),
		Allowed:         outcome.Allowed,
		Message:         outcome.Reason,
		Recommendations: recommendations,
		Suggestion:      outcome.Suggestion,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pipeline.Insights())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"owner_authenticated": s.pipeline.IsOwnerAuthenticated(r.Context()),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "crowdqueue"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>CrowdQueue</title></head>
<body>
    <h1>CrowdQueue</h1>
    <p>Submit a song name or Spotify track link to the owner's queue.</p>
    <form method="post" action="/api/submit">
        <input type="text" name="query" placeholder="Song name or Spotify link" size="40">
        <button type="submit">Add to queue</button>
    </form>
    <p><a href="/api/insights">Insights</a> | <a href="/api/status">Status</a> | <a href="/metrics">Metrics</a></p>
</body>
</html>`)); err != nil {
		s.logger.Debug("Failed to write index page", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to encode response", zap.Error(err))
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetRecencyWindowSize updates the recency window gauge.
func (s *Server) SetRecencyWindowSize(size int) {
	s.metrics.RecencyWindowSize.Set(float64(size))
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
