package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	CheckInsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_check_ins_total",
			Help: "Total check-ins processed",
		},
	)

	SessionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hushd_sessions_closed_total",
			Help: "Total sessions closed, by terminal status",
		},
		[]string{"status"},
	)

	SessionsSplitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_sessions_split_total",
			Help: "Total sessions split at the midnight boundary",
		},
	)

	UsedMinutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_used_minutes_total",
			Help: "Total occupancy minutes recorded on closed sessions",
		},
	)

	// Noise metrics
	NoiseEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_noise_events_total",
			Help: "Total noise samples ingested",
		},
	)

	NoiseEventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_noise_events_rejected_total",
			Help: "Noise samples rejected as invalid",
		},
	)

	SessionsScoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hushd_sessions_scored_total",
			Help: "Total sessions scored on close",
		},
	)

	ScoreDelta = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hushd_score_delta",
			Help:    "Point delta applied per scored session",
			Buckets: []float64{0, 3, 5, 6, 8, 10, 11, 13, 15},
		},
	)

	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hushd_requests_total",
			Help: "Total API requests processed",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hushd_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		CheckInsTotal,
		SessionsClosedTotal,
		SessionsSplitTotal,
		UsedMinutesTotal,
		NoiseEventsTotal,
		NoiseEventsRejected,
		SessionsScoredTotal,
		ScoreDelta,
		RequestsTotal,
		RequestDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
