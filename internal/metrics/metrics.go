package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ttrain_sessions_started_total",
			Help: "Total training sessions started",
		},
	)

	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttrain_sessions_ended_total",
			Help: "Total training sessions ended",
		},
		[]string{"cause"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttrain_active_sessions",
			Help: "Number of currently active training sessions",
		},
	)

	ChargesConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ttrain_charges_consumed_total",
			Help: "Total resurrection charges consumed by training opponents",
		},
	)

	SpawnRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttrain_spawn_rejections_total",
			Help: "Total rejected spawn requests",
		},
		[]string{"reason"},
	)

	// Gateway metrics
	GatewayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttrain_gateway_events_total",
			Help: "Total events received from game-server connections",
		},
		[]string{"type"},
	)

	GatewayDirectives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttrain_gateway_directives_total",
			Help: "Total directives pushed to game-server connections",
		},
		[]string{"type"},
	)

	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttrain_gateway_connections",
			Help: "Number of connected game-server bridges",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionsStarted,
		SessionsEnded,
		ActiveSessions,
		ChargesConsumed,
		SpawnRejections,
		GatewayEvents,
		GatewayDirectives,
		GatewayConnections,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
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

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
