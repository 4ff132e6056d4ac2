package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Server wraps an HTTP listener for either the bridge endpoint or the
// operator API.
type Server struct {
	name   string
	server *http.Server
	logger zerolog.Logger
}

// NewBridgeServer serves the game-server WebSocket endpoint at /ws.
func NewBridgeServer(addr string, hub *Hub, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	return &Server{
		name: "bridge",
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "bridge").Logger(),
	}
}

// NewAPIServer serves the operator API.
func NewAPIServer(addr string, api *API, logger zerolog.Logger) *Server {
	return &Server{
		name: "api",
		server: &http.Server{
			Addr:    addr,
			Handler: api.Router(),
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msgf("Starting %s server", s.name)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msgf("%s server error", s.name)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msgf("Stopping %s server", s.name)
	return s.server.Shutdown(ctx)
}
