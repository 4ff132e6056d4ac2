package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/takeda/ttrain/internal/arena"
	"github.com/takeda/ttrain/internal/command"
	"github.com/takeda/ttrain/internal/config"
	"github.com/takeda/ttrain/internal/gateway"
	"github.com/takeda/ttrain/internal/menu"
	"github.com/takeda/ttrain/internal/messages"
	"github.com/takeda/ttrain/internal/metrics"
	"github.com/takeda/ttrain/internal/policy"
	"github.com/takeda/ttrain/internal/session"
	"github.com/takeda/ttrain/internal/storage"
	"github.com/takeda/ttrain/internal/storage/bolt"
	"github.com/takeda/ttrain/internal/storage/redis"
	"github.com/takeda/ttrain/internal/systemd"
	"github.com/takeda/ttrain/internal/world"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ttrain daemon",
	Long:  `Start the daemon with the game-server bridge, operator API, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ttraind")

	// Initialize storage
	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	// Message catalog and world gate
	catalog := messages.New(cfg.Messages)
	gate := world.NewGate(cfg.Worlds)

	// Permission engine
	policyEngine, err := policy.NewEngine(cfg.Policy, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Bridge hub doubles as the directive sink for everything below
	hub := gateway.NewHub(cfg.Server.AuthToken, logger)

	arenaWorld := arena.NewWorld(cfg.Opponent, hub, logger)
	notifier := gateway.NewNotifier(hub, catalog, cfg.Sounds, logger)

	history, err := gateway.NewHistory(store.SessionLog(), cfg.History.RecentCache, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session history: %w", err)
	}

	limits := session.Limits{
		MinCharges:      cfg.Training.MinTotems,
		MaxCharges:      cfg.Training.MaxTotems,
		DefaultCharges:  cfg.Training.DefaultTotems,
		MinDuration:     int(parseDuration(cfg.Training.MinDuration, 15*time.Second) / time.Second),
		MaxDuration:     int(parseDuration(cfg.Training.MaxDuration, 5*time.Minute) / time.Second),
		DefaultDuration: int(parseDuration(cfg.Training.DefaultDuration, time.Minute) / time.Second),
	}

	manager := session.NewManager(
		session.Config{
			Limits:          limits,
			EndOnLastCharge: cfg.Training.EndOnLastTotem,
			RefreshInterval: parseDuration(cfg.Training.RefreshInterval, session.DefaultRefreshInterval),
			TeardownDelay:   parseDuration(cfg.Training.TeardownDelay, session.DefaultTeardownDelay),
			Label: func(secondsLeft, charges int) string {
				return catalog.Render("label-countdown", map[string]string{
					"totems":  strconv.Itoa(charges),
					"seconds": strconv.Itoa(secondsLeft),
				})
			},
		},
		arenaWorld, gate, notifier, history, nil, logger,
	)

	logger.Info().
		Int("max_totems", limits.MaxCharges).
		Int("max_duration_s", limits.MaxDuration).
		Bool("end_on_last_totem", cfg.Training.EndOnLastTotem).
		Msg("Session manager initialized")

	// Player-facing front ends
	var menuManager *menu.Manager
	var opener command.MenuOpener
	if cfg.Menu.Enabled {
		menuManager = menu.NewManager(cfg.Menu, limits, manager, store.Preferences(), catalog, hub, logger)
		opener = menuManager
	}
	commandHandler := command.NewHandler(limits, manager, policyEngine, store.Preferences(), catalog, hub, opener, logger)

	var menus gateway.MenuHandler
	if menuManager != nil {
		menus = menuManager
	}
	dispatcher := gateway.NewDispatcher(manager, arenaWorld, hub, commandHandler, menus, logger)
	hub.SetHandler(dispatcher.Dispatch)

	// Bridge server
	bridgeAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.GatewayPort)
	bridgeServer := gateway.NewBridgeServer(bridgeAddr, hub, logger)
	if err := bridgeServer.Start(); err != nil {
		return fmt.Errorf("failed to start bridge server: %w", err)
	}

	// Operator API
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := gateway.NewAPIServer(apiAddr, gateway.NewAPI(manager, history, policyEngine, logger), logger)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Metrics
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// History retention
	pruneDone := make(chan struct{})
	if cfg.History.RetentionDays > 0 {
		go prunePeriodically(history, time.Duration(cfg.History.RetentionDays)*24*time.Hour, pruneDone, logger)
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("sd_notify failed")
	}

	logger.Info().Msg("ttraind startup complete")
	logger.Info().Msgf("Bridge: ws://%s/ws", bridgeAddr)
	logger.Info().Msgf("API: http://%s/api/sessions", apiAddr)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("sd_notify stopping failed")
	}

	close(pruneDone)

	// End every active session before dropping the bridge so the game
	// server still receives the cleanup directives
	manager.SweepAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}
	if err := bridgeServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping bridge server")
	}
	hub.Close()
	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("ttraind stopped")
	return nil
}

func prunePeriodically(history *gateway.History, retention time.Duration, done <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			deleted, err := history.Prune(ctx, retention)
			cancel()
			if err != nil {
				logger.Error().Err(err).Msg("History prune failed")
				continue
			}
			if deleted > 0 {
				logger.Info().Int("deleted", deleted).Msg("Pruned session history")
			}
		case <-done:
			return
		}
	}
}

func openStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Storage.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
