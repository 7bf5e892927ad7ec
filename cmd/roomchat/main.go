package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomchat/internal/call"
	"roomchat/internal/config"
	"roomchat/internal/constants"
	"roomchat/internal/media"
	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/internal/retry"
	"roomchat/internal/room"
	"roomchat/internal/settings"
	"roomchat/internal/tracing"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable debug logging")
	configPath = flag.String("config", "", "Path to configuration file (defaults are used when empty)")
	ephemeral  = flag.Bool("ephemeral", false, "Keep settings in memory instead of the settings database")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("roomchat %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting roomchat")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	applyLogLevel(logger, cfg.LogLevel)

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	kv, closeKV, err := openSettings(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	registry := metrics.GetRegistry()
	controller := media.NewController(newDevices(cfg.Media, logger), logger)
	machine := call.NewMachine(controller, logger, registry)
	session := room.NewSession(machine, logger)
	defer session.EndCall()

	if cfg.Room.AutoJoin {
		info := session.Join(cfg.Room.DisplayName, cfg.Room.RoomID, cfg.Room.Mode)
		logger.WithFields(logrus.Fields{
			"room_id": info.RoomID,
			"mode":    info.Mode,
		}).Info("Auto-joined room")
	}

	if *configPath != "" {
		watcher := config.NewConfigWatcher(*configPath, logger)
		watcher.OnConfigChange(func(c *models.Config) {
			applyLogLevel(logger, c.LogLevel)
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.WithError(err).Error("Configuration watcher failed")
			}
		}()
	}

	server := NewServer(session, settings.NewAPIBaseURL(kv, cfg.Settings.DefaultAPIBaseURL), registry, cfg.Server, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown incomplete")
	}
	return nil
}

func applyLogLevel(logger *logrus.Logger, level string) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

func openSettings(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (settings.KV, func(), error) {
	if *ephemeral {
		logger.Info("Using in-memory settings")
		return settings.NewMemory(), func() {}, nil
	}

	store, err := settings.Open(ctx, cfg.Settings.DBPath, retry.FromConfig(cfg.Retry), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close settings store")
		}
	}, nil
}

// newDevices returns nil when the host has no media API, which the controller
// reports as UNSUPPORTED
func newDevices(cfg models.MediaConfig, logger *logrus.Logger) media.Devices {
	if cfg.Backend == constants.MediaBackendDisabled {
		logger.Info("Media backend disabled")
		return nil
	}
	var opts []media.PionOption
	if cfg.DisableCamera {
		opts = append(opts, media.WithoutCamera())
	}
	return media.NewPionDevices(logger, opts...)
}
