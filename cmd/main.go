package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/crewmuster/crewmuster/config"
	"github.com/crewmuster/crewmuster/internal/events"
	"github.com/crewmuster/crewmuster/internal/levels"
	"github.com/crewmuster/crewmuster/internal/metrics"
	"github.com/crewmuster/crewmuster/internal/notify"
	"github.com/crewmuster/crewmuster/internal/points"
	"github.com/crewmuster/crewmuster/internal/report"
	"github.com/crewmuster/crewmuster/internal/repository"
	"github.com/crewmuster/crewmuster/internal/server"
	"github.com/crewmuster/crewmuster/internal/staff"
	"github.com/crewmuster/crewmuster/internal/store"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// Engine bundles the wired services; upstream transports (HTTP handlers, a
// bot, an admin CLI) call into it with an authenticated principal.
type Engine struct {
	Events   *events.Service
	Staff    *staff.Service
	Levels   *levels.Service
	Points   *points.Service
	Reports  *report.Service
	Notify   *notify.Service
	Settings *notify.SettingsAdmin
}

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection and the record store on top of it.
	dtb, err := store.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	records := store.NewPostgres(dtb)
	if err = records.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate record store: %v", err)
	}

	engine := buildEngine(cfg, records, appMetrics, logger)

	// Sanity-check the wiring before accepting work.
	table, err := engine.Levels.List(ctx)
	if err != nil {
		log.Fatalf("Failed to load level table: %v", err)
	}

	defer stop() // Ensure stop is called to release resources related to signal handling.
	defer dtb.Close()

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.", "levels", len(table))

	// Start the monitoring server
	go server.StartMonitoringServer(ctx, logger, reg, dtb, cfg.MonitoringPort)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// buildEngine wires the repositories, the notification pipeline and the
// domain services together.
func buildEngine(cfg *config.Config, records store.Store, appMetrics *metrics.Metrics, logger *slog.Logger) *Engine {
	eventsRepo := repository.NewEvents(records)
	staffRepo := repository.NewStaff(records)
	levelsRepo := repository.NewLevels(records)
	adjustmentsRepo := repository.NewAdjustments(records)
	awardsRepo := repository.NewAwards(records)
	settingsRepo := repository.NewSettings(records)

	dispatcher := notify.NewDispatcher(cfg.DispatchDelay, logger, appMetrics)
	channels := notify.NewSettingsChannels(settingsRepo, notify.EmailConfig{
		APIKey:      cfg.Email.APIKey,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
	}, logger)
	notifier := notify.NewService(dispatcher, channels, logger)

	eventsSvc := events.NewService(eventsRepo, staffRepo, levelsRepo, notifier, appMetrics, logger)

	return &Engine{
		Events:   eventsSvc,
		Staff:    staff.NewService(staffRepo, levelsRepo, eventsSvc, logger),
		Levels:   levels.NewService(levelsRepo, logger),
		Points:   points.NewService(eventsRepo, awardsRepo, levelsRepo, adjustmentsRepo, notifier, appMetrics, logger),
		Reports:  report.NewService(adjustmentsRepo, staffRepo, eventsRepo, logger),
		Notify:   notifier,
		Settings: notify.NewSettingsAdmin(settingsRepo, logger),
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
