package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"

	httpapi "github.com/i474232898/weather-radar/internal/api/http"
	"github.com/i474232898/weather-radar/internal/config"
	"github.com/i474232898/weather-radar/internal/playback"
	"github.com/i474232898/weather-radar/internal/radar"
	"github.com/i474232898/weather-radar/internal/radar/providers"
	"github.com/i474232898/weather-radar/internal/scheduler"
	"github.com/i474232898/weather-radar/internal/store"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to an optional TOML configuration file")
	port := pflag.StringP("port", "p", "", "HTTP listen port (overrides PORT)")
	pflag.Parse()

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Frame history: PostgreSQL when configured, memory otherwise.
	var history store.FrameStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.StoreMaxAge)
		if err != nil {
			log.Fatalf("failed to open frame store: %v", err)
		}
		history = pg
	} else {
		history = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}
	defer history.Close()

	// Provider transport with resilience (backoff + circuit breaker).
	transport := providers.NewRadarAPITransport(nil, providers.RadarAPIConfig{
		BaseURL: cfg.ProviderURL,
		Timeout: cfg.RequestTimeout,
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.ProviderMaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	})

	gateway := radar.NewGateway(transport, radar.GatewayConfig{
		RequestTimeout:    cfg.RequestTimeout,
		DefaultFrameCount: cfg.DefaultFrameCount,
	})

	timer := scheduler.NewGocronTimer()
	defer timer.Stop()

	player := playback.New(timer, playback.Options{
		BaseInterval: cfg.AnimationInterval,
		Speeds:       cfg.SpeedMultipliers,
	})
	defer player.Close()

	refresher := scheduler.NewRefreshScheduler(gateway, timer, scheduler.RefreshConfig{
		Period:      cfg.RefreshPeriod,
		AutoRefresh: cfg.AutoRefresh,
		RejectOlder: cfg.RejectOlderFrames,
		Recorder:    history,
		Batches:     gateway,
		BatchSize:   cfg.DefaultFrameCount,
	})

	// Every refresh supersedes the animation batch wholesale.
	refresher.OnBatch(player.Load)
	defer refresher.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-radar",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RequestTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-radar",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Gateway:        gateway,
		Refresher:      refresher,
		Player:         player,
		History:        history,
		StaleThreshold: cfg.StaleThreshold,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: weather-radar listening on :%s (provider %s)", cfg.Port, cfg.ProviderURL)

	// The first refresh may wait on a slow provider; the API is already up.
	if err := refresher.Start(ctx); err != nil {
		log.Fatalf("failed to start refresh scheduler: %v", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
