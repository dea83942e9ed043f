package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/linkshift/redirector/internal/api"
	"github.com/linkshift/redirector/internal/app"
	"github.com/linkshift/redirector/internal/config"

	docs "github.com/linkshift/redirector/docs"
)

// @title Redirector API
// @version 1.0
// @description Resolves legacy URLs to their new locations using administrator-defined redirect rules, and records access statistics
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http https

// @tag.name Resolution
// @tag.description URL resolution operations

// @tag.name Rules
// @tag.description Redirect rule management

// @tag.name Statistics
// @tag.description Access tracking and statistics

// @tag.name Settings
// @tag.description General settings

// @tag.name System
// @tag.description System health, metrics and maintenance

func main() {
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	flag.Parse()

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		setupLogger("info", "json")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	log.Info().Msg("Redirector starting...")

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create required directories")
	}

	docs.SwaggerInfo.Host = os.Getenv("DOMAIN")

	logStartupConfig(cfg)

	ctx := context.Background()
	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize components")
	}

	routerConfig := api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimitRPS:   cfg.Security.RateLimitRPS,
		RateLimitBurst: cfg.Security.RateLimitBurst,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}

	router := api.SetupRouter(api.RouterDependencies{
		Resolver:      components.Matcher,
		Rules:         components.Rules,
		Tracking:      components.Tracking,
		Settings:      components.SettingsStore,
		Validator:     components.Validator,
		HealthChecker: components.Health,
		Metrics:       components.Metrics.Handler(components.Registry),
	}, routerConfig)

	setupGracefulShutdown(router.App, router.Cleanup)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("addr", serverAddr).
		Msg("Starting HTTP server")

	if err := router.App.Listen(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Info().
		Int("server_port", cfg.Server.Port).
		Dur("server_read_timeout", cfg.Server.ReadTimeout).
		Dur("server_write_timeout", cfg.Server.WriteTimeout).
		Int("server_body_limit", cfg.Server.BodyLimit).
		Str("storage_data_dir", cfg.Storage.DataDir).
		Str("storage_rules_file", cfg.RulesPath()).
		Str("storage_tracking_file", cfg.TrackingPath()).
		Str("storage_settings_file", cfg.SettingsPath()).
		Int64("storage_large_file_threshold", cfg.Storage.LargeFileThreshold).
		Int("cache_reprocess_batch_size", cfg.Cache.ReprocessBatchSize).
		Int("cache_decision_size", cfg.Cache.DecisionCacheSize).
		Strs("security_cors_origins", cfg.Security.CORSOrigins).
		Int("security_rate_limit_rps", cfg.Security.RateLimitRPS).
		Int("security_rate_limit_burst", cfg.Security.RateLimitBurst).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

func setupGracefulShutdown(app *fiber.App, cleanup func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msg("Stopping HTTP server...")
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during HTTP server shutdown")
		}
		if cleanup != nil {
			cleanup()
		}

		// every write is persisted before it is acknowledged, nothing is left to flush
		log.Info().Msg("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func performHealthCheck() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
