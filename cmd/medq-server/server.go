package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/config"
	"github.com/medq/medq/internal/domain/analytics"
	"github.com/medq/medq/internal/domain/identity"
	"github.com/medq/medq/internal/domain/intake"
	"github.com/medq/medq/internal/domain/patient"
	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/internal/platform/llm"
	"github.com/medq/medq/internal/platform/middleware"
	"github.com/medq/medq/internal/platform/notify"
	"github.com/medq/medq/internal/platform/response"
	"github.com/medq/medq/internal/platform/telemetry"
	"github.com/medq/medq/internal/platform/websocket"
)

func accessTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newEcho builds the server with global middleware. Every route mounted on
// the returned /api group passes through the JWT check unless it is listed
// as public.
func newEcho(cfg *config.Config, logger zerolog.Logger, tokens *auth.TokenIssuer, metrics *telemetry.Provider) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{Tokens: tokens}))

	e.GET("/health", db.LivenessHandler())
	e.GET("/metrics", metrics.Handler())

	return e, e.Group("/api")
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tokens := auth.NewTokenIssuer(cfg.SecretKey, accessTTL(cfg))
	metrics := telemetry.NewProvider(func() db.PoolStats { return db.GetPoolStats(pool) })
	e, api := newEcho(cfg, logger, tokens, metrics)
	e.GET("/health/db", db.HealthHandler(pool))

	// Intake events: published with each stored patient, fanned out to
	// dashboard streams by the listener below.
	hub := notify.NewHub()
	publisher := notify.NewPublisher(pool, cfg.NotifyChannel)
	listenCtx, stopListen := context.WithCancel(context.Background())
	defer stopListen()
	go func() {
		if err := notify.Listen(listenCtx, cfg.DatabaseURL, cfg.NotifyChannel, hub, logger); err != nil {
			logger.Error().Err(err).Msg("intake event listener stopped")
		}
	}()
	go metrics.WatchEvents(listenCtx, hub)

	// Patients
	patientSvc := patient.NewService(
		patient.NewPatientRepoPG(pool),
		patient.NewSummaryRepoPG(pool),
		db.NewTxRunner(pool),
		publisher,
		logger,
	)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	// Intake
	if !cfg.LLMEnabled() {
		logger.Warn().Msg("OPENAI_API_KEY not set, intake replies use rule-based fallbacks")
	}
	model := llm.New(llm.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		ChatModel:       cfg.LLMChatModel,
		TranscribeModel: cfg.LLMTranscribeModel,
	})
	intakeSvc := intake.NewService(model, logger)
	limiter := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})
	intake.NewHandler(intakeSvc).RegisterRoutes(api, limiter)

	// Auth
	identitySvc := identity.NewService(identity.NewDoctorRepoPG(pool), tokens, logger)
	identity.NewHandler(identitySvc, cfg.IsDev()).RegisterRoutes(api)

	// Analytics
	analyticsSvc := analytics.NewService(analytics.NewRepoPG(pool))
	analytics.NewHandler(analyticsSvc, hub, logger).RegisterRoutes(api)
	websocket.NewHandler(hub, tokens, cfg.CORSOrigins, logger).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopListen()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
