package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/remotehand/signaling-server-go/internal/config"
	"github.com/remotehand/signaling-server-go/internal/database"
	"github.com/remotehand/signaling-server-go/internal/handler"
	"github.com/remotehand/signaling-server-go/internal/jobs"
	"github.com/remotehand/signaling-server-go/internal/middleware"
	"github.com/remotehand/signaling-server-go/internal/notify"
	"github.com/remotehand/signaling-server-go/internal/redis"
	"github.com/remotehand/signaling-server-go/internal/repository"
	"github.com/remotehand/signaling-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run schema migration")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	logRepo := repository.NewSessionLogRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	recordingRepo := repository.NewRecordingRepository(db.DB)

	notifier := notify.NewLogNotifier()

	sessionService := service.NewSessionService(sessionRepo, logRepo, recordingRepo, notifier)
	signalingService := service.NewSignalingService(sessionRepo, logRepo, sessionService)
	calendarService := service.NewCalendarService(userRepo, sessionService, cfg.CalendarAPISecret, cfg.BaseURL)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminUsername, cfg.AdminPasswordHash)
	joinRateLimit := middleware.NewIPRateLimitMiddleware(redisClient.Client, cfg.JoinRatePerMin, "join")
	signalRateLimit := middleware.NewIPRateLimitMiddleware(redisClient.Client, cfg.SignalRatePerMin, "signal")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	sessionHandler := handler.NewSessionHandler(sessionService)
	signalingHandler := handler.NewSignalingHandler(signalingService, joinRateLimit.Handler, signalRateLimit.Handler)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	adminHandler := handler.NewAdminHandler(sessionRepo, adminAuthMiddleware.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", sessionHandler.Routes())
	})

	r.Route("/api/recordings", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Delete("/{recordingId}", sessionHandler.DeleteRecording)
	})

	r.Route("/api/signaling", func(r chi.Router) {
		r.Use(authMiddleware.Optional)
		r.Mount("/", signalingHandler.Routes())
	})

	r.Route("/api/calendar", func(r chi.Router) {
		r.Use(signalRateLimit.Handler)
		r.Mount("/", calendarHandler.Routes())
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/", adminHandler.Routes())
	})

	expiryJob := jobs.NewExpiryJob(sessionRepo, config.ExpirySweepInterval)
	expiryJob.Start()
	defer expiryJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
