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

	"github.com/vibranium-fest/pass-server-go/internal/config"
	"github.com/vibranium-fest/pass-server-go/internal/database"
	"github.com/vibranium-fest/pass-server-go/internal/handler"
	"github.com/vibranium-fest/pass-server-go/internal/jobs"
	"github.com/vibranium-fest/pass-server-go/internal/middleware"
	"github.com/vibranium-fest/pass-server-go/internal/qr"
	"github.com/vibranium-fest/pass-server-go/internal/redis"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/service"
	"github.com/vibranium-fest/pass-server-go/internal/sse"
	"github.com/vibranium-fest/pass-server-go/internal/ticket"
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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	profileRepo := repository.NewProfileRepository(db.DB)
	regRepo := repository.NewRegistrationRepository(db.DB)
	auditRepo := repository.NewCheckinAuditRepository(db.DB)
	sessionRepo := repository.NewScannerSessionRepository(db.DB)
	staffRepo := repository.NewStaffRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	qrOpts := qr.Options{
		PixelSize: cfg.QRPixelSize,
		Margin:    cfg.QRMargin,
		Level:     cfg.IssueLevel(),
	}

	compositorOpts := []ticket.Option{}
	if cfg.TicketFontPath != "" {
		nameFace, err := ticket.LoadFontFace(cfg.TicketFontPath, cfg.TicketFontPoints)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load ticket font")
		}
		idFace, err := ticket.LoadFontFace(cfg.TicketFontPath, cfg.TicketFontPoints*0.6)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load ticket font")
		}
		compositorOpts = append(compositorOpts, ticket.WithFontFaces(nameFace, idFace))
	}
	compositor := ticket.NewCompositor(cfg.TicketBackgroundPath, compositorOpts...)

	issuerService := service.NewIssuerService(profileRepo, regRepo, qrOpts)
	redemptionService := service.NewRedemptionService(db, profileRepo, regRepo, auditRepo, broker)
	intakeService := service.NewIntakeService(
		sessionRepo, redisClient, redemptionService,
		cfg.ScanDedupeWindow(), cfg.ScannerSessionTTL(),
	)
	mailerService := service.NewMailerService(cfg.MailerURL)

	attendeeAuth := middleware.NewAttendeeAuthMiddleware(cfg.IdentityJWTSecret)
	staffAuth := middleware.NewStaffAuthMiddleware(staffRepo)
	rateLimit := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isProduction)

	passHandler := handler.NewPassHandler(issuerService, compositor, mailerService, profileRepo)
	scannerHandler := handler.NewScannerHandler(intakeService)
	checkinHandler := handler.NewCheckinHandler(intakeService, redemptionService, auditRepo)
	liveHandler := handler.NewLiveHandler(broker)
	adminHandler := handler.NewAdminHandler(issuerService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)
	r.Use(securityHeaders.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/pass", func(r chi.Router) {
		r.Use(attendeeAuth.Handler)
		r.Use(rateLimit.Handler)
		r.Mount("/", passHandler.Routes())
	})

	r.Route("/staff", func(r chi.Router) {
		r.Use(staffAuth.Handler)
		r.Use(rateLimit.Handler)

		r.Mount("/scanner", scannerHandler.Routes())
		r.Mount("/checkin", checkinHandler.Routes())
		r.Mount("/passes", adminHandler.Routes())

		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/checkins", checkinHandler.ListCheckins)
			r.Get("/live", liveHandler.ServeHTTP)
		})
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays zero so SSE connections are not cut off.
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
