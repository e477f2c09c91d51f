package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/meucuidador/care-api/internal/config"
	authHandler "github.com/meucuidador/care-api/internal/handler/auth"
	caregiverHandler "github.com/meucuidador/care-api/internal/handler/caregiver"
	"github.com/meucuidador/care-api/internal/handler/health"
	notificationHandler "github.com/meucuidador/care-api/internal/handler/notification"
	"github.com/meucuidador/care-api/internal/handler/prometheus"
	userHandler "github.com/meucuidador/care-api/internal/handler/user"
	"github.com/meucuidador/care-api/internal/middleware"
	"github.com/meucuidador/care-api/internal/repository"
	"github.com/meucuidador/care-api/internal/repository/memory"
	"github.com/meucuidador/care-api/internal/repository/postgres"
	redisRepo "github.com/meucuidador/care-api/internal/repository/redis"
	"github.com/meucuidador/care-api/internal/router"
	authService "github.com/meucuidador/care-api/internal/service/auth"
	caregiverService "github.com/meucuidador/care-api/internal/service/caregiver"
	notificationService "github.com/meucuidador/care-api/internal/service/notification"
	"github.com/meucuidador/care-api/pkg/auth"
	"github.com/meucuidador/care-api/pkg/logger"
	"github.com/meucuidador/care-api/pkg/messaging"
	memoryBroker "github.com/meucuidador/care-api/pkg/messaging/memory"
	redisBroker "github.com/meucuidador/care-api/pkg/messaging/redis"
	"github.com/meucuidador/care-api/pkg/metrics"
	"github.com/meucuidador/care-api/pkg/security"
	"github.com/meucuidador/care-api/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		JSON:       cfg.Log.JSON,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	zl := log.Zerolog().With().Str("component", "api").Logger()

	if err := middleware.ConfigureValidation(); err != nil {
		log.Fatal(err, "failed to configure request validation")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		n, err := postgres.NewMigrator(db, zl).Up(context.Background())
		if err != nil {
			log.Fatal(err, "failed to apply migrations")
		}
		zl.Info().Int("applied", n).Msg("schema up to date")
	}

	promH := prometheus.New(cfg.Metrics.Namespace)
	m := metrics.New(cfg.Metrics.Namespace, promH.Registry())

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)

	checkers := map[string]health.Checker{
		"postgres": health.CheckerFunc(base.Ping),
	}

	var (
		ctxRepo repository.ContextRepository
		broker  messaging.Broker
	)
	if cfg.Redis.URL != "" {
		client, err := redisBroker.NewClient(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			log.Fatal(err, "failed to configure Redis")
		}
		ctxRepo = redisRepo.NewContextRepository(client, cfg.Context.TTL, m)
		broker = redisBroker.NewRedisBroker(client, zl)
		checkers["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		zl.Info().Msg("using Redis for viewing contexts and events")
	} else {
		ctxRepo = memory.NewContextRepository(cfg.Context.TTL, cfg.Context.TTL/2)
		broker = memoryBroker.NewBroker()
		zl.Warn().Msg("redis.url not set, viewing contexts and events stay in process")
	}
	defer broker.Close()

	// Initialize services
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry())
	authSvc := authService.NewService(userRepo, jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), zl)
	caregiverSvc := caregiverService.NewService(patientRepo, ctxRepo, broker, m, cfg.Context.PatientListTTL, zl)
	notificationSvc := notificationService.NewService(notificationRepo, broker, validator.New(), m, zl)

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		caregiverSvc,
		router.Handlers{
			Auth:         authHandler.NewHandler(authSvc),
			Caregiver:    caregiverHandler.NewHandler(caregiverSvc),
			User:         userHandler.NewHandler(caregiverSvc),
			Notification: notificationHandler.NewHandler(notificationSvc, m, zl, cfg.CORS.AllowedOrigins),
			Health:       health.NewHandler(checkers),
			Prometheus:   promH,
		},
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
			MetricsEnabled:   cfg.Metrics.Enabled,
		},
		zl,
	)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		zl.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error().Err(err).Msg("server forced to shutdown")
	}
	zl.Info().Msg("server exited")
}
