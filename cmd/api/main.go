package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/carebook/booking-api/internal/config"
	appointmentHandler "github.com/carebook/booking-api/internal/handler/appointment"
	authHandler "github.com/carebook/booking-api/internal/handler/auth"
	doctorHandler "github.com/carebook/booking-api/internal/handler/doctor"
	healthHandler "github.com/carebook/booking-api/internal/handler/health"
	paymentHandler "github.com/carebook/booking-api/internal/handler/payment"
	"github.com/carebook/booking-api/internal/middleware"
	"github.com/carebook/booking-api/internal/repository/postgres"
	"github.com/carebook/booking-api/internal/router"
	appointmentService "github.com/carebook/booking-api/internal/service/appointment"
	authService "github.com/carebook/booking-api/internal/service/auth"
	bookingService "github.com/carebook/booking-api/internal/service/booking"
	doctorService "github.com/carebook/booking-api/internal/service/doctor"
	paymentService "github.com/carebook/booking-api/internal/service/payment"
	scheduleService "github.com/carebook/booking-api/internal/service/schedule"
	"github.com/carebook/booking-api/pkg/auth"
	"github.com/carebook/booking-api/pkg/logger"
	"github.com/carebook/booking-api/pkg/messaging/redis"
	"github.com/carebook/booking-api/pkg/metrics"
	"github.com/carebook/booking-api/pkg/worker"
	"golang.org/x/time/rate"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("booking", "api")

	// Repositories
	doctorRepo := postgres.NewDoctorRepository(db)
	availRepo := postgres.NewAvailabilityRepository(db)
	apptRepo := postgres.NewAppointmentRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	jwtMgr := auth.NewJWTManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(userRepo, jwtMgr, appLogger)
	doctorSvc := doctorService.NewService(doctorRepo, appLogger)
	scheduleSvc := scheduleService.NewService(availRepo, doctorRepo, m)
	bookingSvc := bookingService.NewService(apptRepo, availRepo, m)
	apptSvc := appointmentService.NewService(apptRepo)

	stripeProvider := paymentService.NewStripeProvider(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)
	paymentSvc := paymentService.NewService(stripeProvider, paymentRepo, apptRepo, appLogger, m)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		doctorHandler.NewHandler(doctorSvc, scheduleSvc),
		appointmentHandler.NewHandler(bookingSvc, apptSvc),
		paymentHandler.NewHandler(paymentSvc),
		healthHandler.NewHandler(db),
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(),
			MetricsPrefix:    "booking_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Outbox drain runs inside the API process too, so events flow even when
	// no dedicated worker is deployed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zl := appLogger.WithFields(map[string]interface{}{"component": "outbox"})
	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), zl, m)
	go outboxProcessor.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
