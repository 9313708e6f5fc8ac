package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/carebook/booking-api/internal/config"
	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository/postgres"
	notificationService "github.com/carebook/booking-api/internal/service/notification"
	"github.com/carebook/booking-api/pkg/logger"
	"github.com/carebook/booking-api/pkg/messaging/redis"
	"github.com/carebook/booking-api/pkg/metrics"
	"github.com/carebook/booking-api/pkg/worker"
)

func main() {
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

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("booking", "worker")

	outboxRepo := postgres.NewOutboxRepository(db)
	apptRepo := postgres.NewAppointmentRepository(db)
	userRepo := postgres.NewUserRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxLogger := appLogger.WithFields(map[string]interface{}{"component": "outbox"})
	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), outboxLogger, m)
	go processor.Start(ctx)

	notifier := notificationService.NewService(notificationService.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, apptRepo, userRepo, appLogger)

	go func() {
		err := notifier.Run(ctx, broker,
			model.EventAppointmentBooked,
			model.EventAppointmentPaid,
			model.EventAppointmentCancelled,
		)
		if err != nil {
			log.Error().Err(err).Msg("notification consumer stopped")
		}
	}()

	setupHealthCheck(appLogger)

	log.Info().Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()
}

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "health check server failed")
		}
	}()
}
