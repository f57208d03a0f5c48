package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/waflow/waflow/config"
	"github.com/waflow/waflow/internal/email"
	"github.com/waflow/waflow/internal/repository/postgres"
	campaignService "github.com/waflow/waflow/internal/service/campaign"
	notificationService "github.com/waflow/waflow/internal/service/notification"
	quotaService "github.com/waflow/waflow/internal/service/quota"
	"github.com/waflow/waflow/internal/whatsapp"
	"github.com/waflow/waflow/internal/worker"
	"github.com/waflow/waflow/pkg/logger"
	"github.com/waflow/waflow/pkg/messaging"
	redisbroker "github.com/waflow/waflow/pkg/messaging/redis"
	"github.com/waflow/waflow/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(cfg.Logger.ToLoggerConfig())
	log.Logger = appLogger

	db, err := postgres.NewDB(cfg.Database.ToDatabaseConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	m := metrics.New("waflow_worker")

	baseRepo := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(baseRepo)
	contactRepo := postgres.NewContactRepository(baseRepo)
	templateRepo := postgres.NewTemplateRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)
	messageRepo := postgres.NewMessageRepository(baseRepo)

	waClient := whatsapp.NewClient(cfg.WhatsApp.ToClientConfig(), m, appLogger)

	emailSvc := email.NewNoopService()
	if cfg.SMTP.ToEmailConfig().Enabled() {
		emailSvc = email.NewSMTPService(cfg.SMTP.ToEmailConfig())
	}

	quotaSvc := quotaService.NewService(accountRepo, m)
	notifier := notificationService.NewService(accountRepo, emailSvc, appLogger)
	runner := campaignService.NewRunner(
		campaignRepo, contactRepo, messageRepo,
		quotaSvc, waClient, broker, notifier, m, appLogger,
	)
	campaignSvc := campaignService.NewService(
		campaignRepo, contactRepo, templateRepo, accountRepo, runner, appLogger,
	)

	scheduler := worker.NewScheduler(campaignRepo, campaignSvc, worker.SchedulerConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
	}, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down...")
		cancel()
	}()

	scheduler.Start(ctx)
}

func setupHealthCheck(logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logger.Error().Err(err).Msg("health check server failed")
		}
	}()
}
