package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/waflow/waflow/config"
	"github.com/waflow/waflow/internal/email"
	accountHandler "github.com/waflow/waflow/internal/handler/account"
	authHandler "github.com/waflow/waflow/internal/handler/auth"
	campaignHandler "github.com/waflow/waflow/internal/handler/campaign"
	contactHandler "github.com/waflow/waflow/internal/handler/contact"
	healthHandler "github.com/waflow/waflow/internal/handler/health"
	messageHandler "github.com/waflow/waflow/internal/handler/message"
	templateHandler "github.com/waflow/waflow/internal/handler/template"
	webhookHandler "github.com/waflow/waflow/internal/handler/webhook"
	"github.com/waflow/waflow/internal/repository/postgres"
	"github.com/waflow/waflow/internal/router"
	accountService "github.com/waflow/waflow/internal/service/account"
	authService "github.com/waflow/waflow/internal/service/auth"
	campaignService "github.com/waflow/waflow/internal/service/campaign"
	contactService "github.com/waflow/waflow/internal/service/contact"
	messageService "github.com/waflow/waflow/internal/service/message"
	notificationService "github.com/waflow/waflow/internal/service/notification"
	quotaService "github.com/waflow/waflow/internal/service/quota"
	templateService "github.com/waflow/waflow/internal/service/template"
	webhookService "github.com/waflow/waflow/internal/service/webhook"
	"github.com/waflow/waflow/internal/whatsapp"
	"github.com/waflow/waflow/pkg/auth"
	"github.com/waflow/waflow/pkg/logger"
	"github.com/waflow/waflow/pkg/messaging"
	redisbroker "github.com/waflow/waflow/pkg/messaging/redis"
	"github.com/waflow/waflow/pkg/metrics"
	"github.com/waflow/waflow/pkg/security"
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

	m := metrics.New("waflow")

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(baseRepo)
	contactRepo := postgres.NewContactRepository(baseRepo)
	templateRepo := postgres.NewTemplateRepository(baseRepo)
	campaignRepo := postgres.NewCampaignRepository(baseRepo)
	messageRepo := postgres.NewMessageRepository(baseRepo)
	eventRepo := postgres.NewWebhookEventRepository(baseRepo)

	// Shared infrastructure
	tokens := auth.NewTokenService(cfg.JWT.ToAuthConfig())
	hasher := security.NewBcryptHasher(0)
	waClient := whatsapp.NewClient(cfg.WhatsApp.ToClientConfig(), m, appLogger)

	emailSvc := email.NewNoopService()
	if cfg.SMTP.ToEmailConfig().Enabled() {
		emailSvc = email.NewSMTPService(cfg.SMTP.ToEmailConfig())
	}

	// Services
	quotaSvc := quotaService.NewService(accountRepo, m)
	authSvc := authService.NewService(accountRepo, hasher, tokens)
	accountSvc := accountService.NewService(accountRepo)
	contactSvc := contactService.NewService(contactRepo)
	templateSvc := templateService.NewService(templateRepo, accountRepo, waClient, appLogger)
	notifier := notificationService.NewService(accountRepo, emailSvc, appLogger)
	runner := campaignService.NewRunner(
		campaignRepo, contactRepo, messageRepo,
		quotaSvc, waClient, broker, notifier, m, appLogger,
	)
	campaignSvc := campaignService.NewService(
		campaignRepo, contactRepo, templateRepo, accountRepo, runner, appLogger,
	)
	messageSvc := messageService.NewService(
		messageRepo, contactRepo, accountRepo, templateRepo, quotaSvc, waClient, appLogger,
	)
	reconciler := webhookService.NewReconciler(
		messageRepo, contactRepo, campaignRepo, accountRepo, eventRepo,
		broker, m, appLogger,
	)

	// Handlers
	healthH := healthHandler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	webhookH := webhookHandler.NewHandler(reconciler, cfg.WhatsApp.WebhookVerifyToken, appLogger)

	r := router.New(
		tokens,
		healthH,
		authH,
		webhookH,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
		},
		accountHandler.NewHandler(accountSvc, quotaSvc),
		contactHandler.NewHandler(contactSvc),
		templateHandler.NewHandler(templateSvc),
		campaignHandler.NewHandler(campaignSvc),
		messageHandler.NewHandler(messageSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
