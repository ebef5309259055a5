package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/duetapp/notify-api/config"
	"github.com/duetapp/notify-api/internal/handler"
	notificationHandler "github.com/duetapp/notify-api/internal/handler/notification"
	presenceHandler "github.com/duetapp/notify-api/internal/handler/presence"
	subscriptionHandler "github.com/duetapp/notify-api/internal/handler/subscription"
	wsHandler "github.com/duetapp/notify-api/internal/handler/ws"
	"github.com/duetapp/notify-api/internal/middleware"
	"github.com/duetapp/notify-api/internal/presence"
	"github.com/duetapp/notify-api/internal/push"
	"github.com/duetapp/notify-api/internal/repository/postgres"
	"github.com/duetapp/notify-api/internal/router"
	deliveryService "github.com/duetapp/notify-api/internal/service/delivery"
	notificationService "github.com/duetapp/notify-api/internal/service/notification"
	subscriptionService "github.com/duetapp/notify-api/internal/service/subscription"
	"github.com/duetapp/notify-api/internal/ws"
	"github.com/duetapp/notify-api/pkg/logger"
	redisBroker "github.com/duetapp/notify-api/pkg/messaging/redis"
	"github.com/duetapp/notify-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger.Component(log, "broker"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.New("notify")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Presence tracking and live fan-out.
	tracker := presence.NewTracker(presence.Config{
		Timeout:      cfg.Presence.Timeout,
		ReapInterval: cfg.Presence.ReapInterval,
	}, broker, m, logger.Component(log, "presence"))
	go tracker.Run(ctx)

	hub := ws.NewHub(tracker, m, logger.Component(log, "ws"))

	// Presence transitions from every instance reach every session.
	go func() {
		events, err := broker.Subscribe(ctx, presence.Topic)
		if err != nil {
			log.Error().Err(err).Msg("failed to subscribe to presence events")
			return
		}
		for msg := range events {
			hub.BroadcastAll("presence", json.RawMessage(msg))
		}
	}()

	// Repositories and services.
	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	subscriptionRepo := postgres.NewPushSubscriptionRepository(base)

	ledgerSvc := notificationService.NewService(notificationRepo, logger.Component(log, "ledger"))
	subscriptionSvc := subscriptionService.NewService(subscriptionRepo, logger.Component(log, "registry"))

	// Push channels.
	httpClient := &http.Client{Timeout: cfg.Push.AttemptTimeout}
	standard := push.NewStandardChannel(push.StandardConfig{
		VAPIDPublicKey:  cfg.Secrets.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Secrets.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}, httpClient)

	var gateway push.GatewaySender
	if cfg.Secrets.GatewayCredentialsFile != "" {
		tokens, err := push.CredentialsTokenSource(ctx, cfg.Secrets.GatewayCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load gateway credentials")
		}
		gateway = push.NewGatewayChannel(push.GatewayConfig{
			EndpointHost: cfg.Push.GatewayEndpointHost,
			SendURL:      cfg.Push.GatewaySendURL,
		}, tokens, httpClient)
	} else {
		log.Warn().Msg("gateway credentials not configured, vendor channel disabled")
	}

	engine := push.NewEngine(subscriptionRepo, standard, gateway,
		cfg.Push.AttemptTimeout, m, logger.Component(log, "push"))

	dispatcher := deliveryService.NewService(ledgerSvc, tracker, hub, engine, m,
		logger.Component(log, "delivery"))

	// HTTP surface.
	authMiddleware := middleware.NewAuthMiddleware(cfg.Secrets.JWTSecret)
	r := router.NewRouter(
		authMiddleware,
		notificationHandler.NewHandler(ledgerSvc, dispatcher),
		subscriptionHandler.NewHandler(subscriptionSvc, cfg.Secrets.VAPIDPublicKey),
		presenceHandler.NewHandler(tracker),
		wsHandler.NewHandler(hub, logger.Component(log, "ws")),
		handler.NewHealthHandler(db),
		m,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

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
