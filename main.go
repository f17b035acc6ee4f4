package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkdrop/internal/api"
	"linkdrop/internal/assistant"
	"linkdrop/internal/config"
	"linkdrop/internal/db"
	"linkdrop/internal/ledger"
	"linkdrop/internal/logging"
	"linkdrop/internal/processor"
	"linkdrop/internal/redis"
	"linkdrop/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.BotToken == "" {
		panic("missing BOT_TOKEN")
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service",
		"service", "linkdrop",
		"http_addr", cfg.HTTPAddr,
		"bot_token", logging.MaskToken(cfg.BotToken),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// connect to postgres (with retry: the db container may still be coming up)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Error("schema_bootstrap_failed", "error", err)
		os.Exit(1)
	}

	// connect to redis
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	store := ledger.NewPG(dbConn)

	tgClient := telegram.NewClientWithOptions(logger, cfg.BotToken, telegram.ClientOptions{
		PollTimeout: time.Duration(cfg.PollTimeoutSeconds) * time.Second,
	})

	if cfg.AssistantAPIKey == "" {
		logger.Warn("assistant_api_key_not_configured", "msg", "free-text messages will get the fallback reply")
	}
	aiClient := assistant.NewClient(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel)

	ep := processor.New(logger, store, redisClient, tgClient, aiClient, cfg.AdminUserID)
	ep.Start()

	scheduler := processor.NewSweepScheduler(logger, ep, cfg.WarnSweepInterval, cfg.PenaltySweepInterval)
	go scheduler.Start()

	poller := telegram.NewPoller(logger, tgClient, ep.EnqueueUpdate)
	go poller.Run()

	srv := api.NewServer(logger, store, redisClient, cfg)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("service_ready", "addr", cfg.HTTPAddr, "admin_user_configured", cfg.AdminUserID != 0)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// stop producers first, then drain the worker
	poller.Stop()
	logger.Info("poller_shut_down")

	scheduler.Stop()
	logger.Info("sweep_scheduler_shut_down")

	ep.Stop()
	logger.Info("event_worker_shut_down")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("service_stopped")
}
