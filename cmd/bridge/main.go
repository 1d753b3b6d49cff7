package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/unred/signal-bridge/internal/api"
	"github.com/unred/signal-bridge/internal/biz"
	"github.com/unred/signal-bridge/internal/biz/usecase"
	"github.com/unred/signal-bridge/internal/conf"
	"github.com/unred/signal-bridge/internal/data"
	"github.com/unred/signal-bridge/internal/infra/converter"
	"github.com/unred/signal-bridge/internal/infra/feishu"
	"github.com/unred/signal-bridge/internal/infra/telegram"
	"github.com/unred/signal-bridge/internal/logger"
	"github.com/unred/signal-bridge/internal/metrics"
	"github.com/unred/signal-bridge/internal/server"
	"github.com/unred/signal-bridge/internal/service"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	logger.Init(logger.FromEnv())
	log := logger.Named("bridge")
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	for _, id := range cfg.UnroutedChats() {
		log.Warn().Int64("chat", id).Msg("allowed chat has no master hint, its messages will be ignored")
	}

	metrics.Register()

	// Initialize clients
	converterClient := converter.NewClient(cfg.Converter.LoginURL, cfg.Converter.URL, cfg.Converter.PIN)
	telegramClient := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.PollTimeout)

	var feishuClient *feishu.Client
	if cfg.Feishu.Enabled() {
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		log.Info().Str("chat", cfg.Feishu.NotifyChatID).Msg("feishu delivery mirror enabled")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(converterClient, data.Options{
		StateBackend:  cfg.State.Backend,
		StateFile:     cfg.State.File,
		StateDBPath:   cfg.State.DBPath,
		QueueCapacity: cfg.Pipeline.QueueCapacity,
		FeishuClient:  feishuClient,
		NotifyChatID:  cfg.Feishu.NotifyChatID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}
	defer repos.Close()

	// Initialize usecase layer
	mode, _ := usecase.ParseClassifierMode(cfg.Pipeline.ClassifierMode)
	ucs := biz.NewUsecases(repos.Watermark, repos.Queue, repos.Converter, mode, cfg.ToDeliveryConfig())

	// Initialize service layer
	relay := service.NewRelayService(ucs.Pipeline, ucs.Delivery, repos.Queue, repos.Notifier, cfg.ToRelayConfig())
	stale := service.NewStaleMonitor(repos.Queue, repos.Notifier, cfg.Delivery.StaleInterval, cfg.Delivery.StaleAfter)

	// Initialize inspection API
	apiServer := api.NewServer(relay, cfg.Telegram.AllowedChatIDs, cfg.API.Port)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()

	// Initialize server
	srv := server.NewTelegramServer(telegramClient, relay, stale, cfg, cfg.Telegram.AllowedChatIDs)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("backend", cfg.State.Backend).
		Str("mode", cfg.Delivery.Mode).
		Str("classifier", string(mode)).
		Int("queue", cfg.Pipeline.QueueCapacity).
		Msg("starting signal bridge")

	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down")
	srv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown")
	}
}
