package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/velden/playerok-bridge/internal/bot"
	"github.com/velden/playerok-bridge/internal/config"
	"github.com/velden/playerok-bridge/internal/logger"
	"github.com/velden/playerok-bridge/internal/nats"
	"github.com/velden/playerok-bridge/internal/playerok"
	"github.com/velden/playerok-bridge/internal/publisher"
	"github.com/velden/playerok-bridge/internal/runner"
	"github.com/velden/playerok-bridge/internal/web"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting playerok bridge")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Open subscriber registry
	registry, err := bot.OpenRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open registry")
	}

	// 5. Marketplace client
	transport := playerok.NewTransport(playerok.TransportConfig{
		Endpoint:       cfg.GraphQLURL,
		Token:          cfg.Token,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		RequestsPerSec: cfg.RequestsPerSec,
		Logger:         log,
	})
	account := playerok.NewAccount(transport, log)
	account.SetMessagesLimit(cfg.MessagesLimit)

	profile, err := account.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to authenticate against playerok")
	}
	log.Info().Str("username", profile.Username).Str("user_id", profile.ID).Msg("authenticated")

	// 6. Connect to NATS (optional)
	var nc *nats.Client
	var pub *publisher.NATSPublisher
	if cfg.NatsURL != "" {
		nc, err = nats.New(cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			pub = publisher.NewNATSPublisher(nc.Conn)
		}
	}

	// 7. Telegram bot
	botSvc, err := bot.New(bot.Options{
		Token:    cfg.BotToken,
		Password: cfg.BotPassword,
		Registry: registry,
		Account:  account,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	go func() {
		if err := botSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("telegram bot stopped")
			cancel()
		}
	}()

	// 8. Poller
	poller := runner.New(account, runner.Options{
		Interval: cfg.PollInterval,
		Strict:   cfg.StrictErrors,
		Logger:   log,
	})

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("poller stopped")
			cancel()
		}
	}()

	// 9. Status server (optional)
	if cfg.HTTPPort > 0 {
		statusSrv := web.NewServer(web.Options{
			Port:    cfg.HTTPPort,
			Stats:   poller,
			Account: profile.Username,
			NATSCheck: func() bool {
				return nc != nil && nc.IsConnected()
			},
			Logger: log,
		})
		go func() {
			if err := statusSrv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	// 10. Fan events out to telegram and the bus
	for event := range poller.Events() {
		log.Info().
			Str("chat_id", event.ChatID).
			Str("message_id", event.Message.ID).
			Str("type", string(event.Message.Type)).
			Msg("new message")

		botSvc.Notify(ctx, event)

		if pub != nil {
			if err := pub.PublishMessageNew(ctx, event); err != nil {
				log.Error().Err(err).Msg("failed to publish event")
			}
		}
	}

	log.Info().Msg("shutdown complete")
}
