package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siriusbot/chats"
	"siriusbot/config"
	"siriusbot/conversation"
	"siriusbot/dialogue"
	"siriusbot/logging"
	"siriusbot/telegram"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logFile    string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:          "siriusbot",
		Short:        "Telegram bot that collects problem reports through a scripted dialogue",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			return run(ctx, cfg, logFile)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration")
	cmd.Flags().StringVarP(&logFile, "logfile", "l", "", "rotated JSON log file (stdout only when empty)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logFile string) error {
	log := logging.New(logging.Options{File: logFile, Level: cfg.LogLevel, Production: cfg.Production})
	defer func() { _ = log.Sync() }()

	api, err := telegram.NewClient(telegram.WithToken(cfg.Token))
	if err != nil {
		return err
	}

	var hash chats.HashClient
	if rdb := chats.Connect(ctx, cfg.RedisAddr, log); rdb != nil {
		defer rdb.Close()
		hash = rdb
	}
	registry := chats.NewRegistry(hash, cfg.ChatRegistryKey, cfg.Chats, log)
	if err := registry.Load(ctx); err != nil {
		log.Warn("chat registry not loaded", zap.Error(err))
	}

	bot, err := assemble(cfg, api, registry, log)
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}

	err = bot.Run(ctx)
	log.Info("shutting down, waiting for pending reports")
	bot.aggregator.Wait()
	return err
}

// assemble builds the dialogue graph and conversation components around api.
func assemble(cfg *config.Config, api *telegram.Client, registry *chats.Registry, log *zap.Logger) (*Bot, error) {
	destinations := registry.Table()
	entry, err := dialogue.Build(cfg.Dialogue, destinations)
	if err != nil {
		return nil, fmt.Errorf("dialogue: %w", err)
	}
	composer, err := conversation.NewComposer(cfg.Report, destinations)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	out := newOutbox(api, cfg.Messages, log)
	store := conversation.NewStore(cfg.ConversationTTL, cleanupInterval(cfg.ConversationTTL))
	machine := conversation.NewMachine(entry, store, out, cfg.Messages, log)
	aggregator := conversation.NewAggregator(store, composer, out, out, cfg.Latency,
		conversation.WithLogger(log),
		conversation.WithMessages(cfg.Messages),
		conversation.WithDispatchTimeout(cfg.DispatchTimeout),
		conversation.WithErrorHandler(out.notifyDispatchFailure),
	)

	return &Bot{
		api:        api,
		registry:   registry,
		store:      store,
		machine:    machine,
		aggregator: aggregator,
		messages:   cfg.Messages.WithDefaults(),
		log:        log.Named("bot"),
	}, nil
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return min(ttl, 10*time.Minute)
}
