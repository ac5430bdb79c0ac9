package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/xaenox/pride-prime/internal/assistant"
	"github.com/xaenox/pride-prime/internal/bot"
	"github.com/xaenox/pride-prime/internal/session"
	"github.com/xaenox/pride-prime/internal/storage"
	"github.com/xaenox/pride-prime/internal/voice"
	"github.com/xaenox/pride-prime/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "prideprime",
	Short:        "Pride Prime assistant bot for Telegram",
	Version:      "1.0",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize storage
	store, err := storage.Open(storage.DatabaseConfig{
		Driver:   cfg.Storage.Driver,
		Path:     cfg.Storage.Path,
		Host:     cfg.Storage.Host,
		Port:     cfg.Storage.Port,
		User:     cfg.Storage.User,
		Password: cfg.Storage.Password,
		DBName:   cfg.Storage.DBName,
		SSLMode:  cfg.Storage.SSLMode,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer store.Close()

	// Initialize assistant
	responder, err := newResponder(ctx, cfg.Assistant, logger)
	if err != nil {
		logger.Error("Failed to initialize assistant", zap.Error(err))
		return err
	}
	service := assistant.NewService(responder, assistant.Options{
		Timeout:           cfg.Assistant.Timeout,
		RequestsPerSecond: cfg.Assistant.RequestsPerSecond,
		Burst:             cfg.Assistant.Burst,
	}, logger.Named("assistant"))

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, store, service, newVoice(cfg, logger), bot.Options{
		PollTimeout:  cfg.Telegram.PollTimeout,
		TickInterval: cfg.Telegram.TickInterval,
		Session: session.Config{
			RewardInterval: cfg.Rewards.Interval,
			RewardAmount:   cfg.Rewards.Amount,
			UploadBonus:    cfg.Rewards.UploadBonus,
		},
		SubscriptionCost:   cfg.Rewards.SubscriptionCost,
		SubscriptionPeriod: cfg.Rewards.SubscriptionPeriod,
		Speech: voice.SpeechOptions{
			Locale: cfg.Voice.Locale,
			Voice:  cfg.Voice.Voice,
		},
	}, logger)
	if err != nil {
		logger.Error("Failed to create bot", zap.Error(err))
		return err
	}

	// Start the bot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Start(gctx) })
	g.Go(func() error { return b.RunRewards(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Bot error", zap.Error(err))
		return err
	}
	logger.Info("Shutting down")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func newResponder(ctx context.Context, cfg config.AssistantConfig, logger *zap.Logger) (assistant.Responder, error) {
	instruction := cfg.SystemInstruction
	if instruction == "" {
		instruction = assistant.DefaultSystemInstruction
	}

	switch cfg.Provider {
	case "openai":
		model := cfg.Model
		if model == "" {
			model = openai.GPT4oMini
		}
		logger.Info("Using OpenAI assistant", zap.String("model", model))
		return assistant.NewOpenAIResponder(cfg.OpenAIAPIKey, model, instruction, cfg.MaxTokens, cfg.Temperature, logger), nil
	default:
		logger.Info("Using Gemini assistant", zap.String("model", cfg.Model))
		return assistant.NewGeminiResponder(ctx, cfg.GeminiAPIKey, cfg.Model, instruction, cfg.MaxTokens, cfg.Temperature, logger)
	}
}

// newVoice wires OpenAI speech in both directions. Without an OpenAI key the
// bot runs text only.
func newVoice(cfg *config.Config, logger *zap.Logger) bot.Voice {
	if !cfg.Voice.Enabled || cfg.Assistant.OpenAIAPIKey == "" {
		logger.Info("Voice conversations disabled")
		return bot.Voice{}
	}

	client := openai.NewClient(cfg.Assistant.OpenAIAPIKey)
	return bot.Voice{
		Recognizer: voice.NewWhisperRecognizer(client, cfg.Voice.STTModel),
		NewSynthesizer: func(player voice.Player) voice.Synthesizer {
			return voice.NewOpenAISynthesizer(client, cfg.Voice.TTSModel, player)
		},
	}
}
