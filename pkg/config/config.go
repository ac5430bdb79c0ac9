package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type TelegramConfig struct {
	Token        string        `mapstructure:"token"`
	PollTimeout  int           `mapstructure:"poll_timeout"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // memory, sqlite or postgres
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AssistantConfig struct {
	Provider          string        `mapstructure:"provider"` // gemini or openai
	Model             string        `mapstructure:"model"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	OpenAIAPIKey      string        `mapstructure:"openai_api_key"`
}

type VoiceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Locale   string `mapstructure:"locale"`
	Voice    string `mapstructure:"voice"`
	STTModel string `mapstructure:"stt_model"`
	TTSModel string `mapstructure:"tts_model"`
}

type RewardsConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	Amount             float64       `mapstructure:"amount"`
	UploadBonus        float64       `mapstructure:"upload_bonus"`
	SubscriptionCost   float64       `mapstructure:"subscription_cost"`
	SubscriptionPeriod time.Duration `mapstructure:"subscription_period"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (StorageConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return StorageConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return StorageConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return StorageConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return StorageConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.tick_interval", time.Minute)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "prideprime.db")
	v.SetDefault("storage.port", 5432)
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.user", "postgres")
	v.SetDefault("storage.sslmode", "disable")
	v.SetDefault("assistant.provider", "gemini")
	v.SetDefault("assistant.timeout", 20*time.Second)
	v.SetDefault("assistant.max_tokens", 150)
	v.SetDefault("assistant.temperature", 0.7)
	v.SetDefault("assistant.requests_per_second", 1.0)
	v.SetDefault("assistant.burst", 3)
	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.locale", "hi-IN")
	v.SetDefault("voice.voice", "nova")
	v.SetDefault("voice.stt_model", "whisper-1")
	v.SetDefault("voice.tts_model", "tts-1")
	v.SetDefault("rewards.interval", 2*time.Hour)
	v.SetDefault("rewards.amount", 5.0)
	v.SetDefault("rewards.upload_bonus", 1.0)
	v.SetDefault("rewards.subscription_cost", 9.99)
	v.SetDefault("rewards.subscription_period", 30*24*time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig reads path (YAML) on top of the defaults. A missing file is not
// an error; environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Storage = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.Assistant.OpenAIAPIKey = apiKey
	}
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Assistant.GeminiAPIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch c.Assistant.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("assistant.provider: unknown provider %q", c.Assistant.Provider)
	}
	if c.Rewards.Interval <= 0 {
		return fmt.Errorf("rewards.interval must be positive")
	}
	if c.Rewards.Amount < 0 || c.Rewards.UploadBonus < 0 {
		return fmt.Errorf("rewards amounts must not be negative")
	}
	return nil
}
