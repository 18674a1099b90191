// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and RADAR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"announcement-radar/internal/extraction"
	"announcement-radar/internal/llm"
)

// EnvPrefix prefixes every environment override, e.g. RADAR_POLL_SCHEDULE.
const EnvPrefix = "RADAR"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the top-level service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Poll      PollConfig      `mapstructure:"poll"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
}

// LoggerConfig configures internal/logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RecentLimit     int           `mapstructure:"recent_limit" validate:"min=1,max=500"`
}

// PollConfig configures the poll cycle.
type PollConfig struct {
	// Schedule is a robfig/cron expression, e.g. "@every 10m" or "*/5 * * * *".
	Schedule         string        `mapstructure:"schedule" validate:"required"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
	Pages            int           `mapstructure:"pages" validate:"min=1,max=10"`
	ClassifyInterval time.Duration `mapstructure:"classify_interval" validate:"gte=0"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=memory postgres"`
	PostgresDSN   string `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	Migrate       bool   `mapstructure:"migrate"`
}

// RedisConfig configures the subscription cache. An empty address selects the
// in-memory cache.
type RedisConfig struct {
	Address         string        `mapstructure:"address"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db" validate:"gte=0"`
	SubscriptionTTL time.Duration `mapstructure:"subscription_ttl" validate:"gt=0"`
}

// LLMConfig selects the classification model.
type LLMConfig struct {
	Provider string        `mapstructure:"provider" validate:"oneof=openai claude gemini"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// TelegramConfig configures the chat notifier. An empty token logs messages
// instead of sending them.
type TelegramConfig struct {
	Token    string `mapstructure:"token"`
	Endpoint string `mapstructure:"endpoint"`
}

// ExchangesConfig lists the polled sources.
type ExchangesConfig struct {
	Enabled []string `mapstructure:"enabled" validate:"dive,oneof=binance bitget okx"`
	// Strategies maps an exchange to its token strategy (ai or regex).
	Strategies map[string]string `mapstructure:"strategies" validate:"dive,keys,required,endkeys,oneof=ai regex"`
	// Prompts overrides the built-in classification prompts per exchange.
	Prompts map[string]string `mapstructure:"prompts"`
	Binance BinanceConfig     `mapstructure:"binance"`
	Bitget  BitgetConfig      `mapstructure:"bitget"`
	OKX     OKXConfig         `mapstructure:"okx"`
	RSS     []FeedConfig      `mapstructure:"rss" validate:"dive"`
	HTML    []HTMLConfig      `mapstructure:"html" validate:"dive"`
}

// BinanceConfig configures the Binance fetcher.
type BinanceConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// BitgetConfig configures the Bitget fetcher.
type BitgetConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	AnnType string `mapstructure:"ann_type"`
}

// OKXConfig configures the OKX fetcher.
type OKXConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	AnnType string `mapstructure:"ann_type"`
}

// FeedConfig is an RSS or Atom source.
type FeedConfig struct {
	Exchange string `mapstructure:"exchange" validate:"required"`
	URL      string `mapstructure:"url" validate:"required,url"`
}

// HTMLConfig is a scraped HTML list source.
type HTMLConfig struct {
	Exchange   string `mapstructure:"exchange" validate:"required"`
	URL        string `mapstructure:"url" validate:"required"`
	Item       string `mapstructure:"item" validate:"required"`
	Title      string `mapstructure:"title"`
	Link       string `mapstructure:"link"`
	Time       string `mapstructure:"time"`
	TimeLayout string `mapstructure:"time_layout"`
}

// Load reads configuration. An empty path searches ./config.yaml and
// ./config/config.yaml; a missing file is not an error in that case.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, fmt.Errorf("bind environment variables: %w", err)
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfigLoadFailed, path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	return nil
}

// setDefaults sets production-safe defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "announcement-radar")
	v.SetDefault("app.environment", "production")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.recent_limit", 50)

	v.SetDefault("poll.schedule", "@every 10m")
	v.SetDefault("poll.run_on_start", true)
	v.SetDefault("poll.pages", 1)
	v.SetDefault("poll.classify_interval", "1s")
	v.SetDefault("poll.max_attempts", 3)
	v.SetDefault("poll.retry_delay", "2s")

	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.migrate", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.subscription_ttl", "5m")

	v.SetDefault("llm.provider", llm.ProviderOpenAI)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.endpoint", "")

	v.SetDefault("exchanges.enabled", []string{"binance", "bitget", "okx"})
	v.SetDefault("exchanges.strategies", map[string]string{
		"binance": string(extraction.StrategyAI),
		"bitget":  string(extraction.StrategyRegex),
		"okx":     string(extraction.StrategyAI),
	})
	v.SetDefault("exchanges.binance.base_url", "")
	v.SetDefault("exchanges.bitget.base_url", "")
	v.SetDefault("exchanges.bitget.ann_type", "")
	v.SetDefault("exchanges.okx.base_url", "")
	v.SetDefault("exchanges.okx.ann_type", "")
}

// bindEnvironmentVariables binds well-known unprefixed variables as fallbacks.
func bindEnvironmentVariables(v *viper.Viper) error {
	bindings := map[string][]string{
		"storage.postgres_dsn":   {"RADAR_STORAGE_POSTGRES_DSN", "POSTGRES_DSN"},
		"storage.clickhouse_dsn": {"RADAR_STORAGE_CLICKHOUSE_DSN", "CLICKHOUSE_DSN"},
		"redis.address":          {"RADAR_REDIS_ADDRESS", "REDIS_ADDR"},
		"llm.api_key":            {"RADAR_LLM_API_KEY", "DEEPSEEK_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY"},
		"telegram.token":         {"RADAR_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	for i, e := range c.Exchanges.Enabled {
		c.Exchanges.Enabled[i] = strings.ToLower(strings.TrimSpace(e))
	}
	strategies := make(map[string]string, len(c.Exchanges.Strategies))
	for exchange, s := range c.Exchanges.Strategies {
		strategies[strings.ToLower(exchange)] = strings.ToLower(strings.TrimSpace(s))
	}
	c.Exchanges.Strategies = strategies
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidationFailed, err)
	}
	return nil
}

// Strategies returns the parsed per-exchange token strategies.
func (c *Config) Strategies() (map[string]extraction.Strategy, error) {
	result := make(map[string]extraction.Strategy, len(c.Exchanges.Strategies))
	for exchange, s := range c.Exchanges.Strategies {
		strategy, err := extraction.ParseStrategy(s)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", exchange, err)
		}
		result[exchange] = strategy
	}
	return result, nil
}

// LLMSettings converts the LLM section for llm.New.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.LLM.Timeout,
	}
}
