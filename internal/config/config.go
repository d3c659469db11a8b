// Package config materialises application configuration from file,
// environment, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mr-tron/base58"
	"github.com/spf13/viper"

	"solana-buy-watcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Token      TokenConfig      `mapstructure:"token"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TokenConfig identifies the tracked token.
type TokenConfig struct {
	Mint   string `mapstructure:"mint"`
	Symbol string `mapstructure:"symbol"`
}

// SolanaConfig covers chain data access.
type SolanaConfig struct {
	WSEndpoint     string        `mapstructure:"ws_endpoint"`
	APIEndpoint    string        `mapstructure:"api_endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig routes alerts to a channel.
type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
	APIBase   string `mapstructure:"api_base"`
}

// AlertingConfig defines alert thresholds and presentation.
type AlertingConfig struct {
	MinBuySOL   float64  `mapstructure:"min_buy_sol"`
	WhaleMinSOL float64  `mapstructure:"whale_min_sol"`
	MediaURLs   []string `mapstructure:"media_urls"`
}

// MonitorConfig governs the subscription loop.
type MonitorConfig struct {
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// EnrichmentConfig covers market data providers.
type EnrichmentConfig struct {
	MarketBaseURL    string        `mapstructure:"market_base_url"`
	PriceBaseURL     string        `mapstructure:"price_base_url"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	FallbackSOLPrice float64       `mapstructure:"fallback_sol_price"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// DedupConfig bounds the seen-signature set.
type DedupConfig struct {
	Retention  time.Duration `mapstructure:"retention"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// DatabaseConfig encapsulates optional persistence. Empty DSNs disable
// the respective store.
type DatabaseConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// MetricsConfig exposes the Prometheus endpoint. Empty Addr disables
// the listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BUYWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "buywatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("token.symbol", "MEMECOIN")

	v.SetDefault("solana.ws_endpoint", "wss://atlas-mainnet.helius-rpc.com")
	v.SetDefault("solana.api_endpoint", "https://api.helius.xyz")
	v.SetDefault("solana.request_timeout", "15s")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("alerting.min_buy_sol", 0.1)
	v.SetDefault("alerting.whale_min_sol", 10.0)

	v.SetDefault("monitor.grace_period", "3s")
	v.SetDefault("monitor.reconnect_delay", "5s")
	v.SetDefault("monitor.process_timeout", "30s")

	v.SetDefault("enrichment.market_base_url", "https://api.dexscreener.com")
	v.SetDefault("enrichment.price_base_url", "https://api.coingecko.com")
	v.SetDefault("enrichment.cache_ttl", "30s")
	v.SetDefault("enrichment.fallback_sol_price", 150.0)
	v.SetDefault("enrichment.request_timeout", "10s")

	v.SetDefault("dedup.retention", "1h")
	v.SetDefault("dedup.max_entries", 10000)

	v.SetDefault("metrics.addr", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Token.Mint == "" {
		return fmt.Errorf("token.mint must be configured")
	}
	if raw, err := base58.Decode(c.Token.Mint); err != nil || len(raw) != 32 {
		return fmt.Errorf("token.mint is not a valid base58 address")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token must be configured")
	}
	if c.Telegram.ChannelID == "" {
		return fmt.Errorf("telegram.channel_id must be configured")
	}
	if c.Solana.APIKey == "" {
		return fmt.Errorf("solana.api_key must be configured")
	}
	if c.Alerting.MinBuySOL < 0 {
		return fmt.Errorf("alerting.min_buy_sol cannot be negative")
	}
	if c.Alerting.WhaleMinSOL <= 0 {
		return fmt.Errorf("alerting.whale_min_sol must be greater than zero")
	}
	if c.Monitor.ReconnectDelay <= 0 {
		return fmt.Errorf("monitor.reconnect_delay must be greater than zero")
	}
	if c.Enrichment.CacheTTL <= 0 {
		return fmt.Errorf("enrichment.cache_ttl must be greater than zero")
	}
	return nil
}
