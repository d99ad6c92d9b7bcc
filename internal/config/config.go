package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the arbitrage bot.
// Required sections: app, exchanges, pairs. Everything else is optional.
type Config struct {
	App          AppConfig                  `yaml:"app"`
	Exchanges    map[string]*ExchangeConfig `yaml:"exchanges"`
	Pairs        []string                   `yaml:"pairs"`
	Orderbook    *OrderbookConfig           `yaml:"orderbook"`
	Arbitrage    *ArbitrageConfig           `yaml:"arbitrage"`
	Notification *NotificationConfig        `yaml:"notification"`
	Storage      *StorageConfig             `yaml:"storage"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name string `yaml:"name"`
	// Env is "development", "staging", or "production"
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// ExchangeConfig holds settings for a single exchange
type ExchangeConfig struct {
	Enabled bool `yaml:"enabled"`
	Testnet bool `yaml:"testnet"`
	// APIKey and APISecret come from {EXCHANGE}_API_KEY / {EXCHANGE}_API_SECRET
	// environment variables, never from the YAML file
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	// FeeTaker is the taker fee as a decimal string (e.g., "0.001" for 0.1%)
	FeeTaker string `yaml:"fee_taker"`
	// RateLimit is the maximum API requests per minute
	RateLimit int              `yaml:"rate_limit"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig holds streaming connection settings
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PingInterval   Duration `yaml:"ping_interval"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
}

// OrderbookConfig holds orderbook depth and staleness settings
type OrderbookConfig struct {
	MaxDepth int      `yaml:"max_depth"`
	MaxAge   Duration `yaml:"max_age"`
}

// ArbitrageConfig holds detection settings
type ArbitrageConfig struct {
	CrossExchange    *CrossExchangeConfig `yaml:"cross_exchange"`
	DetectionTimeout Duration             `yaml:"detection_timeout"`
}

// CrossExchangeConfig holds cross-exchange detection thresholds
type CrossExchangeConfig struct {
	MinProfitThreshold string   `yaml:"min_profit_threshold"`
	MinQuantity        string   `yaml:"min_quantity"`
	OpportunityTTL     Duration `yaml:"opportunity_ttl"`
}

// NotificationConfig holds alert channel settings
type NotificationConfig struct {
	Telegram *TelegramConfig `yaml:"telegram"`
}

// TelegramConfig holds Telegram notification settings. Credentials come
// from TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID / TELEGRAM_ERROR_CHAT_ID.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	BotToken            string   `yaml:"-"`
	ChatID              string   `yaml:"-"`
	ErrorChatID         string   `yaml:"-"`
	NotifyOpportunities bool     `yaml:"notify_opportunities"`
	NotifyExecutions    bool     `yaml:"notify_executions"`
	NotifyErrors        bool     `yaml:"notify_errors"`
	NotifyOverview      bool     `yaml:"notify_overview"`
	OverviewInterval    Duration `yaml:"overview_interval"`
}

// StorageConfig holds opportunity persistence settings
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// exchangeCredentials are parsed from the environment with the exchange
// name as prefix, e.g. POLONIEX_API_KEY
type exchangeCredentials struct {
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
}

// telegramCredentials are parsed from the environment
type telegramCredentials struct {
	BotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID      string `env:"TELEGRAM_CHAT_ID"`
	ErrorChatID string `env:"TELEGRAM_ERROR_CHAT_ID"`
}

// Load reads the YAML config at path, injects credentials from the
// environment (after loading a .env file if one exists) and validates
// the result.
func Load(path string) (*Config, error) {
	// A missing .env file is fine; real deployments set env vars directly
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.loadCredentialsFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadCredentialsFromEnv fills credential fields from environment variables
func (c *Config) loadCredentialsFromEnv() error {
	for name, ex := range c.Exchanges {
		if !ex.Enabled {
			continue
		}
		creds := exchangeCredentials{}
		opts := env.Options{Prefix: strings.ToUpper(name) + "_"}
		if err := env.ParseWithOptions(&creds, opts); err != nil {
			return fmt.Errorf("load %s credentials: %w", name, err)
		}
		ex.APIKey = creds.APIKey
		ex.APISecret = creds.APISecret
	}

	if c.Notification != nil && c.Notification.Telegram != nil && c.Notification.Telegram.Enabled {
		creds := telegramCredentials{}
		if err := env.Parse(&creds); err != nil {
			return fmt.Errorf("load telegram credentials: %w", err)
		}
		c.Notification.Telegram.BotToken = creds.BotToken
		c.Notification.Telegram.ChatID = creds.ChatID
		c.Notification.Telegram.ErrorChatID = creds.ErrorChatID
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}

	isProduction := c.App.Env != "development"

	enabled := 0
	for name, ex := range c.Exchanges {
		if !ex.Enabled {
			continue
		}
		enabled++

		if ex.FeeTaker == "" {
			return fmt.Errorf("exchange %s: fee_taker is required", name)
		}
		if isProduction && (ex.APIKey == "" || ex.APISecret == "") {
			return fmt.Errorf(
				"exchange %s: API credentials not found (set %s_API_KEY and %s_API_SECRET env vars)",
				name, strings.ToUpper(name), strings.ToUpper(name))
		}
	}

	if enabled == 0 {
		return fmt.Errorf("at least one exchange must be enabled")
	}

	return nil
}
