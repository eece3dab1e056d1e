package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chainguard-sentinel/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Market     MarketConfig     `mapstructure:"market"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig locates the embedded contract/alert store.
type StorageConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MarketConfig captures the market-data API connectivity.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// OpenRouterConfig parameterises the LLM risk analyzer.
type OpenRouterConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SimulatorConfig drives the oracle-simulation CLI invocation.
type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Binary   string        `mapstructure:"binary"`
	Workflow string        `mapstructure:"workflow"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig governs scan cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	MinSeverity string         `mapstructure:"min_severity"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxPoints int `mapstructure:"max_points"`
}

// Load builds configuration from file, environment, and defaults. A .env in
// the working directory is folded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHAINGUARD")
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
	v.SetDefault("app.name", "chainguard-sentinel")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.dir", "./sentinel.db")
	v.SetDefault("storage.in_memory", false)

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("market.base_url", "https://api.dexscreener.com/latest/dex")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "chainguard-sentinel/1.0")

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("openrouter.request_timeout", "45s")

	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.binary", "cre")
	v.SetDefault("simulator.workflow", "risk-assessment")
	v.SetDefault("simulator.timeout", "60s")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_severity", "high")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_points", 100000)
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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxPoints <= 0 {
		return fmt.Errorf("export.max_points must be greater than zero")
	}
	if !c.Storage.InMemory && c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required unless storage.in_memory is set")
	}
	if c.Simulator.Enabled && c.Simulator.Binary == "" {
		return fmt.Errorf("simulator.binary is required when simulator is enabled")
	}
	switch strings.ToLower(c.Alerting.MinSeverity) {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("alerting.min_severity must be one of low, medium, high")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}
