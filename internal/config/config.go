package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Ensemble   EnsembleConfig   `yaml:"ensemble" mapstructure:"ensemble"`
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Prompts    PromptConfig     `yaml:"prompts" mapstructure:"prompts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings for both providers.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	PrimaryModel   string  `yaml:"primary_model" mapstructure:"primary_model"`
	SecondaryModel string  `yaml:"secondary_model" mapstructure:"secondary_model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
}

// RouterConfig holds routing policy thresholds.
type RouterConfig struct {
	ContextThreshold int     `yaml:"context_threshold" mapstructure:"context_threshold"`
	ImpactThreshold  float64 `yaml:"impact_threshold" mapstructure:"impact_threshold"`
}

// EnsembleConfig holds dual-model reconciliation thresholds.
type EnsembleConfig struct {
	AgreeThreshold     float64 `yaml:"agree_threshold" mapstructure:"agree_threshold"`
	DeviationThreshold float64 `yaml:"deviation_threshold" mapstructure:"deviation_threshold"`
}

// GatewayConfig holds rate and budget limits applied ahead of provider calls.
type GatewayConfig struct {
	RequestsPerMinute   int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	BudgetUSD           float64 `yaml:"budget_usd" mapstructure:"budget_usd"`
	BudgetWindowMinutes int     `yaml:"budget_window_minutes" mapstructure:"budget_window_minutes"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AuditConfig configures the tamper-evident audit log.
type AuditConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PromptConfig points at the versioned prompt template library.
type PromptConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background health checks and webhook alerts.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	EscalationRateThreshold float64 `yaml:"escalation_rate_threshold" mapstructure:"escalation_rate_threshold"`
	CostThresholdUSD        float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISKINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.primary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.secondary_model", "claude-opus-4-6")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.3)
	v.SetDefault("router.context_threshold", 80000)
	v.SetDefault("router.impact_threshold", 0.8)
	v.SetDefault("ensemble.agree_threshold", 5.0)
	v.SetDefault("ensemble.deviation_threshold", 15.0)
	v.SetDefault("gateway.requests_per_minute", 60)
	v.SetDefault("gateway.budget_usd", 25.0)
	v.SetDefault("gateway.budget_window_minutes", 60)
	v.SetDefault("gateway.timeout_secs", 120)
	v.SetDefault("audit.dir", "data/audit_logs")
	v.SetDefault("audit.buffer_size", 100)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "riskintel.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.escalation_rate_threshold", 0.3)
	v.SetDefault("monitoring.cost_threshold_usd", 100.0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects out-of-range thresholds. Configuration errors are hard
// errors surfaced at startup, never retried.
func (c *Config) Validate() error {
	if c.Router.ContextThreshold < 0 {
		return eris.Errorf("config: router.context_threshold must be non-negative, got %d", c.Router.ContextThreshold)
	}
	if c.Router.ImpactThreshold < 0 || c.Router.ImpactThreshold > 1 {
		return eris.Errorf("config: router.impact_threshold must be in [0,1], got %g", c.Router.ImpactThreshold)
	}
	if c.Ensemble.DeviationThreshold <= 0 || c.Ensemble.DeviationThreshold > 100 {
		return eris.Errorf("config: ensemble.deviation_threshold must be in (0,100], got %g", c.Ensemble.DeviationThreshold)
	}
	if c.Ensemble.AgreeThreshold < 0 || c.Ensemble.AgreeThreshold > c.Ensemble.DeviationThreshold {
		return eris.Errorf("config: ensemble.agree_threshold must be in [0,%g], got %g",
			c.Ensemble.DeviationThreshold, c.Ensemble.AgreeThreshold)
	}
	if c.Gateway.RequestsPerMinute <= 0 {
		return eris.Errorf("config: gateway.requests_per_minute must be positive, got %d", c.Gateway.RequestsPerMinute)
	}
	if c.Gateway.BudgetUSD < 0 {
		return eris.Errorf("config: gateway.budget_usd must be non-negative, got %g", c.Gateway.BudgetUSD)
	}
	if c.Audit.BufferSize <= 0 {
		return eris.Errorf("config: audit.buffer_size must be positive, got %d", c.Audit.BufferSize)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
