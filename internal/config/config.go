package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridian-lending/intake-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Forms     FormsConfig     `yaml:"forms" mapstructure:"forms"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the extraction gateway.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	PageBudget        int    `yaml:"page_budget" mapstructure:"page_budget"`
	CallTimeoutSecs   int    `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// MergeConfig configures the merge engine.
type MergeConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`

	// SourcePriority lists document types highest-precedence first; only
	// consulted by the source_priority strategy.
	SourcePriority []string `yaml:"source_priority" mapstructure:"source_priority"`

	// Priors override the per-document-type confidence defaults.
	Priors map[string]float64 `yaml:"priors" mapstructure:"priors"`
}

// SourcePriorityTypes converts the configured priority list to document types.
func (m MergeConfig) SourcePriorityTypes() []model.DocumentType {
	out := make([]model.DocumentType, 0, len(m.SourcePriority))
	for _, s := range m.SourcePriority {
		out = append(out, model.DocumentType(s))
	}
	return out
}

// PriorTypes converts the configured priors map to document-type keys.
func (m MergeConfig) PriorTypes() map[model.DocumentType]float64 {
	if len(m.Priors) == 0 {
		return nil
	}
	out := make(map[model.DocumentType]float64, len(m.Priors))
	for k, v := range m.Priors {
		out[model.DocumentType(k)] = v
	}
	return out
}

// ResolveConfig configures field resolution for form mapping.
type ResolveConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// IntakeConfig configures the ingestion pipeline.
type IntakeConfig struct {
	ExtractConcurrency int `yaml:"extract_concurrency" mapstructure:"extract_concurrency"`
}

// FormsConfig locates the form spec registry.
type FormsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP wrapper.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intake.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.page_budget", 20)
	v.SetDefault("anthropic.call_timeout_secs", 180)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("merge.strategy", "confidence_based")
	v.SetDefault("merge.source_priority", []string{"tax_return", "bank_statement", "pfs", "debt_schedule"})
	v.SetDefault("resolve.fuzzy_threshold", 0.6)
	v.SetDefault("intake.extract_concurrency", 4)
	v.SetDefault("forms.dir", "forms")

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

	return &cfg, nil
}

var validStrategies = map[string]bool{
	"first_wins":       true,
	"last_wins":        true,
	"confidence_based": true,
	"source_priority":  true,
}

// Validate checks the configuration for a run mode: "ingest" requires
// extraction credentials, "serve" additionally requires a usable port,
// "query" only needs the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Store.DatabaseURL != "", "store.database_url is required")
	check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
		"store.driver must be sqlite or postgres")
	check(validStrategies[c.Merge.Strategy], "merge.strategy must be one of first_wins, last_wins, confidence_based, source_priority")
	check(c.Resolve.FuzzyThreshold >= 0 && c.Resolve.FuzzyThreshold <= 1,
		"resolve.fuzzy_threshold must be in [0, 1]")
	for _, prior := range c.Merge.Priors {
		check(prior >= 0 && prior <= 1, "merge.priors values must be in [0, 1]")
	}

	switch mode {
	case "ingest":
		check(c.Anthropic.Key != "", "anthropic.key is required")
		check(c.Intake.ExtractConcurrency >= 1 && c.Intake.ExtractConcurrency <= 32,
			"intake.extract_concurrency must be between 1 and 32")
	case "serve":
		check(c.Anthropic.Key != "", "anthropic.key is required")
		check(c.Server.Port > 0, "server.port must be > 0")
	case "query":
		// Store checks above suffice.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
