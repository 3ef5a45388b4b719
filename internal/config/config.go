package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	DoubleClose DoubleCloseConfig `yaml:"double_close" mapstructure:"double_close"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EngineConfig configures calculation defaults applied when a request does
// not specify them.
type EngineConfig struct {
	OrgID          string `yaml:"org_id" mapstructure:"org_id"`
	DefaultPosture string `yaml:"default_posture" mapstructure:"default_posture"`
	OrgTokensFile  string `yaml:"org_tokens_file" mapstructure:"org_tokens_file"`
}

// DoubleCloseConfig configures closing cost computation.
type DoubleCloseConfig struct {
	RateTablePath string `yaml:"rate_table_path" mapstructure:"rate_table_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDeals int `yaml:"max_concurrent_deals" mapstructure:"max_concurrent_deals"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("DEALENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealengine.db")
	v.SetDefault("engine.org_id", "default")
	v.SetDefault("engine.default_posture", "base")
	v.SetDefault("batch.max_concurrent_deals", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Mode "analyze"
// covers one-shot CLI calculations, "serve" the HTTP server.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "analyze", "serve":
		check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			"store.driver must be sqlite or postgres")
		check(c.Store.DatabaseURL != "", "store.database_url is required")
		check(c.Batch.MaxConcurrentDeals >= 1 && c.Batch.MaxConcurrentDeals <= 50,
			"batch.max_concurrent_deals must be between 1 and 50")
		if mode == "serve" {
			check(c.Server.Port > 0, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// LoadOrgTokens reads an org token override file: a flat YAML map of policy
// token keys to values. An empty path means no overrides.
func LoadOrgTokens(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read org tokens %s", path)
	}
	tokens := map[string]any{}
	if err := yaml.Unmarshal(data, &tokens); err != nil {
		return nil, eris.Wrapf(err, "config: parse org tokens %s", path)
	}
	return tokens, nil
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
