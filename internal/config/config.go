// Package config provides configuration loading and validation for the CLI
// and server. Values come from defaults, an optional config file, JOBX_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/job-extractor/internal/logging"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "JOBX"

// ConfigName is the base name searched for when no config file is given.
const ConfigName = "job_extractor"

// Config represents the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      logging.Config `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `mapstructure:"port" validate:"min=1,max=65535"`
	RateLimit    float64  `mapstructure:"rate_limit" validate:"gte=0"` // requests/second per client; 0 disables
	RateBurst    int      `mapstructure:"rate_burst" validate:"gte=0"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// DatabaseConfig configures the optional PostgreSQL store.
type DatabaseConfig struct {
	URL       string        `mapstructure:"url" validate:"omitempty,url"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	SkipCache bool          `mapstructure:"skip_cache"`
}

// BackendConfig configures the remote matching service.
type BackendConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ExtractConfig configures extraction.
type ExtractConfig struct {
	Render            bool          `mapstructure:"render"`
	MaxWait           time.Duration `mapstructure:"max_wait" validate:"gte=0"`
	Concurrency       int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	ChromePath        string        `mapstructure:"chrome_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`
}

// FetchConfig configures plain HTTP fetching.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
	HostRate  float64       `mapstructure:"host_rate" validate:"gte=0"` // requests/second per host; 0 disables
	HostBurst int           `mapstructure:"host_burst" validate:"gte=0"`
}

// LLMConfig configures optional missing-field enrichment.
type LLMConfig struct {
	APIKey string `mapstructure:"api_key"`
	Enrich bool   `mapstructure:"enrich"`
	Model  string `mapstructure:"model"`
}

// EnrichmentEnabled reports whether enrichment is both requested and possible.
func (c LLMConfig) EnrichmentEnabled() bool {
	return c.Enrich && c.APIKey != ""
}

// SetDefaults registers every key with its default so environment variables
// are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", int64(2<<20))

	v.SetDefault("database.url", "")
	v.SetDefault("database.cache_ttl", 24*time.Hour)
	v.SetDefault("database.skip_cache", false)

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.api_token", "")
	v.SetDefault("backend.timeout", 60*time.Second)

	v.SetDefault("extract.render", false)
	v.SetDefault("extract.max_wait", time.Duration(0))
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("extract.chrome_path", "")
	v.SetDefault("extract.navigation_timeout", 30*time.Second)

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.host_rate", 1.0)
	v.SetDefault("fetch.host_burst", 2)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.enrich", false)
	v.SetDefault("llm.model", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.source", false)
	v.SetDefault("log.time_format", "")
	v.SetDefault("log.no_color", false)
}

// Load reads configuration into a Config. configFile may be empty, in which
// case job_extractor.{yaml,json,toml} in the working directory is used when
// present. Flags bound to v before calling Load take precedence.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Conventional names used by other tools.
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}
	if c.Extract.Render && c.Extract.NavigationTimeout <= c.Extract.MaxWait {
		return fmt.Errorf("config error: extract.navigation_timeout must exceed extract.max_wait")
	}
	return nil
}
