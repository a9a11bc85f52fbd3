// Package config handles configuration loading for calcthis.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CALCTHIS_API_PORT.
const EnvPrefix = "CALCTHIS"

// Config represents the complete application configuration.
type Config struct {
	Catalog    CatalogConfig    `mapstructure:"catalog"    yaml:"catalog"    json:"catalog"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"      json:"cache"`
	QA         QAConfig         `mapstructure:"qa"         yaml:"qa"         json:"qa"`
	MarketData MarketDataConfig `mapstructure:"marketdata" yaml:"marketdata" json:"marketdata"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"        json:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"    json:"logging"`
}

// CatalogConfig selects the calculator catalog.
type CatalogConfig struct {
	File       string   `mapstructure:"file"       yaml:"file"       json:"file"` // empty = embedded catalog
	Categories []string `mapstructure:"categories" yaml:"categories" json:"categories"`
}

// CacheConfig controls the calculation result cache.
type CacheConfig struct {
	TTL int `mapstructure:"ttl" yaml:"ttl" json:"ttl" validate:"gte=0"` // seconds, 0 disables
}

// QAConfig holds quality assurance runner settings.
type QAConfig struct {
	Concurrency int     `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency" validate:"gte=1"`
	Tolerance   float64 `mapstructure:"tolerance"   yaml:"tolerance"   json:"tolerance"   validate:"gt=0"`
	MaxCalcMS   int     `mapstructure:"max_calc_ms" yaml:"max_calc_ms" json:"max_calc_ms" validate:"gte=1"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec" validate:"gte=0"`
}

// MarketDataConfig configures the benchmark rate sources.
type MarketDataConfig struct {
	FeedURL        string  `mapstructure:"feed_url"         yaml:"feed_url"         json:"feed_url"  validate:"omitempty,url"`
	TableURL       string  `mapstructure:"table_url"        yaml:"table_url"        json:"table_url" validate:"omitempty,url"`
	TableSelector  string  `mapstructure:"table_selector"   yaml:"table_selector"   json:"table_selector"`
	SeriesURL      string  `mapstructure:"series_url"       yaml:"series_url"       json:"series_url" validate:"omitempty,url"` // FRED-compatible API; needs APIKey
	APIKey         string  `mapstructure:"api_key"          yaml:"api_key"          json:"-"`
	MaxAgeDays     int     `mapstructure:"max_age_days"     yaml:"max_age_days"     json:"max_age_days"     validate:"gte=1"`
	CacheTTL       int     `mapstructure:"cache_ttl"        yaml:"cache_ttl"        json:"cache_ttl"        validate:"gte=0"` // seconds
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec" json:"requests_per_sec" validate:"gt=0"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host          string   `mapstructure:"host"            yaml:"host"            json:"host"`
	Port          int      `mapstructure:"port"            yaml:"port"            json:"port"            validate:"min=1,max=65535"`
	CORSOrigins   []string `mapstructure:"cors_origins"    yaml:"cors_origins"    json:"cors_origins"`
	RateLimit     int      `mapstructure:"rate_limit"      yaml:"rate_limit"      json:"rate_limit"      validate:"gte=0"` // requests per window per client, 0 disables
	RateWindowSec int      `mapstructure:"rate_window_sec" yaml:"rate_window_sec" json:"rate_window_sec" validate:"gte=1"`
	TrustProxy    bool     `mapstructure:"trust_proxy"     yaml:"trust_proxy"     json:"trust_proxy"` // take the client address from X-Forwarded-For / X-Real-IP
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=text json"`
}

// Duration returns the result cache TTL.
func (c CacheConfig) Duration() time.Duration { return time.Duration(c.TTL) * time.Second }

// MaxCalcTime returns the QA performance threshold.
func (q QAConfig) MaxCalcTime() time.Duration { return time.Duration(q.MaxCalcMS) * time.Millisecond }

// Timeout returns the per-calculator QA timeout.
func (q QAConfig) Timeout() time.Duration { return time.Duration(q.TimeoutSec) * time.Second }

// Address returns host:port.
func (a APIConfig) Address() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.calcthis/config.yaml (home directory)
//  3. /etc/calcthis/config.yaml (system)
//
// Environment variables override config file values.
// Format: CALCTHIS_<SECTION>_<KEY>, e.g., CALCTHIS_API_PORT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range searchDirs() {
		v.AddConfigPath(dir)
	}

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults with environment overrides applied.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode; only a malformed env value can land here.
		return &Config{}
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.file", "")
	v.SetDefault("catalog.categories", []string{})

	v.SetDefault("cache.ttl", 300) // 5 minutes

	v.SetDefault("qa.concurrency", 4)
	v.SetDefault("qa.tolerance", 0.01)
	v.SetDefault("qa.max_calc_ms", 100)
	v.SetDefault("qa.timeout_sec", 30)

	v.SetDefault("marketdata.feed_url", "")
	v.SetDefault("marketdata.table_url", "")
	v.SetDefault("marketdata.table_selector", "")
	v.SetDefault("marketdata.series_url", "")
	v.SetDefault("marketdata.api_key", "")
	v.SetDefault("marketdata.max_age_days", 7)
	v.SetDefault("marketdata.cache_ttl", 900) // 15 minutes
	v.SetDefault("marketdata.requests_per_sec", 2.0)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.rate_limit", 120)
	v.SetDefault("api.rate_window_sec", 60)
	v.SetDefault("api.trust_proxy", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_MARKETDATA_API_KEY"); key != "" {
		cfg.MarketData.APIKey = key
	}
}

var configValidator = validator.New()

// Validate checks value ranges across all sections.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (%v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ConfigFilePath returns the config file in use: the first existing file in
// the search order, or ~/.calcthis/config.yaml when none exists yet.
func ConfigFilePath() string {
	for _, dir := range searchDirs() {
		p := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(homeDir(), ".calcthis", "config.yaml")
}

// SaveToFile writes cfg as YAML, creating parent directories as needed.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func searchDirs() []string {
	return []string{
		"./config",
		filepath.Join(homeDir(), ".calcthis"),
		"/etc/calcthis",
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
