package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Extractor ExtractorConfig
	Triage    TriageConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver string // "memory" or "sqlite"
	Path   string // sqlite file path
}

// ExtractorConfig configures the extraction gateway. The live backend is
// used only when both Endpoint and APIKey are set; otherwise every
// request is served by the deterministic mock backend.
type ExtractorConfig struct {
	Endpoint          string
	APIKey            string
	Timeout           time.Duration
	ClassifyThreshold float64 // classification acceptance bar
}

// Configured reports whether the live backend can be used at all.
func (c ExtractorConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

// TriageConfig carries the confidence tuning values. The defaults come
// from observed behavior, not from any documented rationale; treat them
// as opaque knobs.
type TriageConfig struct {
	ProcessedThreshold  float64 // overall confidence for auto-accept
	ReviewThreshold     float64 // overall confidence floor for review
	FieldWarnThreshold  float64 // per-field confidence below this -> warning
	FieldErrorThreshold float64 // per-field confidence below this -> error
	MaxErrorIssues      int     // max error-severity issues tolerated for review
}

// LoggingConfig holds logger bootstrap settings
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from config.yaml (optional) and
// BOL_*-prefixed environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("BOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "./data/boltriage.db")

	v.SetDefault("extractor.endpoint", "")
	v.SetDefault("extractor.apiKey", "")
	v.SetDefault("extractor.timeout", 45*time.Second)
	v.SetDefault("extractor.classifyThreshold", 0.70)

	v.SetDefault("triage.processedThreshold", 0.90)
	v.SetDefault("triage.reviewThreshold", 0.60)
	v.SetDefault("triage.fieldWarnThreshold", 0.80)
	v.SetDefault("triage.fieldErrorThreshold", 0.60)
	v.SetDefault("triage.maxErrorIssues", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// DefaultTriageConfig returns the tuning values used when no explicit
// configuration is supplied (tests construct engines with this).
func DefaultTriageConfig() TriageConfig {
	return TriageConfig{
		ProcessedThreshold:  0.90,
		ReviewThreshold:     0.60,
		FieldWarnThreshold:  0.80,
		FieldErrorThreshold: 0.60,
		MaxErrorIssues:      1,
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.Driver != "memory" && c.Store.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "store.driver must be memory or sqlite", ErrInvalidInput)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return NewAppError("CONFIG_ERROR", "store.path is required for sqlite", ErrInvalidInput)
	}
	if c.Triage.ReviewThreshold > c.Triage.ProcessedThreshold {
		return NewAppError("CONFIG_ERROR", "triage.reviewThreshold exceeds processedThreshold", ErrInvalidInput)
	}
	return nil
}
