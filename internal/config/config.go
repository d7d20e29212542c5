package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/vagrant-fusion/internal/logging"
)

const (
	defaultPort                = "8080"
	defaultLogLevel            = "info"
	defaultRateLimitRPS        = 25.0
	defaultRateLimitBurst      = 50
	defaultCloudRateLimitRPS   = 10.0
	defaultCloudRateLimitBurst = 20
)

// Environment variables read by Load.
const (
	EnvPort                = "PORT"
	EnvProviderFiles       = "FUSION_PROVIDER_FILES"
	EnvFusionProfile       = "FUSION_PROFILE"
	EnvFusionDir           = "FUSION_DIR"
	EnvLogLevel            = "LOG_LEVEL"
	EnvRateLimitRPS        = "RATE_LIMIT_RPS"
	EnvRateLimitBurst      = "RATE_LIMIT_BURST"
	EnvCloudRateLimitRPS   = "CLOUD_RATE_LIMIT_RPS"
	EnvCloudRateLimitBurst = "CLOUD_RATE_LIMIT_BURST"
)

// ErrInvalidConfig is returned when the resolved configuration is unusable.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port string
	// ProviderFiles are provider documents merged left to right.
	ProviderFiles []string
	// FusionProfile and FusionDir seed the provider configuration when the
	// documents leave them unset.
	FusionProfile        string
	FusionDir            string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	CloudRateLimitRPS    float64
	CloudRateLimitBurst  int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ProviderFiles        []string      `yaml:"provider_files"`
	FusionProfile        string        `yaml:"fusion_profile"`
	FusionDir            string        `yaml:"fusion_dir"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	CloudRateLimit       yamlRateLimit `yaml:"cloud_rate_limit"`
}

// yamlRateLimit represents a rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	ProviderFiles  []string
	FusionProfile  *string
	FusionDir      *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		CloudRateLimitRPS:    defaultCloudRateLimitRPS,
		CloudRateLimitBurst:  defaultCloudRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if len(yamlCfg.ProviderFiles) > 0 {
		cfg.ProviderFiles = yamlCfg.ProviderFiles
	}
	if yamlCfg.FusionProfile != "" {
		cfg.FusionProfile = yamlCfg.FusionProfile
	}
	if yamlCfg.FusionDir != "" {
		cfg.FusionDir = yamlCfg.FusionDir
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.field = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if yamlCfg.CloudRateLimit.RPS != nil {
		cfg.CloudRateLimitRPS = *yamlCfg.CloudRateLimit.RPS
	}
	if yamlCfg.CloudRateLimit.Burst != nil {
		cfg.CloudRateLimitBurst = *yamlCfg.CloudRateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		cfg.Port = port
	}

	if files := parseList(os.Getenv(EnvProviderFiles)); len(files) > 0 {
		cfg.ProviderFiles = files
	}

	if profile := strings.TrimSpace(os.Getenv(EnvFusionProfile)); profile != "" {
		cfg.FusionProfile = profile
	}

	if dir := strings.TrimSpace(os.Getenv(EnvFusionDir)); dir != "" {
		cfg.FusionDir = dir
	}

	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.LogLevel = level
	}

	if rps := strings.TrimSpace(os.Getenv(EnvRateLimitRPS)); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv(EnvRateLimitBurst)); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv(EnvCloudRateLimitRPS)); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.CloudRateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv(EnvCloudRateLimitBurst)); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.CloudRateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if len(overrides.ProviderFiles) > 0 {
		cfg.ProviderFiles = append([]string(nil), overrides.ProviderFiles...)
	}

	if overrides.FusionProfile != nil && *overrides.FusionProfile != "" {
		cfg.FusionProfile = *overrides.FusionProfile
	}

	if overrides.FusionDir != nil && *overrides.FusionDir != "" {
		cfg.FusionDir = *overrides.FusionDir
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_RPS must be >= 0", ErrInvalidConfig)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_BURST must be >= 0", ErrInvalidConfig)
	}
	if cfg.CloudRateLimitRPS < 0 {
		return fmt.Errorf("%w: CLOUD_RATE_LIMIT_RPS must be >= 0", ErrInvalidConfig)
	}
	if cfg.CloudRateLimitBurst < 0 {
		return fmt.Errorf("%w: CLOUD_RATE_LIMIT_BURST must be >= 0", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// parseList splits a comma-separated list, dropping empty entries.
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
