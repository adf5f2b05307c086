// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means in-memory repositories (development only).
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty means in-memory usage and rate limit stores.
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Signing domain tag bound into every content digest.
	DomainTag string `koanf:"domain_tag"`

	// Registry bounds
	MinSigners   int   `koanf:"min_signers"`
	MaxSigners   int   `koanf:"max_signers"`
	MinThreshold int64 `koanf:"min_threshold"`
	MaxThreshold int64 `koanf:"max_threshold"`

	// Timelock policy
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxHorizon time.Duration `koanf:"max_horizon"`

	// Daily submission limits per creator (0 = unlimited)
	DailyMaxActions int64 `koanf:"daily_max_actions"`
	DailyMaxValue   int64 `koanf:"daily_max_value"`

	// Dispatch
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`

	// Emergency. Zero means an episode never times out on its own.
	MaxEmergencyDuration time.Duration `koanf:"max_emergency_duration"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidBounds      = errors.New("signer and threshold bounds are invalid")
	ErrInvalidBaseDelay   = errors.New("BASE_DELAY must be positive")
	ErrInvalidMaxHorizon  = errors.New("MAX_HORIZON must be positive")
	ErrInvalidDuration    = errors.New("duration value is invalid")
	ErrNegativeDailyLimit = errors.New("daily limits cannot be negative")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultDomainTag       = "quorumgate/v1"
	DefaultMinSigners      = 2
	DefaultMaxSigners      = 20
	DefaultMinThreshold    = 1
	DefaultMaxThreshold    = 1024
	DefaultBaseDelay       = 24 * time.Hour
	DefaultMaxHorizon      = 720 * time.Hour
	DefaultDispatchTimeout = 10 * time.Second
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	minSigners, err := getEnvIntOrDefault("MIN_SIGNERS", k.Int("min_signers"), DefaultMinSigners)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxSigners, err := getEnvIntOrDefault("MAX_SIGNERS", k.Int("max_signers"), DefaultMaxSigners)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	minThreshold, err := getEnvIntOrDefault("MIN_THRESHOLD", k.Int("min_threshold"), DefaultMinThreshold)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxThreshold, err := getEnvIntOrDefault("MAX_THRESHOLD", k.Int("max_threshold"), DefaultMaxThreshold)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	dailyMaxActions, err := getEnvIntOrDefault("DAILY_MAX_ACTIONS", k.Int("daily_max_actions"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	dailyMaxValue, err := getEnvIntOrDefault("DAILY_MAX_VALUE", k.Int("daily_max_value"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	baseDelay, err := getEnvDurationOrDefault("BASE_DELAY", k.String("base_delay"), DefaultBaseDelay)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxHorizon, err := getEnvDurationOrDefault("MAX_HORIZON", k.String("max_horizon"), DefaultMaxHorizon)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	dispatchTimeout, err := getEnvDurationOrDefault("DISPATCH_TIMEOUT", k.String("dispatch_timeout"), DefaultDispatchTimeout)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxEmergency, err := getEnvDurationOrDefault("MAX_EMERGENCY_DURATION", k.String("max_emergency_duration"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                 port,
		Env:                  getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:          getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:             getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:            getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:    getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		DomainTag:            getEnvOrDefault("DOMAIN_TAG", k.String("domain_tag"), DefaultDomainTag),
		MinSigners:           minSigners,
		MaxSigners:           maxSigners,
		MinThreshold:         int64(minThreshold),
		MaxThreshold:         int64(maxThreshold),
		BaseDelay:            baseDelay,
		MaxHorizon:           maxHorizon,
		DailyMaxActions:      int64(dailyMaxActions),
		DailyMaxValue:        int64(dailyMaxValue),
		DispatchTimeout:      dispatchTimeout,
		MaxEmergencyDuration: maxEmergency,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if
// set, otherwise the koanf value, or default. Accepts Go duration syntax.
func getEnvDurationOrDefault(envKey string, koanfVal string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		raw = koanfVal
	}
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envKey, ErrInvalidDuration)
	}
	return d, nil
}

// Validate checks that all required configuration values are present and
// consistent. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.MinSigners < 1 || c.MaxSigners < c.MinSigners ||
		c.MinThreshold < 1 || c.MaxThreshold < c.MinThreshold {
		errs = append(errs, ErrInvalidBounds)
	}
	if c.BaseDelay <= 0 {
		errs = append(errs, ErrInvalidBaseDelay)
	}
	if c.MaxHorizon <= 0 {
		errs = append(errs, ErrInvalidMaxHorizon)
	}
	if c.DailyMaxActions < 0 || c.DailyMaxValue < 0 {
		errs = append(errs, ErrNegativeDailyLimit)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"redis_url":              maskDatabaseURL(c.RedisURL),
		"jwt_secret":             maskSecret(c.JWTSecret),
		"jwt_previous_secret":    maskSecret(c.JWTPreviousSecret),
		"domain_tag":             c.DomainTag,
		"min_signers":            fmt.Sprintf("%d", c.MinSigners),
		"max_signers":            fmt.Sprintf("%d", c.MaxSigners),
		"min_threshold":          fmt.Sprintf("%d", c.MinThreshold),
		"max_threshold":          fmt.Sprintf("%d", c.MaxThreshold),
		"base_delay":             c.BaseDelay.String(),
		"max_horizon":            c.MaxHorizon.String(),
		"daily_max_actions":      fmt.Sprintf("%d", c.DailyMaxActions),
		"daily_max_value":        fmt.Sprintf("%d", c.DailyMaxValue),
		"dispatch_timeout":       c.DispatchTimeout.String(),
		"max_emergency_duration": c.MaxEmergencyDuration.String(),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
