package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the config file location, overridable with CONFIG_PATH.
var ConfigPath = func() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return "config.yaml"
}()

const (
	defaultSessionTTL = 24 * time.Hour
	defaultRetention  = 24 * time.Hour
	defaultSweep      = time.Hour
)

var logLevels = []string{"error", "warn", "info", "log", "debug", "verbose"}

// FileConfig represents configuration loaded from YAML, with environment
// variables taking precedence.
type FileConfig struct {
	Port          string `yaml:"port" env:"PORT"`
	DatabaseURL   string `yaml:"databaseURL" env:"DATABASE_URL"`
	JWTSecret     string `yaml:"jwtSecret" env:"JWT_SECRET"`
	JWTIssuer     string `yaml:"jwtIssuer" env:"JWT_ISSUER"`
	SessionTTL    string `yaml:"sessionTTL" env:"SESSION_TTL"`
	LogLevel      string `yaml:"logLevel" env:"LOG_LEVEL"`
	RedisAddr     string `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redisPassword" env:"REDIS_PASSWORD"`

	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs" env:"TRUSTED_PROXY_CIDRS" envSeparator:","`
	CORSOrigins       []string `yaml:"corsOrigins" env:"CORS_ORIGINS" envSeparator:","`

	LoginRateLimitPerMinute  int `yaml:"loginRateLimitPerMinute" env:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	SignupRateLimitPerMinute int `yaml:"signupRateLimitPerMinute" env:"SIGNUP_RATE_LIMIT_PER_MINUTE"`
	GuestRateLimitPerMinute  int `yaml:"guestRateLimitPerMinute" env:"GUEST_RATE_LIMIT_PER_MINUTE"`

	GuestPoolSize  int    `yaml:"guestPoolSize" env:"GUEST_POOL_SIZE"`
	GuestRetention string `yaml:"guestRetention" env:"GUEST_RETENTION"`
	SweepInterval  string `yaml:"sweepInterval" env:"SWEEP_INTERVAL"`
}

// Load reads config from path (defaults to ConfigPath). A .env file in the
// working directory is loaded first so its values act as environment
// overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if p, err := strconv.Atoi(cfg.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("config: port must be an integer between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if cfg.LogLevel != "" && !slices.Contains(logLevels, strings.ToLower(cfg.LogLevel)) {
		return fmt.Errorf("config: logLevel must be one of %s", strings.Join(logLevels, ", "))
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.SignupRateLimitPerMinute < 0 || cfg.GuestRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.GuestPoolSize < 0 {
		return errors.New("config: guestPoolSize must be >= 0")
	}
	if _, err := cfg.Durations(); err != nil {
		return err
	}
	return nil
}

// Durations holds the parsed duration settings.
type Durations struct {
	SessionTTL     time.Duration
	GuestRetention time.Duration
	SweepInterval  time.Duration
}

// Durations parses the duration strings, substituting defaults for empty
// values.
func (c FileConfig) Durations() (Durations, error) {
	var (
		d   Durations
		err error
	)
	if d.SessionTTL, err = parseDuration("sessionTTL", c.SessionTTL, defaultSessionTTL); err != nil {
		return d, err
	}
	if d.GuestRetention, err = parseDuration("guestRetention", c.GuestRetention, defaultRetention); err != nil {
		return d, err
	}
	if d.SweepInterval, err = parseDuration("sweepInterval", c.SweepInterval, defaultSweep); err != nil {
		return d, err
	}
	return d, nil
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", name)
	}
	return dur, nil
}
