// Package config loads the motion-smoke runner configuration from an
// optional YAML file, .env files, and MOTION_SMOKE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory when
// MOTION_SMOKE_CONFIG is unset.
const DefaultFile = "motion-smoke.yaml"

// Defaults for a run against the deployed Motion backend.
const (
	DefaultBaseURL       = "https://qekks9l4k1.execute-api.us-east-2.amazonaws.com"
	DefaultMotionEventID = "365a5596-a6cf-46ee-9675-63017035d7b6"
	DefaultLogFile       = "motion-backend-smoketest.log"
	DefaultTimeout       = 30 * time.Second
	DefaultUserAgent     = "motion-smoke/1"
)

// Config is the full runner configuration.
type Config struct {
	BaseURL       string        `yaml:"base_url"`
	Email         string        `yaml:"email"`
	Password      string        `yaml:"password"`
	MotionEventID string        `yaml:"motion_event_id"`
	LogFile       string        `yaml:"log_file"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables pacing
	AttachToken   bool          `yaml:"attach_token"`
	LogLevel      string        `yaml:"log_level"`
	MetricsFile   string        `yaml:"metrics_file"` // prometheus textfile, empty disables
	UserAgent     string        `yaml:"user_agent"`
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		MotionEventID: DefaultMotionEventID,
		LogFile:       DefaultLogFile,
		Timeout:       DefaultTimeout,
		LogLevel:      "info",
		UserAgent:     DefaultUserAgent,
	}
}

// ResolvePath returns the config file to read: MOTION_SMOKE_CONFIG when set,
// otherwise DefaultFile if it exists, otherwise "".
func ResolvePath() string {
	if p := os.Getenv("MOTION_SMOKE_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// LoadDotEnv loads .env.local and .env from the working directory. Variables
// already present in the environment are left untouched.
func LoadDotEnv() error {
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"MOTION_SMOKE_BASE_URL", &cfg.BaseURL},
		{"MOTION_SMOKE_EMAIL", &cfg.Email},
		{"MOTION_SMOKE_PASSWORD", &cfg.Password},
		{"MOTION_SMOKE_EVENT_ID", &cfg.MotionEventID},
		{"MOTION_SMOKE_LOG_FILE", &cfg.LogFile},
		{"MOTION_SMOKE_LOG_LEVEL", &cfg.LogLevel},
		{"MOTION_SMOKE_METRICS_FILE", &cfg.MetricsFile},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// applyDefaults fills fields a YAML file may have blanked out.
func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MotionEventID == "" {
		c.MotionEventID = DefaultMotionEventID
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q: host is required", c.BaseURL)
	}
	if c.Email == "" {
		return errors.New("email is required (set email in the config file or MOTION_SMOKE_EMAIL)")
	}
	if c.Password == "" {
		return errors.New("password is required (set password in the config file or MOTION_SMOKE_PASSWORD)")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second must not be negative, got %v", c.RatePerSecond)
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
