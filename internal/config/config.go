package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/freakspace/polymarket-latency/pkg/types"
)

const (
	envConfigPath = "POLYLATENCY_CONFIG"

	EnvAPIKey        = "POLY_API_KEY"
	EnvAPISecret     = "POLY_API_SECRET"
	EnvAPIPassphrase = "POLY_API_PASSPHRASE"

	DefaultWSBaseURL   = "wss://ws-subscriptions-clob.polymarket.com"
	DefaultGammaAPIURL = "https://gamma-api.polymarket.com"
)

type Config struct {
	Endpoints  EndpointConfig   `yaml:"endpoints"`
	Run        RunConfig        `yaml:"run"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type EndpointConfig struct {
	WSBaseURL   string        `yaml:"ws_base_url"`
	GammaAPIURL string        `yaml:"gamma_api_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type RunConfig struct {
	NumEvents         int           `yaml:"num_events"`
	CalibrationEvents int           `yaml:"calibration_events"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
}

// MonitoringConfig controls the local metrics listener. An empty address
// disables it.
type MonitoringConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Endpoints: EndpointConfig{
			WSBaseURL:   DefaultWSBaseURL,
			GammaAPIURL: DefaultGammaAPIURL,
			HTTPTimeout: 15 * time.Second,
		},
		Run: RunConfig{
			NumEvents:         100,
			CalibrationEvents: 10,
			KeepaliveInterval: 10 * time.Second,
			HandshakeTimeout:  10 * time.Second,
		},
	}
}

// Load reads path over the defaults, so a partial file only overrides the
// keys it names.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads the file named by POLYLATENCY_CONFIG, or returns the
// defaults when it is unset.
func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		return Default(), nil
	}
	return Load(ctx, path)
}

func (c Config) Validate() error {
	if c.Endpoints.WSBaseURL == "" {
		return fmt.Errorf("endpoints.ws_base_url is required")
	}
	if c.Endpoints.GammaAPIURL == "" {
		return fmt.Errorf("endpoints.gamma_api_url is required")
	}
	if c.Run.NumEvents < 1 {
		return fmt.Errorf("run.num_events must be at least 1, got %d", c.Run.NumEvents)
	}
	if c.Run.CalibrationEvents < 0 {
		return fmt.Errorf("run.calibration_events must not be negative, got %d", c.Run.CalibrationEvents)
	}
	if c.Run.KeepaliveInterval <= 0 {
		return fmt.Errorf("run.keepalive_interval must be positive")
	}
	return nil
}

// ResolveCredentials fills every field missing from flags with its
// environment variable.
func ResolveCredentials(flags types.Auth) types.Auth {
	return types.Auth{
		APIKey:     firstNonEmpty(flags.APIKey, os.Getenv(EnvAPIKey)),
		Secret:     firstNonEmpty(flags.Secret, os.Getenv(EnvAPISecret)),
		Passphrase: firstNonEmpty(flags.Passphrase, os.Getenv(EnvAPIPassphrase)),
	}
}

// MissingCredentials names the environment variables for absent fields.
func MissingCredentials(auth types.Auth) []string {
	var missing []string
	if auth.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if auth.Secret == "" {
		missing = append(missing, EnvAPISecret)
	}
	if auth.Passphrase == "" {
		missing = append(missing, EnvAPIPassphrase)
	}
	return missing
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
