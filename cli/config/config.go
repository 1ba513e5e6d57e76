package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL         string        `yaml:"api_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Manual         bool          `yaml:"manual"`       // start the watch view with the timer disabled
	StrictOrder    bool          `yaml:"strict_order"` // drop responses older than the applied one
	Notify         bool          `yaml:"notify"`       // nudge polling from websocket update notices
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SessionFile    string        `yaml:"session_file"`
	Token          string        `yaml:"-"` // ORCH_TOKEN, never read from disk
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	OTELEndpoint   string        `yaml:"otel_endpoint"`
}

func Defaults() *Config {
	return &Config{
		APIURL:         "http://localhost:8000",
		PollInterval:   10 * time.Second,
		RequestTimeout: 30 * time.Second,
		SessionFile:    filepath.Join(configDir(), "session.yaml"),
		LogFile:        filepath.Join(stateDir(), "orch.log"),
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load layers defaults, the YAML file at ORCH_CONFIG and the environment.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	path := envOr("ORCH_CONFIG", filepath.Join(configDir(), "config.yaml"))
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}

	cfg.APIURL = envOr("ORCH_API_URL", cfg.APIURL)
	cfg.SessionFile = envOr("ORCH_SESSION_FILE", cfg.SessionFile)
	cfg.Token = os.Getenv("ORCH_TOKEN")
	cfg.LogFile = envOr("ORCH_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = envOr("ORCH_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("ORCH_LOG_FORMAT", cfg.LogFormat)
	cfg.OTELEndpoint = envOr("ORCH_OTEL_ENDPOINT", cfg.OTELEndpoint)

	var err error
	if cfg.PollInterval, err = envDuration("ORCH_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envDuration("ORCH_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.Manual, err = envBool("ORCH_MANUAL", cfg.Manual); err != nil {
		return nil, err
	}
	if cfg.StrictOrder, err = envBool("ORCH_STRICT_ORDER", cfg.StrictOrder); err != nil {
		return nil, err
	}
	if cfg.Notify, err = envBool("ORCH_NOTIFY", cfg.Notify); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("config: api url is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func configDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "orch")
	}
	return ".orch"
}

func stateDir() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return filepath.Join(d, "orch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "orch")
	}
	return ".orch"
}
