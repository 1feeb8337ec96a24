// Package common provides shared utilities for Replay
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Deployment modes. DEV reroutes storage to an isolated namespace and
// substitutes the deterministic mock agent runtime.
const (
	ModeProd = "PROD"
	ModeDev  = "DEV"
)

// Config holds all configuration for Replay
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Simulation  SimulationConfig `toml:"simulation"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SQLite storage configuration.
type StorageConfig struct {
	Path            string `toml:"path"`              // database file path
	DevPath         string `toml:"dev_path"`          // isolated DEV namespace
	PreserveDevData bool   `toml:"preserve_dev_data"` // keep DEV database between runs
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD  EODHDConfig  `toml:"eodhd"`
	Gemini GeminiConfig `toml:"gemini"`
}

// EODHDConfig holds the price-history provider configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// SimulationConfig holds orchestrator tunables.
type SimulationConfig struct {
	DeploymentMode    string   `toml:"deployment_mode"`     // PROD or DEV
	InitialCash       float64  `toml:"initial_cash"`        // starting cash for a model's first day
	MaxSimulationDays int      `toml:"max_simulation_days"` // range size cap for one job
	MaxConcurrency    int      `toml:"max_concurrency"`     // parallel model sessions per date
	MaxAgentSteps     int      `toml:"max_agent_steps"`     // reasoning step cap per session
	MaxAgentRetries   int      `toml:"max_agent_retries"`   // transient agent failure retries
	Models            []string `toml:"models"`              // enabled model signatures
	Universe          []string `toml:"universe"`            // tracked symbol universe
}

// SchedulerConfig holds the optional auto-resume scheduler configuration.
type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // default "0 22 * * 1-5"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// IsDev reports whether the process runs in DEV deployment mode.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Simulation.DeploymentMode, ModeDev)
}

// StoragePath returns the database path for the active deployment mode.
func (c *Config) StoragePath() string {
	if c.IsDev() {
		return c.Storage.DevPath
	}
	return c.Storage.Path
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path:            "data/replay.db",
			DevPath:         "data/dev/replay.db",
			PreserveDevData: true,
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Simulation: SimulationConfig{
			DeploymentMode:    ModeProd,
			InitialCash:       10000,
			MaxSimulationDays: 30,
			MaxConcurrency:    4,
			MaxAgentSteps:     10,
			MaxAgentRetries:   3,
			Models:            []string{"mock"},
			Universe:          DefaultUniverse,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Cron:    "0 22 * * 1-5",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REPLAY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("REPLAY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("REPLAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("REPLAY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("REPLAY_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if mode := os.Getenv("DEPLOYMENT_MODE"); mode != "" {
		config.Simulation.DeploymentMode = strings.ToUpper(mode)
	}

	if v := os.Getenv("PRESERVE_DEV_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Storage.PreserveDevData = b
		}
	}

	if v := os.Getenv("MAX_SIMULATION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Simulation.MaxSimulationDays = n
		}
	}

	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.Clients.EODHD.APIKey = key
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Clients.Gemini.APIKey = key
	}
}

// ResolveAPIKey resolves an API key from environment or config fallback.
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":  {"EODHD_API_KEY", "REPLAY_EODHD_API_KEY"},
		"gemini_api_key": {"GEMINI_API_KEY", "REPLAY_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
