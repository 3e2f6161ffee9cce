package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Environment variables that override the API key from the config file.
const (
	EnvAPIKey      = "JSEARCH_API_KEY"
	EnvRapidAPIKey = "RAPIDAPI_KEY"
)

type Config struct {
	StorageDir string       `toml:"storage_dir"`
	API        APIConfig    `toml:"api"`
	Search     SearchConfig `toml:"search"`
	Cache      CacheConfig  `toml:"cache"`
	Server     ServerConfig `toml:"server"`
}

type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Key     string   `toml:"key"`
	Host    string   `toml:"host"`
	Timeout Duration `toml:"timeout"`
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type SearchConfig struct {
	FallbackQuery string   `toml:"fallback_query"`
	Country       string   `toml:"country"`
	DatePosted    string   `toml:"date_posted"`
	NumPages      int      `toml:"num_pages"`
	Debounce      Duration `toml:"debounce"`
}

type CacheConfig struct {
	DedupingInterval   Duration `toml:"deduping_interval"`
	ErrorRetryCount    int      `toml:"error_retry_count"`
	ErrorRetryInterval Duration `toml:"error_retry_interval"`
	// RedisURL enables the shared result store when set.
	RedisURL      string `toml:"redis_url,omitempty"`
	PruneSchedule string `toml:"prune_schedule"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "https://jsearch.p.rapidapi.com"
	}
	if c.API.Host == "" {
		c.API.Host = "jsearch.p.rapidapi.com"
	}
	if c.API.Timeout.Duration <= 0 {
		c.API.Timeout = Duration{15 * time.Second}
	}
	if c.Search.FallbackQuery == "" {
		c.Search.FallbackQuery = "developer jobs"
	}
	if c.Search.Country == "" {
		c.Search.Country = "us"
	}
	if c.Search.DatePosted == "" {
		c.Search.DatePosted = "all"
	}
	if c.Search.NumPages < 1 {
		c.Search.NumPages = 1
	}
	if c.Search.Debounce.Duration <= 0 {
		c.Search.Debounce = Duration{500 * time.Millisecond}
	}
	if c.Cache.DedupingInterval.Duration <= 0 {
		c.Cache.DedupingInterval = Duration{60 * time.Second}
	}
	if c.Cache.ErrorRetryCount <= 0 {
		c.Cache.ErrorRetryCount = 3
	}
	if c.Cache.ErrorRetryInterval.Duration <= 0 {
		c.Cache.ErrorRetryInterval = Duration{5 * time.Second}
	}
	if c.Cache.PruneSchedule == "" {
		c.Cache.PruneSchedule = "@every 1m"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8089"
	}
}

// LoadConfig reads the TOML file at configPath. A missing file yields the
// defaults. A .env file in the working directory and the EnvAPIKey or
// EnvRapidAPIKey variables override the API key.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err = GetDefaultConfig()
		if err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		cfg = &Config{}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}

		if cfg.StorageDir == "" {
			storageDir, err := GetDefaultStorageDir()
			if err != nil {
				return nil, fmt.Errorf("getting default storage directory: %w", err)
			}
			cfg.StorageDir = storageDir
		}
		cfg.applyDefaults()
	}

	if key := firstEnv(EnvAPIKey, EnvRapidAPIKey); key != "" {
		cfg.API.Key = key
	}

	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// DBPath returns the sqlite database path inside StorageDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "jobsearch.db")
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample config with the real
// storage directory filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/jobsearch", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/jobsearch, creating it if needed.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "jobsearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/jobsearch, creating it if needed.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "jobsearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
