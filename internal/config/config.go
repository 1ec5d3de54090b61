package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	IngestDir string `toml:"ingest_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Store contains configuration for the catalog document store.
type Store struct {
	URI                   string `toml:"uri"`
	Database              string `toml:"database"`
	Collection            string `toml:"collection"`
	ConnectTimeout        int    `toml:"connect_timeout"`
	ConnectRetries        int    `toml:"connect_retries"`
	ConnectRetryInterval  int    `toml:"connect_retry_interval"`
	HealthCheckInterval   int    `toml:"health_check_interval"`
	DisconnectGracePeriod int    `toml:"disconnect_grace_period"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Language          string  `toml:"language"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	RequestTimeout    int     `toml:"request_timeout"`
}

// Search contains configuration for the external web search service used to
// identify media against IMDb listings.
type Search struct {
	APIKey            string  `toml:"api_key"`
	EndpointURL       string  `toml:"endpoint_url"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Workflow contains configuration for pipeline scheduling and retries.
type Workflow struct {
	Workers            int `toml:"workers"`
	BatchWidth         int `toml:"batch_width"`
	BatchSettleSeconds int `toml:"batch_settle_seconds"`
	StepTimeout        int `toml:"step_timeout"`
	StepAttempts       int `toml:"step_attempts"`
	RetryBackoff       int `toml:"retry_backoff"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Identification bool   `toml:"identification"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Watcher contains configuration for the ingest directory watcher.
type Watcher struct {
	Enabled         bool   `toml:"enabled"`
	OwnerID         string `toml:"owner_id"`
	DebounceSeconds int    `toml:"debounce_seconds"`
}

// Probe contains configuration for the technical metadata probing tool.
type Probe struct {
	Binary  string `toml:"binary"`
	Timeout int    `toml:"timeout"`
}

// Config encapsulates all configuration values for substream.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Store: catalog document store connection and lifecycle
//   - TMDB: catalog metadata via The Movie Database
//   - Search: web search service for IMDb identification
//   - Probe: ffprobe invocation settings
//   - Workflow: pipeline concurrency, timeouts, and retry policy
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
//   - Watcher: ingest directory watching
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	TMDB          TMDB          `toml:"tmdb"`
	Search        Search        `toml:"search"`
	Probe         Probe         `toml:"probe"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Watcher       Watcher       `toml:"watcher"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IngestDir: "~/media",
			DataDir:   "~/.local/share/substream",
			LogDir:    "~/.local/share/substream/logs",
			APIBind:   "127.0.0.1:7474",
		},
		Store: Store{
			URI:                   "mongodb://localhost:27017",
			Database:              "substream",
			Collection:            "media",
			ConnectTimeout:        10,
			ConnectRetries:        5,
			ConnectRetryInterval:  2,
			HealthCheckInterval:   30,
			DisconnectGracePeriod: 10,
		},
		TMDB: TMDB{
			BaseURL:           "https://api.themoviedb.org/3",
			Language:          "en-US",
			RequestsPerSecond: 4,
			RequestTimeout:    10,
		},
		Search: Search{
			EndpointURL:       "https://api.bing.microsoft.com/v7.0/search",
			RequestTimeout:    10,
			RequestsPerSecond: 2,
		},
		Probe: Probe{
			Binary:  "ffprobe",
			Timeout: 30,
		},
		Workflow: Workflow{
			Workers:            2,
			BatchWidth:         1,
			BatchSettleSeconds: 1,
			StepTimeout:        600,
			StepAttempts:       3,
			RetryBackoff:       1,
			QueuePollInterval:  2,
			ErrorRetryInterval: 5,
		},
		Logging: Logging{
			Level: "info",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Identification: true,
			Batch:          true,
			Errors:         true,
		},
		Watcher: Watcher{
			DebounceSeconds: 5,
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/substream/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean result
// reports whether a config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the workflow instance database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "pipelines.db")
}

// LockFilePath returns the daemon lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "substreamd.lock")
}

// Validate checks configuration invariants that cannot be defaulted away.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Store.URI) == "" {
		problems = append(problems, "store.uri is required")
	}
	if strings.TrimSpace(c.Store.Database) == "" {
		problems = append(problems, "store.database is required")
	}
	if c.Workflow.Workers < 1 {
		problems = append(problems, "workflow.workers must be at least 1")
	}
	if c.Workflow.BatchWidth < 1 {
		problems = append(problems, "workflow.batch_width must be at least 1")
	}
	if c.Workflow.StepAttempts < 1 {
		problems = append(problems, "workflow.step_attempts must be at least 1")
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		problems = append(problems, "tmdb.requests_per_second must be positive")
	}
	if c.Search.RequestsPerSecond <= 0 {
		problems = append(problems, "search.requests_per_second must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) normalize() error {
	expanded := []*string{
		&c.Paths.IngestDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
	}
	for _, field := range expanded {
		value, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = value
	}

	if c.Workflow.StepTimeout <= 0 {
		c.Workflow.StepTimeout = Default().Workflow.StepTimeout
	}
	if c.Workflow.RetryBackoff <= 0 {
		c.Workflow.RetryBackoff = Default().Workflow.RetryBackoff
	}
	if c.Probe.Binary == "" {
		c.Probe.Binary = "ffprobe"
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
