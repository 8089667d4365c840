package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Storage contains directory configuration for the monitored file store.
type Storage struct {
	// RootDir holds the inbox/, processing/, failed/, and processed/ trees.
	RootDir string `toml:"root_dir"`
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Transcription contains configuration for the transcription vendor.
type Transcription struct {
	Service        string `toml:"service"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PollSeconds    int    `toml:"poll_seconds"`
	Language       string `toml:"language"`
}

// LLM contains configuration for the structuring model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Processing contains pipeline tuning knobs.
type Processing struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MaxFileSizeMB       int    `toml:"max_file_size_mb"`
	MaxRetries          int    `toml:"max_retries"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
	StabilityWindowSecs int    `toml:"stability_window_seconds"`
	CompressAudio       bool   `toml:"compress_audio"`
	CompressionQuality  string `toml:"compression_quality"`
}

// Persistence contains configuration for the optional queryable mirror.
type Persistence struct {
	Enabled bool   `toml:"enabled"`
	DBPath  string `toml:"db_path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completions    bool   `toml:"completions"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Ramble.
//
// Configuration sections by subsystem:
//   - Storage: monitored root plus working and log directories
//   - Transcription: vendor credentials and polling cadence
//   - LLM: structuring model connection settings
//   - Processing: poll interval, size limit, retry budget, compression
//   - Persistence: optional SQLite mirror of processed sessions
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Processing    Processing    `toml:"processing"`
	Persistence   Persistence   `toml:"persistence"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ramble/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded, environment references resolved, and
// defaults applied.
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

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ramble.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation,
// including the fixed storage layout under the root.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.WorkDir,
		c.Storage.LogDir,
		filepath.Join(c.Storage.RootDir, "inbox"),
		filepath.Join(c.Storage.RootDir, "processing"),
		filepath.Join(c.Storage.RootDir, "failed"),
		filepath.Join(c.Storage.RootDir, "processed"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Persistence.Enabled && strings.TrimSpace(c.Persistence.DBPath) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Persistence.DBPath), 0o755); err != nil {
			return fmt.Errorf("create persistence directory: %w", err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio compression.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// LogDirectory implements logging.LogDirProvider.
func (c *Config) LogDirectory() string { return c.Storage.LogDir }

// LogFormat implements logging.LogDirProvider.
func (c *Config) LogFormat() string { return c.Logging.Format }

// LogLevel implements logging.LogDirProvider.
func (c *Config) LogLevel() string { return c.Logging.Level }

// StabilityWindow returns the interval a file must remain unchanged before
// it is considered fully uploaded.
func (c *Config) StabilityWindow() time.Duration {
	return time.Duration(c.Processing.StabilityWindowSecs) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
