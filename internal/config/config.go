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

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	UploadDir   string `toml:"upload_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Renderer contains connection settings for one external renderer service.
type Renderer struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Timeout returns the stage deadline for jobs submitted to this renderer.
func (r Renderer) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// PollInterval returns how often the dispatcher polls this renderer for
// job completion.
func (r Renderer) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

// Renderers groups the three renderer endpoints behind the pipeline.
type Renderers struct {
	Video   Renderer `toml:"video"`
	Website Renderer `toml:"website"`
	Publish Renderer `toml:"publish"`
}

// Publish contains social publishing settings beyond the renderer endpoint.
type Publish struct {
	AccountID   string `toml:"account_id"`
	AccessToken string `toml:"access_token"`
}

// Script contains connection settings for the marketing script service.
// When APIKey is empty the daemon falls back to a local template writer.
type Script struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains daemon timing and reconciliation intervals.
type Workflow struct {
	ReconcileInterval  int `toml:"reconcile_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for adforge.
//
// Configuration sections by subsystem:
//   - Paths: data/upload/artifact/log directories and the API bind address
//   - Renderers: video, website, and publish renderer endpoints
//   - Publish: social account credentials used by the publish renderer
//   - Script: marketing script service connection
//   - Workflow: reconciliation and retry intervals
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Renderers     Renderers     `toml:"renderers"`
	Publish       Publish       `toml:"publish"`
	Script        Script        `toml:"script"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/adforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("adforge.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.ArtifactDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RendererFor returns the renderer settings for a named kind
// ("video", "website", "publish").
func (c *Config) RendererFor(kind string) (Renderer, bool) {
	switch kind {
	case "video":
		return c.Renderers.Video, true
	case "website":
		return c.Renderers.Website, true
	case "publish":
		return c.Renderers.Publish, true
	default:
		return Renderer{}, false
	}
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
