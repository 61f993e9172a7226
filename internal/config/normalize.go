package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRenderers()
	c.normalizeScript()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = defaultArtifactDir
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRenderers() {
	normalizeRenderer(&c.Renderers.Video, defaultVideoTimeoutSeconds)
	normalizeRenderer(&c.Renderers.Website, defaultWebsiteTimeoutSeconds)
	normalizeRenderer(&c.Renderers.Publish, defaultPublishTimeoutSeconds)
	if c.Publish.AccessToken == "" {
		c.Publish.AccessToken = strings.TrimSpace(os.Getenv("ADFORGE_PUBLISH_ACCESS_TOKEN"))
	}
	if c.Publish.AccountID == "" {
		c.Publish.AccountID = strings.TrimSpace(os.Getenv("ADFORGE_PUBLISH_ACCOUNT_ID"))
	}
}

func normalizeRenderer(r *Renderer, defaultTimeout int) {
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	r.APIKey = strings.TrimSpace(r.APIKey)
	if r.TimeoutSeconds <= 0 {
		r.TimeoutSeconds = defaultTimeout
	}
	if r.PollIntervalSeconds <= 0 {
		r.PollIntervalSeconds = defaultPollIntervalSeconds
	}
}

func (c *Config) normalizeScript() {
	c.Script.BaseURL = strings.TrimRight(strings.TrimSpace(c.Script.BaseURL), "/")
	if c.Script.BaseURL == "" {
		c.Script.BaseURL = defaultScriptBaseURL
	}
	if c.Script.APIKey == "" {
		c.Script.APIKey = strings.TrimSpace(os.Getenv("ADFORGE_SCRIPT_API_KEY"))
	}
	if strings.TrimSpace(c.Script.Model) == "" {
		c.Script.Model = defaultScriptModel
	}
	if c.Script.TimeoutSeconds <= 0 {
		c.Script.TimeoutSeconds = defaultScriptTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ReconcileInterval <= 0 {
		c.Workflow.ReconcileInterval = defaultReconcileInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
