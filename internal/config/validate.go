package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRenderers(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateRenderers() error {
	for _, entry := range []struct {
		name string
		r    Renderer
	}{
		{"renderers.video", c.Renderers.Video},
		{"renderers.website", c.Renderers.Website},
		{"renderers.publish", c.Renderers.Publish},
	} {
		if entry.r.TimeoutSeconds <= 0 {
			return fmt.Errorf("%s.timeout_seconds must be positive", entry.name)
		}
		if entry.r.PollIntervalSeconds <= 0 {
			return fmt.Errorf("%s.poll_interval_seconds must be positive", entry.name)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ReconcileInterval <= 0 {
		return errors.New("workflow.reconcile_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
