package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"adforge/internal/apiclient"
	"adforge/internal/config"
)

type commandContext struct {
	addressFlag *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// daemonAddress resolves the daemon API address: the --address flag wins,
// then the configured bind, then the built-in default.
func (c *commandContext) daemonAddress() string {
	if c.addressFlag != nil && strings.TrimSpace(*c.addressFlag) != "" {
		return strings.TrimSpace(*c.addressFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIBind
	}
	return config.Default().Paths.APIBind
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	return fn(apiclient.New(c.daemonAddress()))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
