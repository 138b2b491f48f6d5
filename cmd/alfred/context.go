package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"alfred/internal/assist"
	"alfred/internal/config"
	"alfred/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *assist.Service
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// assistService builds the generation façade once per invocation. CLI runs
// log to stderr at warn so command output stays clean.
func (c *commandContext) assistService() (*assist.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.serviceOnce.Do(func() {
		logger, logErr := logging.New(logging.Options{
			Level:       "warn",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		})
		if logErr != nil {
			logger = logging.NewNop()
		}
		c.service = assist.New(cfg, logger)
	})
	return c.service, nil
}

func (c *commandContext) closeService() {
	if c.service != nil {
		_ = c.service.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
