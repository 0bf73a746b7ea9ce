package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"galleryvault/internal/config"
	"galleryvault/internal/daemonctl"
	"galleryvault/internal/logging"
	"galleryvault/internal/services"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool
	svcOptions []services.Option

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool, opts []services.Option) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		svcOptions: opts,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withServices builds the runtime for one command. Logs go to the command's
// stderr so stdout stays parseable.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(*services.Services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		ComponentLevels: cfg.Logging.ComponentOverrides,
		Writer:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	svc, err := services.New(cfg, logger, c.svcOptions...)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func (c *commandContext) daemonClient() (*daemonctl.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.New(cfg), nil
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
