package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/daemonctl"
	"shuttle/internal/queue"
)

type commandContext struct {
	configFlag *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		tokenFlag:  tokenFlag,
	}
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

func (c *commandContext) apiToken(cfg *config.Config) string {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token
		}
	}
	return cfg.API.AdminToken
}

func (c *commandContext) client() (*daemonctl.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return nil, errors.New("daemon API is disabled (set paths.api_bind in the config)")
	}
	return daemonctl.NewClient(cfg.Paths.APIBind, c.apiToken(cfg)), nil
}

// withClient runs fn against a reachable daemon and fails with a hint when
// the daemon is down.
func (c *commandContext) withClient(fn func(*daemonctl.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
			return fmt.Errorf("daemon is not running; start it with `shuttle start`")
		}
		return err
	}
	return nil
}

// withStore runs fn with a daemon client when the daemon answers, otherwise
// with direct store access. Exactly one of the two arguments is non-nil.
func (c *commandContext) withStore(fn func(client *daemonctl.Client, store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Paths.APIBind) != "" {
		client := daemonctl.NewClient(cfg.Paths.APIBind, c.apiToken(cfg))
		if _, statusErr := client.Status(); statusErr == nil {
			return fn(client, nil)
		} else if !errors.Is(statusErr, daemonctl.ErrDaemonNotRunning) {
			return statusErr
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(nil, store)
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
