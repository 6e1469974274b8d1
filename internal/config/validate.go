package config

import (
	"errors"
	"fmt"
)

var knownPlatforms = map[string]struct{}{
	"tiktok":    {},
	"instagram": {},
	"youtube":   {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.Paths.APIBind == "" {
		return nil
	}
	if c.API.AdminToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("api.admin_token is required when the API is enabled. Set SHUTTLE_ADMIN_TOKEN or edit %s (create with 'shuttle config init')", defaultPath)
	}
	if c.API.TokenTTLMinutes <= 0 {
		return errors.New("api.token_ttl_minutes must be positive")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.Interval <= 0 {
		return errors.New("dispatch.interval must be positive")
	}
	if c.Dispatch.BatchSize <= 0 {
		return errors.New("dispatch.batch_size must be positive")
	}
	if c.Dispatch.Workers <= 0 {
		return errors.New("dispatch.workers must be positive")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return errors.New("dispatch.max_attempts must be positive")
	}
	if c.Dispatch.RetryBaseMS <= 0 {
		return errors.New("dispatch.retry_base_ms must be positive")
	}
	if c.Dispatch.RetryFactor < 2 {
		return errors.New("dispatch.retry_factor must be at least 2")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.WarningThreshold <= 0 {
		return errors.New("monitor.warning_threshold must be positive")
	}
	if c.Monitor.CriticalThreshold <= c.Monitor.WarningThreshold {
		return errors.New("monitor.critical_threshold must exceed monitor.warning_threshold")
	}
	if c.Monitor.WindowSize <= 0 {
		return errors.New("monitor.window_size must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.ThrottleWindowSeconds < 0 {
		return errors.New("notifications.throttle_window_seconds must not be negative")
	}
	return nil
}

func (c *Config) validatePlatforms() error {
	if len(c.Platforms.Enabled) == 0 {
		return errors.New("platforms.enabled must list at least one platform")
	}
	for _, name := range c.Platforms.Enabled {
		if _, ok := knownPlatforms[name]; !ok {
			return fmt.Errorf("platforms.enabled contains unknown platform %q", name)
		}
	}
	return nil
}
