package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.API.AdminToken = strings.TrimSpace(c.API.AdminToken)
	c.API.TokenSecret = strings.TrimSpace(c.API.TokenSecret)
	c.Credentials.Secret = strings.TrimSpace(c.Credentials.Secret)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	// Environment overrides for secrets so they can stay out of the config file.
	if v := strings.TrimSpace(os.Getenv("SHUTTLE_ADMIN_TOKEN")); v != "" {
		c.API.AdminToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SHUTTLE_TOKEN_SECRET")); v != "" {
		c.API.TokenSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("SHUTTLE_CREDENTIALS_SECRET")); v != "" {
		c.Credentials.Secret = v
	}

	normalized := make([]string, 0, len(c.Platforms.Enabled))
	seen := make(map[string]struct{}, len(c.Platforms.Enabled))
	for _, name := range c.Platforms.Enabled {
		cleaned := strings.ToLower(strings.TrimSpace(name))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		normalized = append(normalized, cleaned)
	}
	c.Platforms.Enabled = normalized
	c.Platforms.Account = strings.TrimSpace(c.Platforms.Account)
	if c.Platforms.Account == "" {
		c.Platforms.Account = defaultPlatformAccount
	}

	return nil
}
