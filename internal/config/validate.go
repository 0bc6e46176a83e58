package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePortal(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePortal() error {
	if strings.TrimSpace(c.Portal.AadhaarNumber) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/permitflow/config.toml"
		}
		return fmt.Errorf("portal.aadhaar_number is required. Set PERMITFLOW_AADHAAR env var or edit %s (create with 'permitflow config init')", defaultPath)
	}
	if c.Portal.Password == "" {
		return errors.New("portal.password is required. Set PERMITFLOW_PASSWORD env var or edit the config file")
	}
	for _, entry := range []struct {
		name  string
		value string
	}{
		{"portal.login_url", c.Portal.LoginURL},
		{"portal.base_url", c.Portal.BaseURL},
	} {
		parsed, err := url.Parse(entry.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", entry.name, entry.value)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	// Browser waits stay single-digit seconds so a hung remote page surfaces
	// as a timeout instead of stalling other sessions.
	if c.Portal.ElementTimeout > 9 {
		return fmt.Errorf("portal.element_timeout must be at most 9 seconds, got %d", c.Portal.ElementTimeout)
	}
	if c.Portal.PostLoginTimeout > 9 {
		return fmt.Errorf("portal.post_login_timeout must be at most 9 seconds, got %d", c.Portal.PostLoginTimeout)
	}
	if c.Portal.MaxLoginAttempts > 20 {
		return fmt.Errorf("portal.max_login_attempts must be at most 20, got %d", c.Portal.MaxLoginAttempts)
	}
	return nil
}

func (c *Config) validateSessions() error {
	if c.Paths.SessionsDir == "" {
		return errors.New("paths.sessions_dir must be set")
	}
	if c.Paths.SessionsDir == c.Paths.DataDir {
		return errors.New("paths.sessions_dir and paths.data_dir must differ; the sweep removes session directories wholesale")
	}
	return nil
}
