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
	if err := c.normalizePortal(); err != nil {
		return err
	}
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeOCR()
	c.normalizeSessions()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SessionsDir, err = expandPath(c.Paths.SessionsDir); err != nil {
		return fmt.Errorf("paths.sessions_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePortal() error {
	if c.Portal.AadhaarNumber == "" {
		if value, ok := os.LookupEnv("PERMITFLOW_AADHAAR"); ok {
			c.Portal.AadhaarNumber = strings.TrimSpace(value)
		}
	}
	if c.Portal.Password == "" {
		if value, ok := os.LookupEnv("PERMITFLOW_PASSWORD"); ok {
			c.Portal.Password = value
		}
	}
	c.Portal.LoginURL = strings.TrimSpace(c.Portal.LoginURL)
	if c.Portal.LoginURL == "" {
		c.Portal.LoginURL = defaultLoginURL
	}
	c.Portal.BaseURL = strings.TrimSpace(c.Portal.BaseURL)
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = defaultPortalBaseURL
	}
	if c.Portal.MaxLoginAttempts <= 0 {
		c.Portal.MaxLoginAttempts = defaultMaxLoginAttempts
	}
	if c.Portal.RecognitionRetryLimit <= 0 {
		c.Portal.RecognitionRetryLimit = defaultRecognitionRetryLimit
	}
	if c.Portal.NavigationTimeout <= 0 {
		c.Portal.NavigationTimeout = defaultNavigationTimeout
	}
	if c.Portal.ElementTimeout <= 0 {
		c.Portal.ElementTimeout = defaultElementTimeout
	}
	if c.Portal.PostLoginTimeout <= 0 {
		c.Portal.PostLoginTimeout = defaultPostLoginTimeout
	}
	return nil
}

func (c *Config) normalizeRender() error {
	var err error
	if strings.TrimSpace(c.Render.TemplatePath) == "" {
		c.Render.TemplatePath = defaultTemplatePath
	}
	if c.Render.TemplatePath, err = expandPath(c.Render.TemplatePath); err != nil {
		return fmt.Errorf("render.template_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeOCR() {
	c.OCR.TesseractPath = strings.TrimSpace(c.OCR.TesseractPath)
	if c.OCR.MaxConcurrent <= 0 {
		c.OCR.MaxConcurrent = defaultOCRMaxConcurrent
	}
	if c.OCR.Timeout <= 0 {
		c.OCR.Timeout = defaultOCRTimeout
	}
}

func (c *Config) normalizeSessions() {
	if c.Sessions.SweepInterval <= 0 {
		c.Sessions.SweepInterval = defaultSweepInterval
	}
	if c.Sessions.MaxAgeHours <= 0 {
		c.Sessions.MaxAgeHours = defaultSessionMaxAgeHours
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
