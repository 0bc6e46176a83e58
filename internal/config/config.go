package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SessionsDir string `toml:"sessions_dir"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
}

// Portal contains configuration for the licensing portal the pipeline drives.
type Portal struct {
	LoginURL              string `toml:"login_url"`
	BaseURL               string `toml:"base_url"`
	AadhaarNumber         string `toml:"aadhaar_number"`
	Password              string `toml:"password"`
	MaxLoginAttempts      int    `toml:"max_login_attempts"`
	RecognitionRetryLimit int    `toml:"recognition_retry_limit"`
	NavigationTimeout     int    `toml:"navigation_timeout"`
	ElementTimeout        int    `toml:"element_timeout"`
	PostLoginTimeout      int    `toml:"post_login_timeout"`
}

// Browser contains configuration for the shared headless Chrome launcher.
type Browser struct {
	ChromePath string `toml:"chrome_path"`
	Headless   bool   `toml:"headless"`
	NoSandbox  bool   `toml:"no_sandbox"`
}

// OCR contains configuration for CAPTCHA text recognition.
type OCR struct {
	TesseractPath string `toml:"tesseract_path"`
	MaxConcurrent int    `toml:"max_concurrent"`
	Timeout       int    `toml:"timeout"`
}

// Render contains configuration for certificate PDF rendering.
type Render struct {
	TemplatePath string `toml:"template_path"`
}

// Sessions contains configuration for session lifecycle management.
type Sessions struct {
	SweepInterval int `toml:"sweep_interval"`
	MaxAgeHours   int `toml:"max_age_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Fetch          bool   `toml:"fetch"`
	Processing     bool   `toml:"processing"`
	Generation     bool   `toml:"generation"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for PermitFlow.
//
// Configuration sections by subsystem:
//   - Paths: session, data, and log directories
//   - Portal: login/lookup URLs, credentials, and browser wait timeouts
//   - Browser: headless Chrome launcher settings
//   - OCR: tesseract invocation settings for CAPTCHA solving
//   - Render: certificate template settings
//   - Sessions: sweep interval and stale-session age
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Portal        Portal        `toml:"portal"`
	Browser       Browser       `toml:"browser"`
	OCR           OCR           `toml:"ocr"`
	Render        Render        `toml:"render"`
	Sessions      Sessions      `toml:"sessions"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/permitflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("permitflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the service needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SessionsDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LookupURL builds the portal document lookup URL for a permit identifier.
// The same URL is encoded into the certificate QR code.
func (c *Config) LookupURL(identifier string) string {
	base := strings.TrimRight(c.Portal.BaseURL, "/")
	return base + "/Registration/PrintRegistrationFormVehicleCheckValidOrNot.aspx?eId=" + identifier
}

// TesseractBinary returns the tesseract executable name.
func (c *Config) TesseractBinary() string {
	if strings.TrimSpace(c.OCR.TesseractPath) != "" {
		return c.OCR.TesseractPath
	}
	return "tesseract"
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
