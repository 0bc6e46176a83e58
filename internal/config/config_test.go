package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"permitflow/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[portal]
aadhaar_number = "123456789012"
password = "secret"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Portal.MaxLoginAttempts != 5 {
		t.Errorf("expected default max_login_attempts 5, got %d", cfg.Portal.MaxLoginAttempts)
	}
	if cfg.Portal.RecognitionRetryLimit != 15 {
		t.Errorf("expected default recognition_retry_limit 15, got %d", cfg.Portal.RecognitionRetryLimit)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("expected console log format, got %q", cfg.Logging.Format)
	}
	if !cfg.Browser.Headless {
		t.Error("expected headless browser by default")
	}
	if !strings.HasPrefix(cfg.Paths.SessionsDir, "/") {
		t.Errorf("expected expanded sessions dir, got %q", cfg.Paths.SessionsDir)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("PERMITFLOW_AADHAAR", "")
	t.Setenv("PERMITFLOW_PASSWORD", "")
	path := writeConfig(t, "[portal]\n")
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestLoadReadsCredentialsFromEnv(t *testing.T) {
	t.Setenv("PERMITFLOW_AADHAAR", "123456789012")
	t.Setenv("PERMITFLOW_PASSWORD", "secret")
	path := writeConfig(t, "[portal]\n")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.AadhaarNumber != "123456789012" {
		t.Errorf("expected aadhaar from env, got %q", cfg.Portal.AadhaarNumber)
	}
}

func TestLoadRejectsUnboundedElementTimeout(t *testing.T) {
	path := writeConfig(t, `
[portal]
aadhaar_number = "123456789012"
password = "secret"
element_timeout = 30
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for element_timeout above the single-digit bound")
	}
}

func TestLookupURL(t *testing.T) {
	cfg := config.Default()
	cfg.Portal.BaseURL = "https://portal.example/"
	got := cfg.LookupURL("1001")
	want := "https://portal.example/Registration/PrintRegistrationFormVehicleCheckValidOrNot.aspx?eId=1001"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := writeConfig(t, config.SampleConfig())
	t.Setenv("PERMITFLOW_AADHAAR", "123456789012")
	t.Setenv("PERMITFLOW_PASSWORD", "secret")
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
