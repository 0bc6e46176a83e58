// Package deps verifies the external binaries the pipeline shells out to or
// launches: tesseract for CAPTCHA recognition and a Chrome/Chromium build for
// the headless browser.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"permitflow/internal/config"
)

// Requirement defines an external dependency PermitFlow relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Default returns the requirements derived from configuration.
func Default(cfg *config.Config) []Requirement {
	chrome := strings.TrimSpace(cfg.Browser.ChromePath)
	reqs := []Requirement{
		{
			Name:        "tesseract",
			Command:     cfg.TesseractBinary(),
			Description: "OCR engine used to solve the login CAPTCHA",
		},
	}
	if chrome != "" {
		reqs = append(reqs, Requirement{
			Name:        "chrome",
			Command:     chrome,
			Description: "headless browser driven by the pipeline",
		})
		return reqs
	}
	// chromedp resolves the browser itself when no explicit path is set; check
	// the common names so `permitflow deps` can still warn early.
	for _, candidate := range []string{"google-chrome", "chromium", "chromium-browser"} {
		reqs = append(reqs, Requirement{
			Name:        candidate,
			Command:     candidate,
			Description: "headless browser candidate (any one suffices)",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
