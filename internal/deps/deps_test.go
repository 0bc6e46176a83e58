package deps

import (
	"testing"

	"permitflow/internal/config"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "nope", Command: "definitely-not-a-real-binary-xyz"},
		{Name: "empty", Command: "  "},
	})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.Available {
			t.Errorf("%s should be unavailable", status.Name)
		}
		if status.Detail == "" {
			t.Errorf("%s should carry a detail message", status.Name)
		}
	}
}

func TestDefaultUsesConfiguredPaths(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.TesseractPath = "/opt/tesseract/bin/tesseract"
	cfg.Browser.ChromePath = "/opt/chrome/chrome"

	reqs := Default(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/tesseract/bin/tesseract" {
		t.Errorf("unexpected tesseract command %q", reqs[0].Command)
	}
	if reqs[1].Command != "/opt/chrome/chrome" || reqs[1].Optional {
		t.Errorf("expected required chrome entry, got %+v", reqs[1])
	}
}

func TestMissingRequiredIgnoresOptional(t *testing.T) {
	missing := MissingRequired([]Status{
		{Name: "a", Optional: true, Available: false},
		{Name: "b", Available: false},
		{Name: "c", Available: true},
	})
	if len(missing) != 1 || missing[0] != "b" {
		t.Errorf("expected [b], got %v", missing)
	}
}
