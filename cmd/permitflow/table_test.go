package main

import (
	"strings"
	"testing"
)

func TestRenderTableSessionColumns(t *testing.T) {
	out := renderTable(sessionColumns, [][]string{
		{"operator", "idle", "Agra", "100-104", "5", "3", "3", "2026-08-29 10:00:00"},
	})
	for _, header := range []string{"User", "State", "District", "Window", "Records", "Eligible", "PDFs", "Updated"} {
		if !strings.Contains(out, header) {
			t.Fatalf("table missing %q header:\n%s", header, out)
		}
	}
	if !strings.Contains(out, "operator") || !strings.Contains(out, "100-104") {
		t.Fatalf("table missing row data:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(settingColumns, [][]string{{"login_url"}})
	if !strings.Contains(out, "login_url") {
		t.Fatalf("table missing row data:\n%s", out)
	}
}
