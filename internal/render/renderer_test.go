package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"permitflow/internal/logging"
	"permitflow/internal/qr"
)

func sampleFields() FieldMap {
	return FieldMap{
		FieldPermitNumber:        "UP/1001-X",
		FieldLesseeID:            "L-42",
		FieldLesseeName:          "Shri Ram Stone Works and Aggregates Private Limited",
		FieldLesseeMobile:        "9876543210",
		FieldLeaseDetails:        "Gata 12 Village Kharagpur Tehsil Sadar",
		FieldTehsil:              "Sadar",
		FieldDistrict:            "Mirzapur",
		FieldQuantity:            "18.5",
		FieldMineral:             "Sand / Morrum",
		FieldLoadingFrom:         "Kharagpur",
		FieldDestination:         "Lucknow",
		FieldDistance:            "240",
		FieldGeneratedOn:         "01-02-2026 10:15",
		FieldValidUpto:           "02-02-2026 10:15",
		FieldTravelDuration:      "24 Hours",
		FieldDestinationDistrict: "Lucknow",
		FieldDestinationState:    "Uttar Pradesh",
		FieldPitValue:            "C-104",
		FieldRegistrationNumber:  "UP65DT1234",
		FieldVehicleType:         "14 TYRE TRUCK",
		FieldDriverName:          "Ramesh Kumar",
		FieldDriverMobile:        "9123456780",
	}
}

func testTemplate(t *testing.T) string {
	t.Helper()
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Text(100, 100, "FORM C - TRANSIT PASS")
	// Second page must never appear in rendered output.
	doc.AddPage()
	doc.Text(100, 100, "INSTRUCTIONS")

	path := filepath.Join(t.TempDir(), "template.pdf")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if err := doc.Output(file); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer(testTemplate(t), logging.NewNop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return renderer
}

func TestNewRendererRejectsMissingTemplate(t *testing.T) {
	if _, err := NewRenderer(filepath.Join(t.TempDir(), "absent.pdf"), logging.NewNop()); err == nil {
		t.Fatal("expected error for missing template")
	}
	if _, err := NewRenderer("  ", logging.NewNop()); err == nil {
		t.Fatal("expected error for empty template path")
	}
}

func TestBuildOverlayDeterministic(t *testing.T) {
	renderer := newTestRenderer(t)
	payload, err := qr.Encode("https://portal.example/x?eId=1001")
	if err != nil {
		t.Fatalf("qr.Encode: %v", err)
	}

	first, err := renderer.BuildOverlay(sampleFields(), &payload)
	if err != nil {
		t.Fatalf("BuildOverlay: %v", err)
	}
	second, err := renderer.BuildOverlay(sampleFields(), &payload)
	if err != nil {
		t.Fatalf("BuildOverlay: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical inputs should produce identical overlay bytes")
	}

	changed := sampleFields()
	changed[FieldDriverName] = "Someone Else"
	third, err := renderer.BuildOverlay(changed, &payload)
	if err != nil {
		t.Fatalf("BuildOverlay: %v", err)
	}
	if bytes.Equal(first, third) {
		t.Error("changed field value should change overlay bytes")
	}
}

func TestBuildOverlaySurvivesBadQR(t *testing.T) {
	renderer := newTestRenderer(t)
	overlay, err := renderer.BuildOverlay(sampleFields(), &qr.Payload{URL: "https://x", PNG: nil})
	if err != nil {
		t.Fatalf("QR failure must not fail the overlay: %v", err)
	}
	if len(overlay) == 0 {
		t.Fatal("expected overlay bytes")
	}
}

func TestRenderProducesSinglePage(t *testing.T) {
	renderer := newTestRenderer(t)
	payload, err := qr.Encode("https://portal.example/x?eId=1001")
	if err != nil {
		t.Fatalf("qr.Encode: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "1001.pdf")
	if err := renderer.Render(sampleFields(), &payload, outPath); err != nil {
		t.Fatalf("Render: %v", err)
	}

	pages, err := api.PageCountFile(outPath)
	if err != nil {
		t.Fatalf("PageCountFile: %v", err)
	}
	if pages != 1 {
		t.Errorf("expected exactly one page, got %d", pages)
	}
}

func TestRenderWithoutQR(t *testing.T) {
	renderer := newTestRenderer(t)
	outPath := filepath.Join(t.TempDir(), "1002.pdf")
	if err := renderer.Render(sampleFields(), nil, outPath); err != nil {
		t.Fatalf("Render without QR: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestDigitsOnly(t *testing.T) {
	cases := map[string]string{
		"UP/1001-X": "1001",
		"  2002  ":  "2002",
		"no digits": "",
		"12a34b56":  "123456",
		"३४12":      "12", // non-ASCII digits are dropped
	}
	for input, want := range cases {
		if got := digitsOnly(input); got != want {
			t.Errorf("digitsOnly(%q) = %q, want %q", input, got, want)
		}
	}
}
