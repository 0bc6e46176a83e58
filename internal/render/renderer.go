package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"permitflow/internal/logging"
	"permitflow/internal/qr"
	"permitflow/internal/services"
)

// FieldMap carries scraped field values keyed by the layout field constants.
type FieldMap map[string]string

// overlayEpoch is the fixed creation date stamped into every overlay so
// identical field maps produce byte-identical output.
var overlayEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Renderer draws field overlays and merges them onto the certificate template.
type Renderer struct {
	templatePath string
	logger       *slog.Logger
}

// NewRenderer builds a renderer for the given background template.
func NewRenderer(templatePath string, logger *slog.Logger) (*Renderer, error) {
	templatePath = strings.TrimSpace(templatePath)
	if templatePath == "" {
		return nil, services.Wrap(services.ErrConfiguration, "render", "template", "template path not configured", nil)
	}
	if _, err := os.Stat(templatePath); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "template", fmt.Sprintf("template %q not readable", templatePath), err)
	}
	return &Renderer{
		templatePath: templatePath,
		logger:       logging.NewComponentLogger(logger, "render"),
	}, nil
}

// Render draws the field overlay (plus QR, when present), stamps it onto the
// first page of the template, and writes the merged single-page document to
// outPath. A QR failure downgrades to a warning; the document is still
// produced without the code.
func (r *Renderer) Render(fields FieldMap, payload *qr.Payload, outPath string) error {
	overlay, err := r.BuildOverlay(fields, payload)
	if err != nil {
		return err
	}
	return r.merge(overlay, outPath)
}

// BuildOverlay produces the overlay page as PDF bytes. Exposed separately so
// the fixed-coordinate grid can be regression-tested without a template file.
func (r *Renderer) BuildOverlay(fields FieldMap, payload *qr.Payload) ([]byte, error) {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	doc.SetCreationDate(overlayEpoch)
	doc.SetModificationDate(overlayEpoch)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()
	doc.SetFont(fontFamily, fontStyle, fontSize)

	for _, key := range drawOrder {
		slot := layout[key]
		value := strings.TrimSpace(fields[key])
		if value == "" {
			continue
		}
		if slot.digits {
			value = digitsOnly(value)
		}
		if slot.wrapped {
			drawWrapped(doc, slot, value)
			continue
		}
		doc.Text(slot.x, pageHeight-slot.y, value)
	}

	if payload != nil {
		if err := drawQR(doc, payload); err != nil {
			r.logger.Warn("QR drawing failed, producing document without code",
				logging.Error(err),
				logging.String("url", payload.URL),
			)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "overlay", "assemble overlay page", err)
	}
	return buf.Bytes(), nil
}

func drawWrapped(doc *gofpdf.Fpdf, slot fieldSlot, value string) {
	words := strings.Fields(value)
	line := 0
	for start := 0; start < len(words) && line < wrapMaxLines; start += wrapWordsPerLine {
		end := start + wrapWordsPerLine
		if end > len(words) {
			end = len(words)
		}
		y := pageHeight - (slot.y - float64(line)*wrapLineSpacing)
		doc.Text(slot.x, y, strings.Join(words[start:end], " "))
		line++
	}
}

func drawQR(doc *gofpdf.Fpdf, payload *qr.Payload) error {
	if len(payload.PNG) == 0 {
		return fmt.Errorf("empty QR payload")
	}

	x := pageWidth - qrSize - qrMarginRight
	y := qrMarginTop

	// Opaque backing patch first, then the code on top.
	doc.SetFillColor(255, 255, 255)
	doc.Rect(x-qrPadding, y-qrPadding, qrSize+2*qrPadding, qrSize+2*qrPadding, "F")

	options := gofpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("verification-qr", options, bytes.NewReader(payload.PNG))
	if doc.Err() {
		return fmt.Errorf("register QR image: %v", doc.Error())
	}
	doc.ImageOptions("verification-qr", x, y, qrSize, qrSize, false, options, 0, "")
	if doc.Err() {
		return fmt.Errorf("draw QR image: %v", doc.Error())
	}
	return nil
}

func (r *Renderer) merge(overlay []byte, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "create output directory", err)
	}

	workDir, err := os.MkdirTemp(filepath.Dir(outPath), ".render-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	overlayPath := filepath.Join(workDir, "overlay.pdf")
	if err := os.WriteFile(overlayPath, overlay, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "write overlay", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	// The output is always exactly one page: trim the template to its first
	// page, then stamp the overlay on top.
	basePath := filepath.Join(workDir, "base.pdf")
	if err := api.TrimFile(r.templatePath, basePath, []string{"1"}, conf); err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "trim template to first page", err)
	}

	stamp, err := api.PDFWatermark(overlayPath, "rot:0, scalefactor:1 abs, pos:c", true, false, types.POINTS)
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "build overlay stamp", err)
	}
	if err := api.AddWatermarksFile(basePath, outPath, nil, stamp, conf); err != nil {
		return services.Wrap(services.ErrTransient, "render", "merge", "stamp overlay onto template", err)
	}

	if err := api.ValidateFile(outPath, conf); err != nil {
		return services.Wrap(services.ErrValidation, "render", "merge", "validate merged document", err)
	}
	return nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
