package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"permitflow/internal/config"
	"permitflow/internal/logging"
	"permitflow/internal/progress"
	"permitflow/internal/qr"
	"permitflow/internal/render"
	"permitflow/internal/services"
	"permitflow/internal/session"
)

// selectorIdentity is checked before any scraping; its text must contain the
// requested pass number or the page is showing someone else's permit.
const selectorIdentity = "#lbl_etpNo"

// scrapeSelectors maps renderer field keys to the lookup page's label
// elements. Fixed-value fields are filled separately.
var scrapeSelectors = map[string]string{
	render.FieldLesseeName:          "#lbl_name_of_lease",
	render.FieldLesseeMobile:        "#lbl_mobile_no",
	render.FieldLesseeID:            "#lbl_LeaseId",
	render.FieldLeaseDetails:        "#lbl_leaseDetails",
	render.FieldTehsil:              "#lbl_tehsil",
	render.FieldDistrict:            "#lbl_district",
	render.FieldQuantity:            "#lbl_qty_to_Transport",
	render.FieldMineral:             "#lbl_type_of_mining_mineral",
	render.FieldLoadingFrom:         "#lbl_loadingfrom",
	render.FieldDestination:         "#lbl_destination_address",
	render.FieldDestinationDistrict: "#lbl_destination_district",
	render.FieldGeneratedOn:         "#txt_etp_generated_on",
	render.FieldValidUpto:           "#txt_etp_valid_upto",
	render.FieldTravelDuration:      "#lbl_travel_duration",
	render.FieldDistance:            "#lbl_distrance",
	render.FieldPitValue:            "#pit",
	render.FieldRegistrationNumber:  "#lbl_registraton_number_of_vehicle",
	render.FieldDriverName:          "#lbl_name_of_driver",
	render.FieldDriverMobile:        "#lbl_mobile_number_of_driver",
	render.FieldSerialNumber:        "#lbl_SerialNumber",
}

// Values the portal never varies for this licensee population.
const (
	fixedDestinationState = "Uttar Pradesh"
	fixedVehicleType      = "14 TYRE TRUCK"
)

// LookupPage is one opened permit-lookup tab.
type LookupPage interface {
	Text(ctx context.Context, selector string) (string, error)
	Close()
}

// Browser opens lookup tabs off the authenticated browser session.
type Browser interface {
	OpenLookup(ctx context.Context, url string) (LookupPage, error)
}

// Renderer produces the final certificate PDF from scraped fields.
type Renderer interface {
	Render(fields render.FieldMap, payload *qr.Payload, outPath string) error
}

// Generator turns eligible pass numbers into certificate PDFs: it opens the
// public lookup page per pass, verifies identity, scrapes the permit fields,
// and renders them over the certificate template with a verification QR.
type Generator struct {
	cfg      *config.Config
	renderer Renderer
	logger   *slog.Logger
}

// NewGenerator builds a document generator.
func NewGenerator(cfg *config.Config, renderer Renderer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		cfg:      cfg,
		renderer: renderer,
		logger:   logger.With(logging.String(logging.FieldComponent, "docgen")),
	}
}

// Generate produces one PDF per identifier under outDir. Identifiers are
// processed sequentially in order; a failure on one is logged and skipped so
// the rest of the batch completes. An empty input returns an empty slice
// without touching the browser.
func (g *Generator) Generate(ctx context.Context, browser Browser, ids []string, outDir string, sink progress.Sink) ([]session.Document, error) {
	documents := make([]session.Document, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return documents, services.Wrap(services.ErrTransient, "docgen", "generate", "generation canceled", err)
		}

		doc, err := g.generateOne(ctx, browser, id, outDir)
		if err != nil {
			g.logger.Error("certificate generation failed",
				logging.String(logging.FieldIdentifier, id),
				logging.Error(err))
			progress.Item(sink, session.StateGenerating, id, progress.OutcomeError, err.Error())
			continue
		}

		documents = append(documents, doc)
		progress.Item(sink, session.StateGenerating, id, progress.OutcomeGenerated, doc.Path)
		g.logger.Info("certificate generated",
			logging.String(logging.FieldIdentifier, id),
			logging.String("path", doc.Path))
	}
	return documents, nil
}

func (g *Generator) generateOne(ctx context.Context, browser Browser, id, outDir string) (session.Document, error) {
	lookupURL := g.cfg.LookupURL(id)
	page, err := browser.OpenLookup(ctx, lookupURL)
	if err != nil {
		return session.Document{}, fmt.Errorf("open lookup page: %w", err)
	}
	defer page.Close()

	if err := g.verifyIdentity(ctx, page, id); err != nil {
		return session.Document{}, err
	}

	fields, err := g.scrape(ctx, page, id)
	if err != nil {
		return session.Document{}, err
	}

	// A broken QR must not block the certificate; the renderer draws the
	// document without it.
	var payload *qr.Payload
	if encoded, qrErr := qr.Encode(lookupURL); qrErr != nil {
		g.logger.Warn("qr encoding failed, rendering without code",
			logging.String(logging.FieldIdentifier, id),
			logging.Error(qrErr))
	} else {
		payload = &encoded
	}

	outPath := filepath.Join(outDir, id+".pdf")
	if err := g.renderer.Render(fields, payload, outPath); err != nil {
		return session.Document{}, fmt.Errorf("render certificate: %w", err)
	}
	return session.Document{Identifier: id, Path: outPath}, nil
}

// verifyIdentity guards against the portal serving a stale or redirected
// page: the identity label must echo the requested pass number.
func (g *Generator) verifyIdentity(ctx context.Context, page LookupPage, id string) error {
	text, err := page.Text(ctx, selectorIdentity)
	if err != nil {
		return fmt.Errorf("read identity label: %w", err)
	}
	if !strings.Contains(text, id) {
		return services.Wrap(services.ErrIdentifierMismatch, "docgen", "verify",
			fmt.Sprintf("lookup page shows %q, expected %s", strings.TrimSpace(text), id), nil)
	}
	return nil
}

func (g *Generator) scrape(ctx context.Context, page LookupPage, id string) (render.FieldMap, error) {
	fields := render.FieldMap{
		render.FieldPermitNumber:     id,
		render.FieldDestinationState: fixedDestinationState,
		render.FieldVehicleType:      fixedVehicleType,
	}
	for key, selector := range scrapeSelectors {
		text, err := page.Text(ctx, selector)
		if err != nil {
			return nil, fmt.Errorf("scrape %s (%s): %w", key, selector, err)
		}
		fields[key] = strings.TrimSpace(text)
	}
	return fields, nil
}
