package fetch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"permitflow/internal/config"
	"permitflow/internal/logging"
)

// LookupPage is one opened permit-lookup tab.
type LookupPage interface {
	Text(ctx context.Context, selector string) (string, error)
	Close()
}

// PageOpener opens permit-lookup tabs. The browser session satisfies it.
type PageOpener interface {
	OpenLookup(ctx context.Context, url string) (LookupPage, error)
}

// Selectors on the public lookup page carrying the fields a fetched record
// needs. The full field set is only scraped later, during generation.
const (
	selectorDestDistrict = "#lbl_destination_district"
	selectorDestAddress  = "#lbl_destination_address"
	selectorQuantity     = "#lbl_qty_to_Transport"
	selectorGeneratedOn  = "#txt_etp_generated_on"
)

// generatedOnLayouts are the timestamp formats the portal has been seen
// rendering.
var generatedOnLayouts = []string{
	"02-01-2006 15:04",
	"02/01/2006 15:04",
	"02-01-2006",
}

// PortalFetcher walks a numeric pass-number window over the portal's public
// lookup pages and streams every pass whose destination district matches.
// Pass numbers without a published permit are skipped silently; the portal
// simply has no page for them.
type PortalFetcher struct {
	cfg    *config.Config
	opener PageOpener
	logger *slog.Logger
}

// NewPortalFetcher builds the production fetcher on top of a lookup opener.
func NewPortalFetcher(cfg *config.Config, opener PageOpener, logger *slog.Logger) *PortalFetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PortalFetcher{
		cfg:    cfg,
		opener: opener,
		logger: logger.With(logging.String(logging.FieldComponent, "fetch")),
	}
}

// Fetch implements Fetcher.
func (f *PortalFetcher) Fetch(ctx context.Context, start, end int64, district string, emit func(Record) error) error {
	district = strings.TrimSpace(district)
	for number := start; number <= end; number++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := strconv.FormatInt(number, 10)
		rec, ok := f.lookup(ctx, id)
		if !ok {
			continue
		}
		if district != "" && !strings.EqualFold(rec.DestinationDistrict, district) {
			continue
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *PortalFetcher) lookup(ctx context.Context, id string) (Record, bool) {
	page, err := f.opener.OpenLookup(ctx, f.cfg.LookupURL(id))
	if err != nil {
		f.logger.Debug("lookup page unavailable",
			logging.String(logging.FieldIdentifier, id),
			logging.Error(err))
		return Record{}, false
	}
	defer page.Close()

	destDistrict, err := page.Text(ctx, selectorDestDistrict)
	if err != nil {
		f.logger.Debug("no permit published for pass number",
			logging.String(logging.FieldIdentifier, id),
			logging.Error(err))
		return Record{}, false
	}

	rec := Record{
		Identifier:          id,
		DestinationDistrict: strings.TrimSpace(destDistrict),
	}
	if text, textErr := page.Text(ctx, selectorDestAddress); textErr == nil {
		rec.DestinationAddress = strings.TrimSpace(text)
	}
	if text, textErr := page.Text(ctx, selectorQuantity); textErr == nil {
		rec.Quantity = strings.TrimSpace(text)
	}
	if text, textErr := page.Text(ctx, selectorGeneratedOn); textErr == nil {
		rec.GeneratedOn = parseGeneratedOn(text)
	}
	return rec, true
}

func parseGeneratedOn(text string) time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range generatedOnLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts
		}
	}
	return time.Time{}
}
