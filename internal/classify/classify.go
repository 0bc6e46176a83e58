package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"permitflow/internal/logging"
	"permitflow/internal/progress"
	"permitflow/internal/services"
	"permitflow/internal/session"
)

// markerPhrase in the portal error label means the transit pass exists but no
// storage-license form was generated for it, which is exactly the population
// eligible for certificate generation.
const markerPhrase = "not generated for storage license"

// Eligibility form selectors.
const (
	xpathMasterEntries = `//a[contains(text(), "Master Entries")]`
	xpathEFormCEntry   = `//a[contains(text(), "Apply for eFormC Quantity by Transit Pass Number")]`
	selectorLicensee   = "#ContentPlaceHolder1_ddl_LicenseeID"
	selectorTPWise     = "#ContentPlaceHolder1_RbtWise_0"
	selectorPassInput  = "#ContentPlaceHolder1_txt_eMM11No"
	selectorProceed    = "#ContentPlaceHolder1_btnProceed"
	selectorErrorLabel = "#ContentPlaceHolder1_ErrorLbl"
)

// settleDelay gives the ASP.NET postback time to repaint the error label
// after each proceed click.
const settleDelay = 1500 * time.Millisecond

// Page is the authenticated browser surface the classifier drives.
type Page interface {
	ClickXPath(ctx context.Context, expr string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	SelectIndex(ctx context.Context, selector string, index int) error
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Sleep(ctx context.Context, d time.Duration) error
}

// Result is one identifier's eligibility verdict.
type Result struct {
	Identifier string
	Eligible   bool
	Reason     string
}

// Classifier probes the portal's quantity-application form to decide which
// transit passes are eligible for certificate generation.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier builds a classifier.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{logger: logger.With(logging.String(logging.FieldComponent, "classify"))}
}

// Classify navigates to the eligibility form once, then probes every
// identifier in order. Results preserve input order and skip blank entries.
// A failure probing one identifier marks it not eligible and the batch
// continues; only failures reaching the form itself abort the run.
func (c *Classifier) Classify(ctx context.Context, page Page, ids []string, sink progress.Sink) ([]Result, error) {
	if err := c.openForm(ctx, page); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, services.Wrap(services.ErrTransient, "classify", "probe", "classification canceled", err)
		}

		res := c.probe(ctx, page, id)
		results = append(results, res)

		outcome := progress.OutcomeNotEligible
		if res.Eligible {
			outcome = progress.OutcomeEligible
		}
		progress.Item(sink, session.StateProcessing, id, outcome, res.Reason)
		c.logger.Info("classified transit pass",
			logging.String(logging.FieldIdentifier, id),
			logging.Bool("eligible", res.Eligible),
			logging.String("reason", res.Reason))
	}
	return results, nil
}

// openForm walks the authenticated menu to the quantity-application form and
// fixes licensee and TP-wise mode for the whole batch.
func (c *Classifier) openForm(ctx context.Context, page Page) error {
	if err := page.ClickXPath(ctx, xpathMasterEntries); err != nil {
		return services.Wrap(services.ErrPageUnreachable, "classify", "open-form",
			"master entries menu not clickable", err)
	}
	if err := page.ClickXPath(ctx, xpathEFormCEntry); err != nil {
		return services.Wrap(services.ErrPageUnreachable, "classify", "open-form",
			"quantity application entry not clickable", err)
	}
	if err := page.SelectIndex(ctx, selectorLicensee, 1); err != nil {
		return services.Wrap(services.ErrPageUnreachable, "classify", "open-form",
			"licensee selection failed", err)
	}
	if err := page.Sleep(ctx, settleDelay); err != nil {
		return services.Wrap(services.ErrTransient, "classify", "open-form", "canceled", err)
	}
	if err := page.Click(ctx, selectorTPWise); err != nil {
		return services.Wrap(services.ErrPageUnreachable, "classify", "open-form",
			"transit-pass-wise mode not selectable", err)
	}
	if err := page.Sleep(ctx, settleDelay); err != nil {
		return services.Wrap(services.ErrTransient, "classify", "open-form", "canceled", err)
	}
	return nil
}

// probe submits one identifier and reads the verdict off the error label.
// Every failure path degrades to not-eligible so a flaky element never stalls
// the batch.
func (c *Classifier) probe(ctx context.Context, page Page, id string) Result {
	fail := func(stage string, err error) Result {
		c.logger.Warn("eligibility probe failed",
			logging.String(logging.FieldIdentifier, id),
			logging.String("op", stage),
			logging.Error(err))
		return Result{Identifier: id, Eligible: false, Reason: fmt.Sprintf("probe failed: %s", stage)}
	}

	if err := page.Fill(ctx, selectorPassInput, id); err != nil {
		return fail("fill", err)
	}
	if err := page.Click(ctx, selectorProceed); err != nil {
		return fail("proceed", err)
	}
	if err := page.Sleep(ctx, settleDelay); err != nil {
		return fail("settle", err)
	}

	visible, err := page.Visible(ctx, selectorErrorLabel)
	if err != nil {
		return fail("inspect", err)
	}
	if !visible {
		return Result{Identifier: id, Eligible: false, Reason: "no verdict label shown"}
	}
	text, err := page.Text(ctx, selectorErrorLabel)
	if err != nil {
		return fail("read-label", err)
	}
	if strings.Contains(strings.ToLower(text), markerPhrase) {
		return Result{Identifier: id, Eligible: true, Reason: strings.TrimSpace(text)}
	}
	return Result{Identifier: id, Eligible: false, Reason: strings.TrimSpace(text)}
}
