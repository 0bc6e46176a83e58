package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"permitflow/internal/auth"
	"permitflow/internal/browser"
	"permitflow/internal/classify"
	"permitflow/internal/config"
	"permitflow/internal/docgen"
	"permitflow/internal/fetch"
	"permitflow/internal/logging"
	"permitflow/internal/notifications"
	"permitflow/internal/ocr"
	"permitflow/internal/progress"
	"permitflow/internal/render"
	"permitflow/internal/session"
)

// BrowserSession is the per-run browser surface the coordinator hands to the
// stage engines. browser.Session satisfies it through runSession.
type BrowserSession interface {
	auth.Page
	classify.Page
	docgen.Browser
	Close()
}

// AuthEngine drives the portal login.
type AuthEngine interface {
	Login(ctx context.Context, page auth.Page) (auth.Outcome, error)
}

// ClassifyEngine probes eligibility for a batch of pass numbers.
type ClassifyEngine interface {
	Classify(ctx context.Context, page classify.Page, ids []string, sink progress.Sink) ([]classify.Result, error)
}

// GenerateEngine renders certificates for a batch of pass numbers.
type GenerateEngine interface {
	Generate(ctx context.Context, b docgen.Browser, ids []string, outDir string, sink progress.Sink) ([]session.Document, error)
}

// Coordinator owns the per-session pipeline: fetch, eligibility processing,
// and certificate generation. Stages for one session run strictly one at a
// time; independent sessions run in parallel.
type Coordinator struct {
	cfg        *config.Config
	store      *session.Store
	fetcher    fetch.Fetcher
	authEngine AuthEngine
	classifier ClassifyEngine
	generator  GenerateEngine
	notifier   notifications.Service
	logger     *slog.Logger
	newSession func() BrowserSession
}

// NewCoordinator wires the production pipeline around a caller-owned Chrome
// launcher: tesseract-backed CAPTCHA recognition and the pdf template
// renderer. The caller keeps ownership of the launcher's lifetime.
func NewCoordinator(cfg *config.Config, store *session.Store, launcher *browser.Launcher, fetcher fetch.Fetcher, notifier notifications.Service, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	renderer, err := render.NewRenderer(cfg.Render.TemplatePath, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize renderer: %w", err)
	}

	recognizer := ocr.NewEngine(cfg)

	return newCoordinator(cfg, store, fetcher, notifier, logger,
		auth.NewEngine(cfg, recognizer, logger),
		classify.NewClassifier(logger),
		docgen.NewGenerator(cfg, renderer, logger),
		func() BrowserSession { return runSession{launcher.NewSession()} },
	), nil
}

// NewCoordinatorWithDependencies wires a coordinator from explicit stage
// engines and a browser session factory.
func NewCoordinatorWithDependencies(
	cfg *config.Config,
	store *session.Store,
	fetcher fetch.Fetcher,
	notifier notifications.Service,
	logger *slog.Logger,
	authEngine AuthEngine,
	classifier ClassifyEngine,
	generator GenerateEngine,
	newSession func() BrowserSession,
) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return newCoordinator(cfg, store, fetcher, notifier, logger, authEngine, classifier, generator, newSession)
}

func newCoordinator(cfg *config.Config, store *session.Store, fetcher fetch.Fetcher, notifier notifications.Service, logger *slog.Logger, authEngine AuthEngine, classifier ClassifyEngine, generator GenerateEngine, newSession func() BrowserSession) *Coordinator {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Coordinator{
		cfg:        cfg,
		store:      store,
		fetcher:    fetcher,
		authEngine: authEngine,
		classifier: classifier,
		generator:  generator,
		notifier:   notifier,
		logger:     logger.With(logging.String(logging.FieldComponent, "pipeline")),
		newSession: newSession,
	}
}

// runSession adapts browser.Session's concrete tab type to the LookupPage
// interface the document generator consumes.
type runSession struct {
	*browser.Session
}

func (r runSession) OpenLookup(ctx context.Context, url string) (docgen.LookupPage, error) {
	tab, err := r.Session.OpenLookup(ctx, url)
	if err != nil {
		return nil, err
	}
	return tab, nil
}

// Fetch pulls the permit records for the given pass-number window into the
// session's working set, replacing whatever the previous run staged. An empty
// window result completes the stage with a zero record count.
func (c *Coordinator) Fetch(ctx context.Context, userID string, start, end int64, district string, sink progress.Sink) error {
	sess, err := c.store.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	sess.Acquire()
	defer sess.Release()

	runCtx := sess.BeginRun(ctx)
	defer sess.EndRun()

	logger := c.logger.With(logging.String(logging.FieldUser, userID), logging.String(logging.FieldStage, string(session.StateFetching)))
	_ = c.notifier.NotifySessionStarted(runCtx, userID)

	if err := c.store.Clear(runCtx, userID); err != nil {
		return c.failStage(runCtx, sess, session.StateFetching, sink, logger, err)
	}
	if err := c.store.SetWindow(runCtx, userID, district, start, end); err != nil {
		return c.failStage(runCtx, sess, session.StateFetching, sink, logger, err)
	}
	if err := c.store.UpdateState(runCtx, sess, session.StateFetching); err != nil {
		return c.failStage(runCtx, sess, session.StateFetching, sink, logger, err)
	}
	progress.Info(sink, session.StateFetching, fmt.Sprintf("fetching passes %d through %d for %s", start, end, district))

	count := 0
	fetchErr := c.fetcher.Fetch(runCtx, start, end, district, func(rec fetch.Record) error {
		if !rec.Valid() {
			logger.Warn("skipping invalid record", logging.String(logging.FieldIdentifier, rec.Identifier))
			return nil
		}
		if err := c.store.AppendRecord(runCtx, userID, rec); err != nil {
			return err
		}
		count++
		return nil
	})
	if fetchErr != nil {
		return c.failStage(runCtx, sess, session.StateFetching, sink, logger, fetchErr)
	}

	if err := c.store.UpdateState(runCtx, sess, session.StateIdle); err != nil {
		return c.failStage(runCtx, sess, session.StateFetching, sink, logger, err)
	}
	if count == 0 {
		progress.Info(sink, session.StateFetching, "no permit records found in the requested window")
	}
	c.completeStage(sink, progress.Event{Kind: progress.KindStageComplete, Stage: session.StateFetching, RecordCount: count})
	logger.Info("fetch complete", logging.Int("records", count))
	_ = c.notifier.NotifyFetchCompleted(runCtx, userID, count)
	return nil
}

// Process authenticates against the portal and classifies every staged record
// for eligibility. Authentication failure fails the stage before the
// classifier ever runs.
func (c *Coordinator) Process(ctx context.Context, userID string, sink progress.Sink) error {
	sess, ok := c.store.Get(userID)
	if !ok {
		return fmt.Errorf("no session for %s: fetch records first", userID)
	}
	sess.Acquire()
	defer sess.Release()

	runCtx := sess.BeginRun(ctx)
	defer sess.EndRun()

	logger := c.logger.With(logging.String(logging.FieldUser, userID), logging.String(logging.FieldStage, string(session.StateProcessing)))

	records, err := c.store.Records(runCtx, userID)
	if err != nil {
		return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, err)
	}
	if err := c.store.UpdateState(runCtx, sess, session.StateProcessing); err != nil {
		return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, err)
	}

	page := c.newSession()
	defer page.Close()

	progress.Info(sink, session.StateProcessing, "logging in to the portal")
	outcome, err := c.authEngine.Login(runCtx, page)
	if outcome != auth.AuthSucceeded {
		if err == nil {
			err = fmt.Errorf("login ended in state %s", outcome)
		}
		return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, err)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Identifier)
	}

	results, err := c.classifier.Classify(runCtx, page, ids, sink)
	if err != nil {
		return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, err)
	}

	eligible := 0
	for _, res := range results {
		if setErr := c.store.SetEligible(runCtx, userID, res.Identifier, res.Eligible); setErr != nil {
			return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, setErr)
		}
		if res.Eligible {
			eligible++
		}
	}

	if err := c.store.UpdateState(runCtx, sess, session.StateIdle); err != nil {
		return c.failStage(runCtx, sess, session.StateProcessing, sink, logger, err)
	}
	c.completeStage(sink, progress.Event{
		Kind:          progress.KindStageComplete,
		Stage:         session.StateProcessing,
		RecordCount:   len(results),
		EligibleCount: eligible,
	})
	logger.Info("processing complete", logging.Int("eligible", eligible), logging.Int("total", len(results)))
	_ = c.notifier.NotifyProcessingCompleted(runCtx, userID, eligible, len(results))
	return nil
}

// Generate renders a certificate PDF for every eligible pass into the
// session's pdf directory. The lookup pages are public, so no login is
// performed.
func (c *Coordinator) Generate(ctx context.Context, userID string, sink progress.Sink) error {
	sess, ok := c.store.Get(userID)
	if !ok {
		return fmt.Errorf("no session for %s: fetch and process records first", userID)
	}
	sess.Acquire()
	defer sess.Release()

	runCtx := sess.BeginRun(ctx)
	defer sess.EndRun()

	logger := c.logger.With(logging.String(logging.FieldUser, userID), logging.String(logging.FieldStage, string(session.StateGenerating)))
	started := time.Now()

	ids, err := c.store.EligibleIdentifiers(runCtx, userID)
	if err != nil {
		return c.failStage(runCtx, sess, session.StateGenerating, sink, logger, err)
	}
	if err := c.store.UpdateState(runCtx, sess, session.StateGenerating); err != nil {
		return c.failStage(runCtx, sess, session.StateGenerating, sink, logger, err)
	}

	var documents []session.Document
	if len(ids) > 0 {
		page := c.newSession()
		defer page.Close()

		progress.Info(sink, session.StateGenerating, fmt.Sprintf("generating %d certificates", len(ids)))
		documents, err = c.generator.Generate(runCtx, page, ids, sess.PDFDir, sink)
		if err != nil {
			return c.failStage(runCtx, sess, session.StateGenerating, sink, logger, err)
		}
		for _, doc := range documents {
			if addErr := c.store.AddDocument(runCtx, userID, doc); addErr != nil {
				return c.failStage(runCtx, sess, session.StateGenerating, sink, logger, addErr)
			}
		}
	} else {
		progress.Info(sink, session.StateGenerating, "no eligible passes to generate")
	}

	if err := c.store.UpdateState(runCtx, sess, session.StateIdle); err != nil {
		return c.failStage(runCtx, sess, session.StateGenerating, sink, logger, err)
	}
	c.completeStage(sink, progress.Event{
		Kind:      progress.KindStageComplete,
		Stage:     session.StateGenerating,
		Documents: documents,
	})
	logger.Info("generation complete",
		logging.Int("documents", len(documents)),
		logging.Int("requested", len(ids)),
		logging.Duration("elapsed", time.Since(started)))
	_ = c.notifier.NotifyGenerationCompleted(runCtx, userID, len(documents), len(ids), time.Since(started))
	return nil
}

// Cancel aborts the session's in-flight run, if any. The session and its
// working set survive.
func (c *Coordinator) Cancel(userID string) {
	if sess, ok := c.store.Get(userID); ok {
		sess.AbortRun()
		c.logger.Info("run canceled", logging.String(logging.FieldUser, userID))
	}
}

// Exit aborts any in-flight run and tears the session down completely.
// Exiting a session that does not exist is a no-op.
func (c *Coordinator) Exit(ctx context.Context, userID string) error {
	c.Cancel(userID)
	if err := c.store.Destroy(ctx, userID); err != nil {
		return err
	}
	_ = c.notifier.NotifySessionDestroyed(ctx, userID)
	return nil
}

func (c *Coordinator) failStage(ctx context.Context, sess *session.Session, stage session.State, sink progress.Sink, logger *slog.Logger, err error) error {
	logger.Error("stage failed", logging.Error(err))
	if sink != nil {
		sink.Emit(progress.Event{Kind: progress.KindStageFailed, Stage: stage, Err: err})
	}
	_ = c.notifier.NotifyError(ctx, err, string(stage))
	if stateErr := c.store.UpdateState(context.WithoutCancel(ctx), sess, session.StateIdle); stateErr != nil {
		logger.Warn("failed to reset session state", logging.Error(stateErr))
	}
	return err
}

func (c *Coordinator) completeStage(sink progress.Sink, event progress.Event) {
	if sink != nil {
		sink.Emit(event)
	}
}
