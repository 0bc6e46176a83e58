package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"permitflow/internal/auth"
	"permitflow/internal/classify"
	"permitflow/internal/config"
	"permitflow/internal/docgen"
	"permitflow/internal/fetch"
	"permitflow/internal/pipeline"
	"permitflow/internal/progress"
	"permitflow/internal/session"
)

type fakeBrowserSession struct {
	closed bool
}

func (f *fakeBrowserSession) Navigate(ctx context.Context, url string) error       { return nil }
func (f *fakeBrowserSession) Reload(ctx context.Context) error                     { return nil }
func (f *fakeBrowserSession) Fill(ctx context.Context, sel, val string) error      { return nil }
func (f *fakeBrowserSession) Click(ctx context.Context, sel string) error          { return nil }
func (f *fakeBrowserSession) ClickXPath(ctx context.Context, expr string) error    { return nil }
func (f *fakeBrowserSession) Visible(ctx context.Context, sel string) (bool, error) {
	return false, nil
}
func (f *fakeBrowserSession) Text(ctx context.Context, sel string) (string, error) { return "", nil }
func (f *fakeBrowserSession) Screenshot(ctx context.Context, sel string) ([]byte, error) {
	return nil, nil
}
func (f *fakeBrowserSession) SelectIndex(ctx context.Context, sel string, idx int) error { return nil }
func (f *fakeBrowserSession) Sleep(ctx context.Context, d time.Duration) error           { return nil }
func (f *fakeBrowserSession) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return nil
}
func (f *fakeBrowserSession) AcceptDialogs() {}
func (f *fakeBrowserSession) OpenLookup(ctx context.Context, url string) (docgen.LookupPage, error) {
	return nil, errors.New("not scripted")
}
func (f *fakeBrowserSession) Close() { f.closed = true }

type fakeAuth struct {
	outcome auth.Outcome
	err     error
	calls   int
}

func (f *fakeAuth) Login(ctx context.Context, page auth.Page) (auth.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeClassifier struct {
	eligible map[string]bool
	calls    int
	gotIDs   []string
}

func (f *fakeClassifier) Classify(ctx context.Context, page classify.Page, ids []string, sink progress.Sink) ([]classify.Result, error) {
	f.calls++
	f.gotIDs = ids
	results := make([]classify.Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, classify.Result{Identifier: id, Eligible: f.eligible[id]})
	}
	return results, nil
}

type fakeGenerator struct {
	failOn map[string]bool
	gotIDs []string
	outDir string
}

func (f *fakeGenerator) Generate(ctx context.Context, b docgen.Browser, ids []string, outDir string, sink progress.Sink) ([]session.Document, error) {
	f.gotIDs = ids
	f.outDir = outDir
	var docs []session.Document
	for _, id := range ids {
		if f.failOn[id] {
			continue
		}
		docs = append(docs, session.Document{Identifier: id, Path: filepath.Join(outDir, id+".pdf")})
	}
	return docs, nil
}

type harness struct {
	coord      *pipeline.Coordinator
	store      *session.Store
	auth       *fakeAuth
	classifier *fakeClassifier
	generator  *fakeGenerator
	sessions   []*fakeBrowserSession
}

func newHarness(t *testing.T, fetcher fetch.Fetcher) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SessionsDir = filepath.Join(root, "sessions")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")

	store, err := session.Open(&cfg, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:      store,
		auth:       &fakeAuth{outcome: auth.AuthSucceeded},
		classifier: &fakeClassifier{eligible: map[string]bool{}},
		generator:  &fakeGenerator{},
	}
	h.coord = pipeline.NewCoordinatorWithDependencies(&cfg, store, fetcher, nil, nil,
		h.auth, h.classifier, h.generator,
		func() pipeline.BrowserSession {
			s := &fakeBrowserSession{}
			h.sessions = append(h.sessions, s)
			return s
		},
	)
	return h
}

func recordFetcher(records ...fetch.Record) fetch.Fetcher {
	return fetch.FetcherFunc(func(ctx context.Context, start, end int64, district string, emit func(fetch.Record) error) error {
		for _, rec := range records {
			if err := emit(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func sampleRecords() []fetch.Record {
	now := time.Now()
	return []fetch.Record{
		{Identifier: "UP4400600", DestinationDistrict: "Etawah", DestinationAddress: "Bypass yard", Quantity: "15", GeneratedOn: now},
		{Identifier: "UP4400601", DestinationDistrict: "Agra", DestinationAddress: "Depot 2", Quantity: "20", GeneratedOn: now},
		{Identifier: "UP4400602", DestinationDistrict: "Agra", DestinationAddress: "Depot 3", Quantity: "10", GeneratedOn: now},
	}
}

func collectSink(events *[]progress.Event) progress.Sink {
	return progress.SinkFunc(func(e progress.Event) { *events = append(*events, e) })
}

func lastEvent(t *testing.T, events []progress.Event) progress.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	return events[len(events)-1]
}

func TestFetchStagesRecords(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()

	var events []progress.Event
	if err := h.coord.Fetch(ctx, "licensee-1", 4400600, 4400602, "Agra", collectSink(&events)); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	final := lastEvent(t, events)
	if final.Kind != progress.KindStageComplete || final.RecordCount != 3 {
		t.Fatalf("final event = %+v, want stage_complete with 3 records", final)
	}
	records, err := h.store.Records(ctx, "licensee-1")
	if err != nil {
		t.Fatalf("Records returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("staged %d records, want 3", len(records))
	}
	sess, _ := h.store.Get("licensee-1")
	if sess.State() != session.StateIdle {
		t.Fatalf("state after fetch = %s, want idle", sess.State())
	}
}

func TestFetchEmptyWindowCompletesWithZero(t *testing.T) {
	h := newHarness(t, recordFetcher())
	var events []progress.Event
	if err := h.coord.Fetch(context.Background(), "licensee-2", 1, 2, "Agra", collectSink(&events)); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	final := lastEvent(t, events)
	if final.Kind != progress.KindStageComplete || final.RecordCount != 0 {
		t.Fatalf("final event = %+v, want stage_complete with 0 records", final)
	}
}

func TestFetchReplacesPreviousWorkingSet(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()

	if err := h.coord.Fetch(ctx, "licensee-3", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("first Fetch returned error: %v", err)
	}
	if err := h.coord.Fetch(ctx, "licensee-3", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("second Fetch returned error: %v", err)
	}
	records, err := h.store.Records(ctx, "licensee-3")
	if err != nil {
		t.Fatalf("Records returned error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("staged %d records after refetch, want 3 (working set must be replaced)", len(records))
	}
}

func TestProcessClassifiesAndStoresEligibility(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()
	if err := h.coord.Fetch(ctx, "licensee-4", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	h.classifier.eligible = map[string]bool{"UP4400600": true, "UP4400602": true}
	var events []progress.Event
	if err := h.coord.Process(ctx, "licensee-4", collectSink(&events)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	final := lastEvent(t, events)
	if final.Kind != progress.KindStageComplete || final.EligibleCount != 2 || final.RecordCount != 3 {
		t.Fatalf("final event = %+v, want stage_complete 2/3", final)
	}
	eligible, err := h.store.EligibleIdentifiers(ctx, "licensee-4")
	if err != nil {
		t.Fatalf("EligibleIdentifiers returned error: %v", err)
	}
	if len(eligible) != 2 || eligible[0] != "UP4400600" || eligible[1] != "UP4400602" {
		t.Fatalf("eligible = %v", eligible)
	}
	if len(h.sessions) != 1 || !h.sessions[0].closed {
		t.Fatal("browser session must be opened once and closed")
	}
}

func TestProcessAuthFailureSkipsClassifier(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()
	if err := h.coord.Fetch(ctx, "licensee-5", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	h.auth.outcome = auth.AuthExhausted
	h.auth.err = errors.New("portal rejected 5 login attempts")

	var events []progress.Event
	err := h.coord.Process(ctx, "licensee-5", collectSink(&events))
	if err == nil {
		t.Fatal("expected Process to fail when login fails")
	}
	if h.classifier.calls != 0 {
		t.Fatal("classifier must not run after failed login")
	}
	final := lastEvent(t, events)
	if final.Kind != progress.KindStageFailed {
		t.Fatalf("final event = %+v, want stage_failed", final)
	}
	if len(h.sessions) != 1 || !h.sessions[0].closed {
		t.Fatal("browser session must be closed after failed login")
	}
	sess, _ := h.store.Get("licensee-5")
	if sess.State() != session.StateIdle {
		t.Fatalf("state after failed stage = %s, want idle", sess.State())
	}
}

func TestGenerateRendersEligiblePasses(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()
	if err := h.coord.Fetch(ctx, "licensee-6", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	h.classifier.eligible = map[string]bool{"UP4400601": true}
	if err := h.coord.Process(ctx, "licensee-6", nil); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var events []progress.Event
	if err := h.coord.Generate(ctx, "licensee-6", collectSink(&events)); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	final := lastEvent(t, events)
	if final.Kind != progress.KindStageComplete || len(final.Documents) != 1 {
		t.Fatalf("final event = %+v, want stage_complete with 1 document", final)
	}
	sess, _ := h.store.Get("licensee-6")
	if h.generator.outDir != sess.PDFDir {
		t.Fatalf("generator outDir = %s, want session pdf dir %s", h.generator.outDir, sess.PDFDir)
	}
	docs, err := h.store.Documents(ctx, "licensee-6")
	if err != nil {
		t.Fatalf("Documents returned error: %v", err)
	}
	if len(docs) != 1 || docs[0].Identifier != "UP4400601" {
		t.Fatalf("stored documents = %+v", docs)
	}
}

func TestGenerateWithoutEligiblePassesOpensNoBrowser(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()
	if err := h.coord.Fetch(ctx, "licensee-7", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	var events []progress.Event
	if err := h.coord.Generate(ctx, "licensee-7", collectSink(&events)); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(h.sessions) != 0 {
		t.Fatal("no browser session may be opened with zero eligible passes")
	}
	final := lastEvent(t, events)
	if final.Kind != progress.KindStageComplete || len(final.Documents) != 0 {
		t.Fatalf("final event = %+v, want empty stage_complete", final)
	}
}

func TestProcessWithoutSessionFails(t *testing.T) {
	h := newHarness(t, recordFetcher())
	if err := h.coord.Process(context.Background(), "nobody", nil); err == nil {
		t.Fatal("expected error processing an unknown session")
	}
}

func TestCancelAbortsInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	blocking := fetch.FetcherFunc(func(ctx context.Context, start, end int64, district string, emit func(fetch.Record) error) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	h := newHarness(t, blocking)

	done := make(chan error, 1)
	go func() {
		done <- h.coord.Fetch(context.Background(), "licensee-8", 1, 100, "Agra", nil)
	}()

	<-started
	h.coord.Cancel("licensee-8")

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected canceled fetch to return an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("canceled fetch did not return")
	}
}

func TestExitDestroysSessionAndIsRepeatable(t *testing.T) {
	h := newHarness(t, recordFetcher(sampleRecords()...))
	ctx := context.Background()
	if err := h.coord.Fetch(ctx, "licensee-9", 1, 3, "Agra", nil); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if err := h.coord.Exit(ctx, "licensee-9"); err != nil {
		t.Fatalf("Exit returned error: %v", err)
	}
	if _, ok := h.store.Get("licensee-9"); ok {
		t.Fatal("session still registered after Exit")
	}
	if err := h.coord.Exit(ctx, "licensee-9"); err != nil {
		t.Fatalf("repeated Exit returned error: %v", err)
	}
}
