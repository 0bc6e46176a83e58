package fetch_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"permitflow/internal/config"
	"permitflow/internal/fetch"
)

type fakePage struct {
	labels map[string]string
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	if text, ok := p.labels[selector]; ok {
		return text, nil
	}
	return "", errors.New("no such element")
}

func (p *fakePage) Close() {}

// fakeOpener serves scripted lookup pages keyed by pass number.
type fakeOpener struct {
	pages  map[string]*fakePage
	opened []string
}

func (o *fakeOpener) OpenLookup(ctx context.Context, url string) (fetch.LookupPage, error) {
	id := url[strings.LastIndex(url, "=")+1:]
	o.opened = append(o.opened, id)
	page, ok := o.pages[id]
	if !ok {
		return nil, errors.New("page load failed")
	}
	return page, nil
}

func permitPage(district, address, qty, generated string) *fakePage {
	return &fakePage{labels: map[string]string{
		"#lbl_destination_district": district,
		"#lbl_destination_address":  address,
		"#lbl_qty_to_Transport":     qty,
		"#txt_etp_generated_on":     generated,
	}}
}

func TestPortalFetcherFiltersByDistrict(t *testing.T) {
	opener := &fakeOpener{pages: map[string]*fakePage{
		"1100200": permitPage("Agra", "Kuberpur yard", "18.5", "14-03-2025 09:42"),
		"1100201": permitPage("Mathura", "NH-2 depot", "12", "14-03-2025 10:05"),
		"1100202": permitPage("AGRA", "Sikandra plot", "20", "14-03-2025 11:11"),
	}}
	cfg := config.Default()
	fetcher := fetch.NewPortalFetcher(&cfg, opener, nil)

	var got []fetch.Record
	err := fetcher.Fetch(context.Background(), 1100200, 1100203, "agra", func(rec fetch.Record) error {
		got = append(got, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2 (district filter is case-insensitive)", len(got))
	}
	if got[0].Identifier != "1100200" || got[1].Identifier != "1100202" {
		t.Fatalf("records = %v, %v", got[0].Identifier, got[1].Identifier)
	}
	if got[0].DestinationAddress != "Kuberpur yard" || got[0].Quantity != "18.5" {
		t.Fatalf("record fields not scraped: %+v", got[0])
	}
	if got[0].GeneratedOn.IsZero() {
		t.Fatal("generated-on timestamp not parsed")
	}
	// 1100203 has no page and must be skipped without failing the run.
	if len(opener.opened) != 4 {
		t.Fatalf("opened %d pages, want 4 (every number in the window)", len(opener.opened))
	}
}

func TestPortalFetcherEmptyDistrictMatchesAll(t *testing.T) {
	opener := &fakeOpener{pages: map[string]*fakePage{
		"500": permitPage("Agra", "a", "1", "01-01-2025"),
		"501": permitPage("Jhansi", "b", "2", "01-01-2025"),
	}}
	cfg := config.Default()
	fetcher := fetch.NewPortalFetcher(&cfg, opener, nil)

	count := 0
	err := fetcher.Fetch(context.Background(), 500, 501, "", func(fetch.Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("got %d records, want 2", count)
	}
}

func TestPortalFetcherStopsWhenEmitFails(t *testing.T) {
	opener := &fakeOpener{pages: map[string]*fakePage{
		"700": permitPage("Agra", "a", "1", "01-01-2025"),
		"701": permitPage("Agra", "b", "2", "01-01-2025"),
	}}
	cfg := config.Default()
	fetcher := fetch.NewPortalFetcher(&cfg, opener, nil)

	wantErr := errors.New("sink full")
	err := fetcher.Fetch(context.Background(), 700, 701, "Agra", func(fetch.Record) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want emit error", err)
	}
	if len(opener.opened) != 1 {
		t.Fatalf("opened %d pages after emit failure, want 1", len(opener.opened))
	}
}

func TestPortalFetcherHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opener := &fakeOpener{pages: map[string]*fakePage{}}
	cfg := config.Default()
	fetcher := fetch.NewPortalFetcher(&cfg, opener, nil)

	err := fetcher.Fetch(ctx, 1, 1000, "Agra", func(fetch.Record) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(opener.opened) != 0 {
		t.Fatal("no page may be opened after cancellation")
	}
}
