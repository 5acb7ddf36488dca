package enrich_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alex-user-go/soltour/internal/ajax"
	"github.com/alex-user-go/soltour/internal/enrich"
	"github.com/alex-user-go/soltour/internal/obs"
)

type mockFetcher struct {
	calls   atomic.Int32
	details ajax.Details
	err     error
}

func (m *mockFetcher) PackageDetails(ctx context.Context, req ajax.DetailsRequest) (ajax.Details, error) {
	m.calls.Add(1)
	return m.details, m.err
}

func newEnricher(t *testing.T, f enrich.Fetcher) (*enrich.Enricher, *obs.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := obs.NewMetrics(logger)
	e := enrich.New(f, time.Minute, time.Second, metrics, logger)
	t.Cleanup(e.Close)
	return e, metrics
}

var req = ajax.DetailsRequest{AvailToken: "tok", BudgetID: "B1", HotelCode: "H1", ProviderCode: "P1"}

func TestEnrich(t *testing.T) {
	tests := []struct {
		name           string
		details        ajax.Details
		err            error
		wantAvailable  bool
		wantDesc       string
		wantFacilities string
	}{
		{
			name:           "description and facilities",
			details:        ajax.Details{Description: "Beachfront", Facilities: []string{"Pool", "Spa"}},
			wantAvailable:  true,
			wantDesc:       "Beachfront",
			wantFacilities: "Pool, Spa",
		},
		{
			name:           "no facilities uses generic sentence",
			details:        ajax.Details{Description: "Beachfront"},
			wantAvailable:  true,
			wantDesc:       "Beachfront",
			wantFacilities: enrich.GenericFacilities,
		},
		{
			name:           "no description keeps placeholder",
			details:        ajax.Details{},
			wantAvailable:  true,
			wantDesc:       enrich.PlaceholderDescription,
			wantFacilities: enrich.GenericFacilities,
		},
		{
			name:           "backend failure",
			err:            ajax.ErrUnavailable,
			wantDesc:       enrich.PlaceholderDescription,
			wantFacilities: enrich.PlaceholderFacilities,
		},
		{
			name:           "backend rejection",
			err:            &ajax.RejectedError{Action: ajax.ActionPackageDetails},
			wantDesc:       enrich.PlaceholderDescription,
			wantFacilities: enrich.PlaceholderFacilities,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEnricher(t, &mockFetcher{details: tt.details, err: tt.err})

			got := e.Enrich(context.Background(), req)

			if got.Available != tt.wantAvailable {
				t.Errorf("Available = %v, want %v", got.Available, tt.wantAvailable)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.FacilitiesText != tt.wantFacilities {
				t.Errorf("FacilitiesText = %q, want %q", got.FacilitiesText, tt.wantFacilities)
			}
		})
	}
}

func TestEnrich_CachesSuccess(t *testing.T) {
	f := &mockFetcher{details: ajax.Details{Description: "x"}}
	e, metrics := newEnricher(t, f)

	e.Enrich(context.Background(), req)
	e.Enrich(context.Background(), req)

	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
	if hits := metrics.Snapshot().EnrichCacheHits; hits != 1 {
		t.Errorf("EnrichCacheHits = %d, want 1", hits)
	}

	other := req
	other.BudgetID = "B2"
	e.Enrich(context.Background(), other)
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetcher called %d times for a different package, want 2", n)
	}
}

func TestEnrich_FailureNotCached(t *testing.T) {
	f := &mockFetcher{err: errors.New("timeout")}
	e, metrics := newEnricher(t, f)

	e.Enrich(context.Background(), req)
	e.Enrich(context.Background(), req)

	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}
	if failures := metrics.Snapshot().EnrichFailures; failures != 2 {
		t.Errorf("EnrichFailures = %d, want 2", failures)
	}
}

func TestEnrich_NoFetcher(t *testing.T) {
	e, _ := newEnricher(t, nil)
	if got := e.Enrich(context.Background(), req); got.Available {
		t.Error("expected placeholders without a fetcher")
	}
}

// blockingFetcher holds every lookup until release is closed or its context ends.
type blockingFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) PackageDetails(ctx context.Context, req ajax.DetailsRequest) (ajax.Details, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return ajax.Details{Description: "Beachfront"}, nil
	case <-ctx.Done():
		return ajax.Details{}, ctx.Err()
	}
}

func TestEnrich_SharedLookupOutlivesFirstCaller(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	e, _ := newEnricher(t, f)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan enrich.Enrichment, 1)
	go func() { first <- e.Enrich(firstCtx, req) }()
	<-f.started

	second := make(chan enrich.Enrichment, 1)
	go func() { second <- e.Enrich(context.Background(), req) }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(f.release)

	got := <-second
	if !got.Available || got.Description != "Beachfront" {
		t.Errorf("second caller got %+v, want fetched details", got)
	}
	<-first
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestEnrich_LookupTimeout(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	defer close(f.release)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := enrich.New(f, time.Minute, 20*time.Millisecond, obs.NewMetrics(logger), logger)
	defer e.Close()

	if got := e.Enrich(context.Background(), req); got.Available {
		t.Error("expected placeholders after the lookup timed out")
	}
}
