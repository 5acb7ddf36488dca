package obs

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks application metrics using atomic counters.
type Metrics struct {
	requests                atomic.Int64
	snapshotParseErrors     atomic.Int64
	fallbackReconstructions atomic.Int64
	enrichFailures          atomic.Int64
	enrichCacheHits         atomic.Int64
	handoffs                atomic.Int64
	quoteFailures           atomic.Int64
	rateLimited             atomic.Int64
	logger                  *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requests.Add(1)
}

// IncSnapshotParseErrors counts stored snapshots that could not be decoded.
func (m *Metrics) IncSnapshotParseErrors() {
	m.snapshotParseErrors.Add(1)
}

// IncFallbackReconstructions counts snapshots rebuilt from the selection context.
func (m *Metrics) IncFallbackReconstructions() {
	m.fallbackReconstructions.Add(1)
}

// IncEnrichFailures increments the enrichment failures counter.
func (m *Metrics) IncEnrichFailures() {
	m.enrichFailures.Add(1)
}

// IncEnrichCacheHits increments the enrichment cache hits counter.
func (m *Metrics) IncEnrichCacheHits() {
	m.enrichCacheHits.Add(1)
}

// IncHandoffs counts completed handoffs.
func (m *Metrics) IncHandoffs() {
	m.handoffs.Add(1)
}

// IncQuoteFailures counts handoffs the quote capability refused or could not serve.
func (m *Metrics) IncQuoteFailures() {
	m.quoteFailures.Add(1)
}

// IncRateLimited counts rejected requests.
func (m *Metrics) IncRateLimited() {
	m.rateLimited.Add(1)
}

// Snapshot returns current metric values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:                m.requests.Load(),
		SnapshotParseErrors:     m.snapshotParseErrors.Load(),
		FallbackReconstructions: m.fallbackReconstructions.Load(),
		EnrichFailures:          m.enrichFailures.Load(),
		EnrichCacheHits:         m.enrichCacheHits.Load(),
		Handoffs:                m.handoffs.Load(),
		QuoteFailures:           m.quoteFailures.Load(),
		RateLimited:             m.rateLimited.Load(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	Requests                int64
	SnapshotParseErrors     int64
	FallbackReconstructions int64
	EnrichFailures          int64
	EnrichCacheHits         int64
	Handoffs                int64
	QuoteFailures           int64
	RateLimited             int64
}

type counter struct {
	name  string
	help  string
	value int64
}

func (s MetricsSnapshot) counters() []counter {
	return []counter{
		{"requests_total", "Total number of requests", s.Requests},
		{"snapshot_parse_errors_total", "Total number of stored snapshots that failed to parse", s.SnapshotParseErrors},
		{"fallback_reconstructions_total", "Total number of snapshots reconstructed from the selection context", s.FallbackReconstructions},
		{"enrich_failures_total", "Total number of failed detail enrichments", s.EnrichFailures},
		{"enrich_cache_hits_total", "Total number of enrichment cache hits", s.EnrichCacheHits},
		{"handoffs_total", "Total number of completed quote handoffs", s.Handoffs},
		{"quote_failures_total", "Total number of failed quote selections", s.QuoteFailures},
		{"rate_limited_total", "Total number of rate limited requests", s.RateLimited},
	}
}

// HealthHandler returns a handler for /healthz requests.
func HealthHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health response", "error", err)
		}
	}
}

// MetricsHandler returns a handler for /metrics requests in Prometheus format.
func (m *Metrics) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := m.Snapshot()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)

		for _, c := range snapshot.counters() {
			if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.value); err != nil {
				m.logger.Error("failed to write metrics", "error", err)
				return
			}
		}
	}
}
