package obs_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alex-user-go/soltour/internal/obs"
)

func TestMetricsHandler(t *testing.T) {
	m := obs.NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.IncRequests()
	m.IncRequests()
	m.IncFallbackReconstructions()
	m.IncQuoteFailures()

	rec := httptest.NewRecorder()
	m.MetricsHandler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE requests_total counter",
		"requests_total 2\n",
		"fallback_reconstructions_total 1\n",
		"quote_failures_total 1\n",
		"handoffs_total 0\n",
		"rate_limited_total 0\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	obs.HealthHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("got %d %q, want 200 OK", rec.Code, rec.Body.String())
	}
}
