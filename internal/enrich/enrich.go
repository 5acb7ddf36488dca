package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alex-user-go/soltour/internal/ajax"
	"github.com/alex-user-go/soltour/internal/enrich/cache"
	"github.com/alex-user-go/soltour/internal/obs"
)

// Display texts used when the backend has nothing better to offer.
const (
	PlaceholderDescription = "Carregando descrição..."
	PlaceholderFacilities  = "Carregando serviços..."
	GenericFacilities      = "Resort 5 estrelas com piscinas, restaurantes, bar, Wi-Fi e entretenimento."
)

// Fetcher retrieves hotel details for a package.
type Fetcher interface {
	PackageDetails(ctx context.Context, req ajax.DetailsRequest) (ajax.Details, error)
}

// Enrichment is the descriptive content shown alongside a package.
type Enrichment struct {
	Available      bool     `json:"available"`
	Description    string   `json:"description"`
	Facilities     []string `json:"facilities,omitempty"`
	FacilitiesText string   `json:"facilities_text"`
}

// Placeholder returns the content shown while details are unknown.
func Placeholder() Enrichment {
	return Enrichment{
		Description:    PlaceholderDescription,
		FacilitiesText: PlaceholderFacilities,
	}
}

// Enricher adds hotel details to a package view. It never fails.
type Enricher struct {
	fetcher Fetcher
	timeout time.Duration
	cache   *cache.Cache[ajax.Details]
	metrics *obs.Metrics
	logger  *slog.Logger
}

// New creates an Enricher caching successful lookups for ttl. A lookup is
// bounded by timeout rather than by the request that started it, since
// concurrent callers for the same package wait on the same lookup.
func New(fetcher Fetcher, ttl, timeout time.Duration, metrics *obs.Metrics, logger *slog.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		timeout: timeout,
		cache:   cache.New[ajax.Details](ttl),
		metrics: metrics,
		logger:  logger,
	}
}

// Close releases the cache.
func (e *Enricher) Close() {
	e.cache.Close()
}

// Enrich looks up details for req. Failures are logged and answered with
// placeholders; they are not cached.
func (e *Enricher) Enrich(ctx context.Context, req ajax.DetailsRequest) Enrichment {
	if e.fetcher == nil {
		return Placeholder()
	}

	key := cache.Key(req.AvailToken, req.BudgetID, req.HotelCode, req.ProviderCode)
	details, hit, err := e.cache.GetOrFetch(ctx, key, func() (ajax.Details, error) {
		fetchCtx, cancel := e.fetchContext(ctx)
		defer cancel()
		return e.fetcher.PackageDetails(fetchCtx, req)
	})
	if err != nil {
		e.metrics.IncEnrichFailures()
		e.logger.Warn("package details enrichment failed",
			"budget_id", req.BudgetID,
			"hotel_code", req.HotelCode,
			"error", err,
		)
		return Placeholder()
	}
	if hit {
		e.metrics.IncEnrichCacheHits()
	}

	return fromDetails(details)
}

// fetchContext detaches the shared lookup from the caller's cancellation while
// keeping its values.
func (e *Enricher) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, e.timeout)
}

func fromDetails(d ajax.Details) Enrichment {
	out := Enrichment{
		Available:      true,
		Description:    d.Description,
		Facilities:     d.Facilities,
		FacilitiesText: GenericFacilities,
	}
	if out.Description == "" {
		out.Description = PlaceholderDescription
	}
	if len(d.Facilities) > 0 {
		out.FacilitiesText = strings.Join(d.Facilities, ", ")
	}
	return out
}
