package details

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alex-user-go/soltour/internal/ajax"
	"github.com/alex-user-go/soltour/internal/enrich"
	"github.com/alex-user-go/soltour/internal/obs"
	"github.com/alex-user-go/soltour/internal/selection"
	"github.com/alex-user-go/soltour/internal/snapshot"
	"github.com/alex-user-go/soltour/internal/storage"
	"github.com/alex-user-go/soltour/internal/view"
)

var (
	ErrPackageNotFound = errors.New("details: package not found")
	ErrCorrupted       = errors.New("details: package data corrupted")
	ErrIncomplete      = errors.New("details: package data incomplete")
)

// Source tells where the package shown on the details page came from.
type Source string

const (
	SourceSnapshot  Source = "snapshot"
	SourceSelection Source = "selection"
)

// Store is the tab storage the details page reads from.
type Store interface {
	Read(ctx context.Context, tab, key string, out any) error
}

// Enricher adds descriptive hotel content to a package.
type Enricher interface {
	Enrich(ctx context.Context, req ajax.DetailsRequest) enrich.Enrichment
}

// Page is everything the details page displays.
type Page struct {
	Source     Source            `json:"source"`
	Package    view.Model        `json:"package"`
	Enrichment enrich.Enrichment `json:"enrichment"`
}

// Service implements the details page use case.
type Service struct {
	store    Store
	builder  *view.Builder
	enricher Enricher
	metrics  *obs.Metrics
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(store Store, builder *view.Builder, enricher Enricher, metrics *obs.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		builder:  builder,
		enricher: enricher,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve returns the snapshot the details page renders. The snapshot written
// by the results page wins; without one, budgetID is looked up in the tab's
// selection context.
func (s *Service) Resolve(ctx context.Context, tab, budgetID string) (*snapshot.Raw, error) {
	raw, _, err := s.resolve(ctx, tab, budgetID)
	return raw, err
}

// Load resolves, normalizes and enriches the package for display.
func (s *Service) Load(ctx context.Context, tab, budgetID string) (Page, error) {
	raw, source, err := s.resolve(ctx, tab, budgetID)
	if err != nil {
		return Page{}, err
	}

	pkg, err := snapshot.Normalize(raw)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrIncomplete, err)
	}

	enrichment := s.enricher.Enrich(ctx, ajax.DetailsRequest{
		AvailToken:   raw.AvailToken,
		BudgetID:     string(raw.BudgetID),
		HotelCode:    string(raw.HotelCode),
		ProviderCode: string(raw.ProviderCode),
	})

	return Page{
		Source:     source,
		Package:    s.builder.Build(pkg),
		Enrichment: enrichment,
	}, nil
}

func (s *Service) resolve(ctx context.Context, tab, budgetID string) (*snapshot.Raw, Source, error) {
	var raw snapshot.Raw
	err := s.store.Read(ctx, tab, storage.KeySelectedPackageDetails, &raw)

	var parseErr *storage.ParseError
	switch {
	case err == nil:
		if !raw.Renderable() {
			return nil, "", ErrIncomplete
		}
		return &raw, SourceSnapshot, nil
	case errors.As(err, &parseErr):
		s.metrics.IncSnapshotParseErrors()
		s.logger.Warn("stored package is corrupted", "tab_id", tab, "error", err)
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupted, err)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, "", fmt.Errorf("read package: %w", err)
	}

	if budgetID == "" {
		return nil, "", ErrPackageNotFound
	}
	rebuilt, err := s.reconstruct(ctx, tab, budgetID)
	if err != nil {
		return nil, "", err
	}
	return rebuilt, SourceSelection, nil
}

func (s *Service) reconstruct(ctx context.Context, tab, budgetID string) (*snapshot.Raw, error) {
	var state selection.State
	err := s.store.Read(ctx, tab, storage.KeySearchResults, &state)

	var parseErr *storage.ParseError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrPackageNotFound
	case errors.As(err, &parseErr):
		s.metrics.IncSnapshotParseErrors()
		s.logger.Warn("selection context is corrupted", "tab_id", tab, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	case err != nil:
		return nil, fmt.Errorf("read selection context: %w", err)
	}

	raw, ok := state.Reconstruct(budgetID)
	if !ok {
		return nil, ErrPackageNotFound
	}
	if !raw.Renderable() {
		return nil, ErrIncomplete
	}

	s.metrics.IncFallbackReconstructions()
	s.logger.Info("package reconstructed from selection context", "tab_id", tab, "budget_id", budgetID)
	return raw, nil
}
