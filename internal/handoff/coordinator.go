package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/alex-user-go/soltour/internal/obs"
	"github.com/alex-user-go/soltour/internal/selection"
	"github.com/alex-user-go/soltour/internal/snapshot"
	"github.com/alex-user-go/soltour/internal/storage"
)

// ErrMissingBudgetID is returned when the confirmed package has no budget id.
var ErrMissingBudgetID = errors.New("handoff: package has no budget id")

// quotePath is the page the quote flow continues on.
const quotePath = "/cotacao/"

// Store is the tab storage the coordinator persists to.
type Store interface {
	Read(ctx context.Context, tab, key string, out any) error
	Write(ctx context.Context, tab, key string, v any) error
}

// Handoff is the outcome of a confirmed package.
type Handoff struct {
	BudgetID string `json:"budget_id"`
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

// Coordinator persists the confirmed package for the quote page and merges it
// into the tab's selection context.
type Coordinator struct {
	store   Store
	bridge  *Bridge
	metrics *obs.Metrics
	logger  *slog.Logger
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(store Store, bridge *Bridge, metrics *obs.Metrics, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		bridge:  bridge,
		metrics: metrics,
		logger:  logger,
	}
}

// Confirm hands raw off to the quote flow. Nothing is written when the quote
// capability is unavailable; when it fails after the writes the stored data is
// kept and no redirect is returned.
func (c *Coordinator) Confirm(ctx context.Context, tab string, raw *snapshot.Raw) (Handoff, error) {
	if !raw.Renderable() {
		return Handoff{}, snapshot.ErrNotRenderable
	}
	if raw.BudgetID == "" {
		return Handoff{}, ErrMissingBudgetID
	}

	release, err := c.bridge.acquire(tab)
	if err != nil {
		return Handoff{}, err
	}
	defer release()

	if !c.bridge.Available() {
		c.metrics.IncQuoteFailures()
		return Handoff{}, ErrQuoteUnavailable
	}

	out := raw.ForHandoff()
	if err := c.store.Write(ctx, tab, storage.KeySelectedPackage, out); err != nil {
		return Handoff{}, fmt.Errorf("write selected package: %w", err)
	}
	if err := c.mergeSelection(ctx, tab, raw); err != nil {
		return Handoff{}, err
	}

	msg, err := c.bridge.call(ctx, Selection{
		BudgetID:     string(out.BudgetID),
		HotelCode:    string(out.HotelCode),
		ProviderCode: string(out.ProviderCode),
	})
	if err != nil {
		c.metrics.IncQuoteFailures()
		return Handoff{}, err
	}

	c.metrics.IncHandoffs()
	c.logger.Info("package handed off",
		"tab_id", tab,
		"budget_id", string(out.BudgetID),
		"hotel_code", string(out.HotelCode),
	)

	return Handoff{
		BudgetID: string(out.BudgetID),
		Redirect: RedirectURL(string(out.BudgetID)),
		Message:  msg,
	}, nil
}

// mergeSelection adds raw to the tab's selection context. raw is merged as
// received, before handoff defaults are applied, so the defaults never
// overwrite session values. A stored context is only discarded when nothing
// in it can be recovered.
func (c *Coordinator) mergeSelection(ctx context.Context, tab string, raw *snapshot.Raw) error {
	base := selection.New()
	err := c.store.Read(ctx, tab, storage.KeySearchResults, &base)

	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		base = selection.New()
	case unrecoverable(err):
		c.metrics.IncSnapshotParseErrors()
		c.logger.Warn("discarding corrupt selection context", "tab_id", tab, "error", err)
		base = selection.New()
	default:
		return fmt.Errorf("read selection context: %w", err)
	}

	merged := selection.Merge(base, selection.FromSnapshot(raw))
	if err := c.store.Write(ctx, tab, storage.KeySearchResults, merged); err != nil {
		return fmt.Errorf("write selection context: %w", err)
	}
	return nil
}

// unrecoverable reports whether a stored context is not JSON at all, or is a
// JSON value other than an object.
func unrecoverable(err error) bool {
	var parseErr *storage.ParseError
	if !errors.As(err, &parseErr) {
		return false
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr) && typeErr.Field == ""
}

var uriComponentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// RedirectURL returns the quote page address for budgetID.
func RedirectURL(budgetID string) string {
	return quotePath + "?budget=" + uriComponentUnescape.Replace(url.QueryEscape(budgetID))
}
