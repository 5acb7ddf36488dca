package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alex-user-go/soltour/internal/ajax"
)

var (
	// ErrQuoteUnavailable is returned when the external selection capability
	// cannot be used. No navigation may happen in that case.
	ErrQuoteUnavailable = errors.New("handoff: quote selection unavailable")
	// ErrInFlight is returned when a handoff for the same tab has not finished yet.
	ErrInFlight = errors.New("handoff: selection already in progress")
)

// Selector is the external capability that validates a package for quotation.
type Selector interface {
	SelectPackage(ctx context.Context, budgetID, hotelCode, providerCode string) (string, error)
}

// Selection identifies the package handed to the quote flow.
type Selection struct {
	BudgetID     string
	HotelCode    string
	ProviderCode string
}

// Bridge delegates package selection to a Selector, allowing one selection
// per tab at a time.
type Bridge struct {
	selector Selector

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewBridge creates a Bridge. A nil selector makes every selection unavailable.
func NewBridge(selector Selector) *Bridge {
	return &Bridge{
		selector: selector,
		inflight: make(map[string]struct{}),
	}
}

// Available reports whether a selector is configured.
func (b *Bridge) Available() bool {
	return b.selector != nil
}

// acquire marks tab busy until the returned release is called.
func (b *Bridge) acquire(tab string) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, busy := b.inflight[tab]; busy {
		return nil, ErrInFlight
	}
	b.inflight[tab] = struct{}{}

	return func() {
		b.mu.Lock()
		delete(b.inflight, tab)
		b.mu.Unlock()
	}, nil
}

func (b *Bridge) call(ctx context.Context, sel Selection) (string, error) {
	if b.selector == nil {
		return "", ErrQuoteUnavailable
	}
	msg, err := b.selector.SelectPackage(ctx, sel.BudgetID, sel.HotelCode, sel.ProviderCode)
	if err != nil {
		if errors.Is(err, ajax.ErrUnavailable) {
			return "", fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
		}
		return "", fmt.Errorf("select package %s: %w", sel.BudgetID, err)
	}
	return msg, nil
}
