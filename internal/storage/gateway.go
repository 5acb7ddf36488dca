package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage keys shared with the results, details and quote pages.
const (
	KeySelectedPackageDetails = "soltour_selected_package_details"
	KeySelectedPackage        = "soltour_selected_package"
	KeySearchResults          = "soltour_search_results"
)

var knownKeys = []string{KeySelectedPackageDetails, KeySelectedPackage, KeySearchResults}

var (
	ErrNotFound    = errors.New("storage: key not found")
	ErrInvalidTab  = errors.New("storage: invalid tab id")
	ErrUnknownKey  = errors.New("storage: unknown key")
	ErrEmptyValue  = errors.New("storage: empty value")
	errGatewayDown = errors.New("storage: gateway closed")
)

// ParseError reports a stored payload that could not be deserialised.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("storage: parse %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Backend persists opaque values per tab and key.
type Backend interface {
	// Get returns ErrNotFound when the key has never been written for tab.
	Get(ctx context.Context, tab, key string) ([]byte, error)
	Put(ctx context.Context, tab, key string, value []byte) error
	DropTab(ctx context.Context, tab string) error
	// Expire drops every tab whose latest write is older than cutoff.
	Expire(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ValidKey reports whether key is one of the storage keys the pages exchange.
func ValidKey(key string) bool {
	return slices.Contains(knownKeys, key)
}

// CanonicalTab returns tab in the lowercase hyphenated form. Braced, urn and
// unhyphenated spellings of the same id map to the same tab.
func CanonicalTab(tab string) (string, error) {
	id, err := uuid.Parse(tab)
	if err != nil {
		return "", ErrInvalidTab
	}
	return id.String(), nil
}

// Gateway provides keyed, tab-scoped access to persisted snapshots.
type Gateway struct {
	backend Backend
	idleTTL time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewGateway wraps backend. A positive idleTTL starts a background janitor
// that drops tabs left idle for longer than idleTTL.
func NewGateway(backend Backend, idleTTL time.Duration, logger *slog.Logger) *Gateway {
	g := &Gateway{
		backend: backend,
		idleTTL: idleTTL,
		logger:  logger,
		done:    make(chan struct{}),
	}
	if idleTTL > 0 {
		g.wg.Go(g.janitor)
	}
	return g
}

// Close stops the janitor and closes the backend.
func (g *Gateway) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		g.wg.Wait()
		err = g.backend.Close()
	})
	return err
}

// ReadRaw returns the stored bytes for key.
func (g *Gateway) ReadRaw(ctx context.Context, tab, key string) ([]byte, error) {
	tab, err := check(tab, key)
	if err != nil {
		return nil, err
	}
	if g.closed() {
		return nil, errGatewayDown
	}
	return g.backend.Get(ctx, tab, key)
}

// Read decodes the value stored under key into out.
func (g *Gateway) Read(ctx context.Context, tab, key string, out any) error {
	data, err := g.ReadRaw(ctx, tab, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Key: key, Err: err}
	}
	return nil
}

// WriteRaw stores data under key, replacing any previous value. The bytes are
// stored as given; malformed payloads surface as ParseError on Read.
func (g *Gateway) WriteRaw(ctx context.Context, tab, key string, data []byte) error {
	tab, err := check(tab, key)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmptyValue
	}
	if g.closed() {
		return errGatewayDown
	}
	return g.backend.Put(ctx, tab, key, data)
}

// Write encodes v as JSON and stores it under key.
func (g *Gateway) Write(ctx context.Context, tab, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return g.WriteRaw(ctx, tab, key, data)
}

// DropTab clears every key of tab.
func (g *Gateway) DropTab(ctx context.Context, tab string) error {
	tab, err := CanonicalTab(tab)
	if err != nil {
		return err
	}
	return g.backend.DropTab(ctx, tab)
}

// Sweep drops tabs idle for longer than the configured TTL.
func (g *Gateway) Sweep(ctx context.Context) (int, error) {
	if g.idleTTL <= 0 {
		return 0, nil
	}
	return g.backend.Expire(ctx, time.Now().Add(-g.idleTTL))
}

func (g *Gateway) closed() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// janitor periodically expires idle tabs.
func (g *Gateway) janitor() {
	ticker := time.NewTicker(sweepInterval(g.idleTTL))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := g.Sweep(ctx)
			cancel()
			if err != nil {
				g.logger.Error("tab sweep failed", "error", err)
				continue
			}
			if n > 0 {
				g.logger.Info("expired idle tabs", "count", n)
			}
		case <-g.done:
			return
		}
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}

// check validates key and returns the canonical tab id.
func check(tab, key string) (string, error) {
	tab, err := CanonicalTab(tab)
	if err != nil {
		return "", err
	}
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return tab, nil
}
