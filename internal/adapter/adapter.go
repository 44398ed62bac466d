// Package adapter turns retailer product pages into normalized products.
// Every retailer is one Adapter registered under its SourceID.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/FranksOps/shopscrape/internal/product"
)

// Adapter extracts a normalized product from one retailer's product page.
type Adapter interface {
	Source() product.SourceID
	Extract(ctx context.Context, url string) (*product.Product, error)
}

// Reason classifies why an extraction failed.
type Reason string

const (
	ReasonNavigation Reason = "navigation"
	ReasonContent    Reason = "content"
	ReasonBlocked    Reason = "blocked"
	ReasonParse      Reason = "parse"
)

// ScrapeFailure is returned by adapters for any failed extraction.
type ScrapeFailure struct {
	Source product.SourceID
	URL    string
	Reason Reason
	// Detection names the bot-protection vendor when Reason is ReasonBlocked.
	Detection string
	Err       error
}

func (e *ScrapeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape %s %s failed: %s", e.Source, e.URL, e.Reason)
	}
	return fmt.Sprintf("scrape %s %s failed: %s: %v", e.Source, e.URL, e.Reason, e.Err)
}

func (e *ScrapeFailure) Unwrap() error {
	return e.Err
}

// ErrDuplicateSource is returned when registering a second adapter for a source.
var ErrDuplicateSource = errors.New("adapter: source already registered")

// Registry maps sources to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[product.SourceID]Adapter
	order    []product.SourceID
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[product.SourceID]Adapter)}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter. Adding a retailer is a registration, nothing more.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return errors.New("adapter: nil adapter")
	}
	src := a.Source()
	if src == "" {
		return errors.New("adapter: adapter has empty source")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[src]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src)
	}
	r.adapters[src] = a
	r.order = append(r.order, src)
	return nil
}

// Lookup returns the adapter registered for src.
func (r *Registry) Lookup(src product.SourceID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[src]
	return a, ok
}

// Sources lists registered sources in registration order.
func (r *Registry) Sources() []product.SourceID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]product.SourceID, len(r.order))
	copy(out, r.order)
	return out
}
