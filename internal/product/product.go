// Package product defines the retailer-independent product model that every
// site adapter produces, and the result union returned to callers.
package product

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceID identifies a supported retailer.
type SourceID string

const (
	SourceCellphones    SourceID = "cellphones"
	SourceTheGioiDiDong SourceID = "thegioididong"
)

// Sources returns every supported retailer in registration order.
func Sources() []SourceID {
	return []SourceID{SourceCellphones, SourceTheGioiDiDong}
}

// Valid reports whether s is one of the supported retailers.
func (s SourceID) Valid() bool {
	for _, known := range Sources() {
		if s == known {
			return true
		}
	}
	return false
}

func (s SourceID) String() string {
	return string(s)
}

// Request asks for a single product page to be scraped. Source is an optional
// hint; when empty it is derived from URL.
type Request struct {
	URL    string   `json:"url"`
	Source SourceID `json:"source,omitempty"`
}

// Price is expressed in the unit the retailer publishes. No conversion is done.
type Price struct {
	Current  int64  `json:"current"`
	Currency string `json:"currency"`
	Original *int64 `json:"original,omitempty"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Specification struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Rating is zero-valued when the page carries no rating.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Product is the normalized output of a site adapter.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand"`
	Price          Price           `json:"price"`
	Description    string          `json:"description"`
	Images         []Image         `json:"images"`
	Specifications []Specification `json:"specifications"`
	Rating         Rating          `json:"rating"`
	Availability   bool            `json:"availability"`
	URL            string          `json:"url"`
	Source         SourceID        `json:"source"`
	ScrapedAt      time.Time       `json:"scrapedAt"`
}

// Validate checks the invariants every successfully scraped product holds.
func (p *Product) Validate() error {
	if p == nil {
		return errors.New("product is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("product missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product %s missing name", p.ID)
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("product %s missing url", p.ID)
	}
	if p.Price.Current < 0 {
		return fmt.Errorf("product %s has negative price %d", p.ID, p.Price.Current)
	}
	return nil
}

// Result is either a success carrying Data or a failure carrying Error.
// Build it with Succeeded or Failed so the two shapes never mix.
type Result struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func Succeeded(p *Product, message string) Result {
	return Result{Success: true, Data: p, Message: message}
}

func Failed(msg string) Result {
	return Result{Success: false, Error: msg}
}
