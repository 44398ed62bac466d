// Package journal records the outcome of every scrape attempt. It keeps the
// attempt metadata only; scraped product data is returned to the caller and
// never stored here.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry represents the outcome of a single scrape attempt.
type Entry struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Source       string        `json:"source,omitempty"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	ErrorType    string        `json:"error_type,omitempty"` // e.g. "navigation", "blocked", "invalid_url"
	ProductID    string        `json:"product_id,omitempty"`
	Duration     time.Duration `json:"duration"`
	DetectedBot  bool          `json:"detected_bot"`
	DetectionSrc string        `json:"detection_src,omitempty"` // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome"
	CreatedAt    time.Time     `json:"created_at"`
}

// NewEntry returns an entry with a fresh ID for url.
func NewEntry(url string, createdAt time.Time) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		URL:       url,
		CreatedAt: createdAt,
	}
}

// Filter allows querying for specific entries.
type Filter struct {
	URL         string
	Source      string
	Success     *bool
	DetectedBot *bool
	Since       *time.Time
	Limit       int
	Offset      int
}

// Match reports whether e satisfies every set field of f. Limit and Offset
// are not considered.
func (f Filter) Match(e *Entry) bool {
	if f.URL != "" && e.URL != f.URL {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	if f.DetectedBot != nil && e.DetectedBot != *f.DetectedBot {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying journal entries.
// Query returns entries newest first.
type Backend interface {
	Save(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter Filter) ([]*Entry, error)
	Close() error
}
