// Package source classifies product URLs into supported retailers.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/shopscrape/internal/product"
)

var (
	// ErrInvalidURL is returned when the input does not parse as an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnsupportedSource is returned when no registered retailer matches.
	ErrUnsupportedSource = errors.New("unsupported source")
)

// UnsupportedSourceError names the retailers that are supported.
type UnsupportedSourceError struct {
	Input     string
	Supported []product.SourceID
}

func (e *UnsupportedSourceError) Error() string {
	names := make([]string, len(e.Supported))
	for i, s := range e.Supported {
		names[i] = string(s)
	}
	return fmt.Sprintf("unsupported source %q: supported sources are %s", e.Input, strings.Join(names, ", "))
}

func (e *UnsupportedSourceError) Unwrap() error {
	return ErrUnsupportedSource
}

// Pattern maps a hostname substring to a retailer.
type Pattern struct {
	Host   string
	Source product.SourceID
}

// DefaultPatterns is the closed table of supported retailer hostnames.
var DefaultPatterns = []Pattern{
	{Host: "cellphones.com.vn", Source: product.SourceCellphones},
	{Host: "thegioididong.com", Source: product.SourceTheGioiDiDong},
}

// Router classifies URLs by hostname. The zero value is not usable; use NewRouter.
type Router struct {
	patterns []Pattern
}

// NewRouter creates a router over the given patterns. If none are provided,
// DefaultPatterns is used.
func NewRouter(patterns []Pattern) *Router {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	copied := make([]Pattern, len(patterns))
	for i, p := range patterns {
		copied[i] = Pattern{Host: strings.ToLower(p.Host), Source: p.Source}
	}
	return &Router{patterns: copied}
}

// Supported returns the distinct sources known to the router, in table order.
func (r *Router) Supported() []product.SourceID {
	seen := make(map[product.SourceID]struct{}, len(r.patterns))
	var out []product.SourceID
	for _, p := range r.patterns {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		out = append(out, p.Source)
	}
	return out
}

// Classify returns the first retailer whose hostname pattern matches rawURL.
func (r *Router) Classify(rawURL string) (product.SourceID, error) {
	host, err := hostname(rawURL)
	if err != nil {
		return "", err
	}
	for _, p := range r.patterns {
		if strings.Contains(host, p.Host) {
			return p.Source, nil
		}
	}
	return "", &UnsupportedSourceError{Input: host, Supported: r.Supported()}
}

// Valid is the cheap probe used before any rate-limit slot is taken.
func (r *Router) Valid(rawURL string) bool {
	_, err := r.Classify(rawURL)
	return err == nil
}

// Resolve determines the effective source for a request. A supplied hint
// wins when the router knows it; an unknown hint is rejected.
func (r *Router) Resolve(req product.Request) (product.SourceID, error) {
	if req.Source == "" {
		return r.Classify(req.URL)
	}
	for _, s := range r.Supported() {
		if s == req.Source {
			return s, nil
		}
	}
	return "", &UnsupportedSourceError{Input: string(req.Source), Supported: r.Supported()}
}

func hostname(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return host, nil
}
