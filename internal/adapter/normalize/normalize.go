// Package normalize holds the field normalization rules shared by every site
// adapter. Retailer-specific selectors produce raw strings; these functions
// turn them into model values the same way for every retailer.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/shopscrape/internal/product"
)

var (
	priceRun     = regexp.MustCompile(`\d[\d.,]*`)
	ratingNumber = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	ratingCount  = regexp.MustCompile(`\(\s*(\d{1,3}(?:[.,]\d{3})+|\d+)\s*\)`)
	idUnsafe     = regexp.MustCompile(`[^A-Za-z0-9-]`)
)

// DefaultPlaceholderMarkers are substrings that identify sentinel images.
var DefaultPlaceholderMarkers = []string{"placeholder"}

// ParsePrice extracts the first run of digits and thousands separators from
// text and parses it as an integer. Text without any digit yields 0.
func ParsePrice(text string) (int64, error) {
	run := priceRun.FindString(text)
	if run == "" {
		return 0, nil
	}
	digits := stripSeparators(run)
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}

// ParseRating reads a decimal average and a parenthesized review count from
// free text such as "4.5 (100)". Either part defaults to 0 when absent. Only
// an integer, optionally with thousands groups, counts as the review count.
func ParseRating(text string) (product.Rating, error) {
	var r product.Rating

	// The parenthesized count must not be mistaken for the average.
	withoutCount := text
	if m := ratingCount.FindStringSubmatchIndex(text); m != nil {
		n, err := strconv.Atoi(stripSeparators(text[m[2]:m[3]]))
		if err != nil {
			return product.Rating{}, fmt.Errorf("parse rating count %q: %w", text, err)
		}
		r.Count = n
		withoutCount = text[:m[0]] + " " + text[m[1]:]
	}

	if avg := ratingNumber.FindString(withoutCount); avg != "" {
		v, err := strconv.ParseFloat(strings.Replace(avg, ",", ".", 1), 64)
		if err != nil {
			return product.Rating{}, fmt.Errorf("parse rating average %q: %w", text, err)
		}
		r.Average = v
	}
	return r, nil
}

// ResolveImages makes every image URL absolute against origin and drops
// empty, inline data and placeholder images. Order is preserved.
func ResolveImages(origin string, images []product.Image, markers []string) []product.Image {
	if markers == nil {
		markers = DefaultPlaceholderMarkers
	}
	base, err := url.Parse(origin)
	if err != nil {
		base = nil
	}

	out := make([]product.Image, 0, len(images))
	for _, img := range images {
		raw := strings.TrimSpace(img.URL)
		if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
			continue
		}
		if isPlaceholder(raw, markers) {
			continue
		}

		resolved := raw
		if u, err := url.Parse(raw); err == nil && base != nil {
			resolved = base.ResolveReference(u).String()
		}
		out = append(out, product.Image{URL: resolved, Alt: strings.TrimSpace(img.Alt)})
	}
	return out
}

// ParseSpecifications keeps only "name: value" shaped lines, splitting on the
// first colon.
func ParseSpecifications(lines []string) []product.Specification {
	out := make([]product.Specification, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, product.Specification{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}

// DeriveID returns the last non-empty path segment of rawURL with every
// character outside [A-Za-z0-9-] removed. When nothing is left it falls back
// to "<source>-<unix millis>".
func DeriveID(source product.SourceID, rawURL string, now time.Time) string {
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(u.Path, "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if segments[i] == "" {
				continue
			}
			if id := idUnsafe.ReplaceAllString(segments[i], ""); id != "" {
				return id
			}
			break
		}
	}
	return fmt.Sprintf("%s-%d", source, now.UnixMilli())
}

// DefaultBrand is the first whitespace-separated token of name.
func DefaultBrand(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripSeparators(s string) string {
	return strings.NewReplacer(".", "", ",", "").Replace(s)
}

func isPlaceholder(raw string, markers []string) bool {
	lower := strings.ToLower(raw)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
