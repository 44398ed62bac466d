package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/shopscrape/internal/adapter/normalize"
	"github.com/FranksOps/shopscrape/internal/browser"
	"github.com/FranksOps/shopscrape/internal/bypass"
	"github.com/FranksOps/shopscrape/internal/metrics"
	"github.com/FranksOps/shopscrape/internal/product"
	"github.com/FranksOps/shopscrape/pkg/useragent"
)

// Rules describe where a retailer keeps each product field on its pages.
// Selector fields are CSS selectors; empty optional selectors are skipped.
type Rules struct {
	Source product.SourceID
	// Origin resolves relative image URLs.
	Origin      string
	ReadyMarker string

	Name          string
	Brand         string
	Price         string
	OriginalPrice string
	Currency      string
	Description   string

	Images     string
	ImageAttrs []string // tried in order, first non-empty wins

	// SpecRows selects one element per specification. With SpecName and
	// SpecValue set, each row yields "name: value"; otherwise the row text
	// must already read that way.
	SpecRows  string
	SpecName  string
	SpecValue string

	Rating      string
	RatingCount string

	Availability   string
	OutOfStock     []string
	OutOfStockText []string

	PlaceholderMarkers []string
}

// Config holds the knobs shared by all page adapters.
type Config struct {
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	SettleDelay       time.Duration
}

// PageAdapter is an Adapter driven by a Rules value.
type PageAdapter struct {
	rules     Rules
	cfg       Config
	launcher  browser.Launcher
	agents    *useragent.Pool
	detectors []bypass.Detector
	logger    *slog.Logger
	now       func() time.Time
}

// NewPageAdapter creates an adapter for one retailer. A nil agents pool
// falls back to the default user agents.
func NewPageAdapter(rules Rules, cfg Config, launcher browser.Launcher, agents *useragent.Pool, logger *slog.Logger) *PageAdapter {
	if agents == nil {
		agents = useragent.NewPool(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageAdapter{
		rules:     rules,
		cfg:       cfg,
		launcher:  launcher,
		agents:    agents,
		detectors: bypass.DefaultDetectors(),
		logger:    logger,
		now:       time.Now,
	}
}

// NewRegistryFromRules builds a registry with one PageAdapter per rule set.
func NewRegistryFromRules(rules []Rules, cfg Config, launcher browser.Launcher, agents *useragent.Pool, logger *slog.Logger) (*Registry, error) {
	adapters := make([]Adapter, 0, len(rules))
	for _, r := range rules {
		adapters = append(adapters, NewPageAdapter(r, cfg, launcher, agents, logger))
	}
	return NewRegistry(adapters...)
}

func (a *PageAdapter) Source() product.SourceID {
	return a.rules.Source
}

// Extract renders url in a fresh session and parses the product from it.
func (a *PageAdapter) Extract(ctx context.Context, url string) (*product.Product, error) {
	ua := a.agents.Next()
	session, err := a.launcher.Launch(ctx, browser.Options{
		UserAgent:         ua,
		NavigationTimeout: a.cfg.NavigationTimeout,
		ContentTimeout:    a.cfg.ContentTimeout,
		SettleDelay:       a.cfg.SettleDelay,
	})
	if err != nil {
		return nil, a.fail(url, ReasonNavigation, fmt.Errorf("launch session: %w", err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Warn("closing browser session", "source", a.rules.Source, "err", cerr)
		}
	}()

	page, err := session.Render(ctx, url, a.rules.ReadyMarker)
	if det := bypass.Analyze(page, a.detectors); det.Detected {
		a.logger.Warn("bot protection detected", "source", a.rules.Source, "url", url, "vendor", det.Source)
		failure := a.fail(url, ReasonBlocked, fmt.Errorf("challenged by %s", det.Source))
		failure.Detection = det.Source
		return nil, failure
	}
	if err != nil {
		return nil, a.fail(url, renderReason(err), err)
	}
	metrics.RecordPageBytes(string(a.rules.Source), len(page.HTML))

	p, err := Parse(a.rules, url, page.HTML, a.now())
	if err != nil {
		var failure *ScrapeFailure
		if errors.As(err, &failure) {
			return nil, failure
		}
		return nil, a.fail(url, ReasonParse, err)
	}
	a.logger.Debug("product extracted", "source", a.rules.Source, "url", url, "id", p.ID, "duration", page.Duration)
	return p, nil
}

func (a *PageAdapter) fail(url string, reason Reason, err error) *ScrapeFailure {
	return &ScrapeFailure{Source: a.rules.Source, URL: url, Reason: reason, Err: err}
}

func renderReason(err error) Reason {
	switch {
	case errors.Is(err, browser.ErrContentTimeout), errors.Is(err, browser.ErrMarkerNotFound):
		return ReasonContent
	default:
		return ReasonNavigation
	}
}

// ErrMissingName is returned when the page has no product name.
var ErrMissingName = errors.New("product name not found")

// Parse builds a product from rendered HTML using rules.
func Parse(rules Rules, url, html string, now time.Time) (*product.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	name := firstText(doc, rules.Name)
	if name == "" {
		return nil, &ScrapeFailure{Source: rules.Source, URL: url, Reason: ReasonContent, Err: ErrMissingName}
	}

	brand := firstText(doc, rules.Brand)
	if brand == "" {
		brand = normalize.DefaultBrand(name)
	}

	current, err := normalize.ParsePrice(firstText(doc, rules.Price))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	price := product.Price{Current: current, Currency: rules.Currency}
	if text := firstText(doc, rules.OriginalPrice); text != "" {
		orig, err := normalize.ParsePrice(text)
		if err != nil {
			return nil, fmt.Errorf("original price: %w", err)
		}
		if orig > 0 && orig != current {
			price.Original = &orig
		}
	}

	rating, err := normalize.ParseRating(firstText(doc, rules.Rating))
	if err != nil {
		return nil, fmt.Errorf("rating: %w", err)
	}
	if rating.Count == 0 {
		if text := firstText(doc, rules.RatingCount); text != "" {
			n, err := normalize.ParsePrice(text)
			if err != nil {
				return nil, fmt.Errorf("rating count: %w", err)
			}
			rating.Count = int(n)
		}
	}

	markers := rules.PlaceholderMarkers
	if len(markers) == 0 {
		markers = normalize.DefaultPlaceholderMarkers
	}

	return &product.Product{
		ID:             normalize.DeriveID(rules.Source, url, now),
		Name:           name,
		Brand:          brand,
		Price:          price,
		Description:    firstText(doc, rules.Description),
		Images:         normalize.ResolveImages(rules.Origin, images(doc, rules), markers),
		Specifications: normalize.ParseSpecifications(specLines(doc, rules)),
		Rating:         rating,
		Availability:   available(doc, rules),
		URL:            url,
		Source:         rules.Source,
		ScrapedAt:      now,
	}, nil
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return normalize.CleanText(doc.Find(selector).First().Text())
}

func images(doc *goquery.Document, rules Rules) []product.Image {
	if rules.Images == "" {
		return nil
	}
	attrs := rules.ImageAttrs
	if len(attrs) == 0 {
		attrs = []string{"src"}
	}
	var out []product.Image
	doc.Find(rules.Images).Each(func(_ int, s *goquery.Selection) {
		var src string
		for _, attr := range attrs {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				src = v
				break
			}
		}
		out = append(out, product.Image{URL: src, Alt: normalize.CleanText(s.AttrOr("alt", ""))})
	})
	return out
}

func specLines(doc *goquery.Document, rules Rules) []string {
	if rules.SpecRows == "" {
		return nil
	}
	var lines []string
	doc.Find(rules.SpecRows).Each(func(_ int, s *goquery.Selection) {
		if rules.SpecName == "" || rules.SpecValue == "" {
			lines = append(lines, normalize.CleanText(s.Text()))
			return
		}
		name := strings.TrimSuffix(normalize.CleanText(s.Find(rules.SpecName).First().Text()), ":")
		value := normalize.CleanText(s.Find(rules.SpecValue).First().Text())
		lines = append(lines, name+": "+value)
	})
	return lines
}

func available(doc *goquery.Document, rules Rules) bool {
	for _, sel := range rules.OutOfStock {
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	status := strings.ToLower(firstText(doc, rules.Availability))
	if status == "" {
		return true
	}
	for _, phrase := range rules.OutOfStockText {
		if strings.Contains(status, strings.ToLower(phrase)) {
			return false
		}
	}
	return true
}
