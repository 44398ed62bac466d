// Package bypass recognizes bot-protection challenge pages served in place
// of the requested product page.
package bypass

import (
	"net/http"
	"strings"

	"github.com/FranksOps/shopscrape/internal/browser"
)

// Detection describes which protection vendor challenged a request.
type Detection struct {
	Detected bool
	Source   string // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome"
}

// Detector examines a rendered page to determine if a bot protection
// mechanism blocked or challenged the request.
type Detector func(page *browser.Page) Detection

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the page through detectors and returns the first hit.
func Analyze(page *browser.Page, detectors []Detector) Detection {
	if page == nil {
		return Detection{}
	}
	for _, d := range detectors {
		if det := d(page); det.Detected {
			return det
		}
	}
	return Detection{}
}

// blockedStatus reports whether the status is one challenges are served
// with. Browser sessions do not expose the status, so 0 counts too and the
// body signatures decide.
func blockedStatus(page *browser.Page, codes ...int) bool {
	if page.StatusCode == 0 {
		return true
	}
	for _, c := range codes {
		if page.StatusCode == c {
			return true
		}
	}
	return false
}

func header(page *browser.Page, key string) string {
	if page.Headers == nil {
		return ""
	}
	return page.Headers.Get(key)
}

func bodyContains(page *browser.Page, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(page.HTML, n) {
			return true
		}
	}
	return false
}

func found(src string) Detection {
	return Detection{Detected: true, Source: src}
}

func detectCloudflare(page *browser.Page) Detection {
	if !blockedStatus(page, http.StatusForbidden, http.StatusServiceUnavailable, http.StatusTooManyRequests) {
		return Detection{}
	}
	if page.StatusCode != 0 && strings.Contains(strings.ToLower(header(page, "Server")), "cloudflare") {
		return found("Cloudflare")
	}
	if bodyContains(page,
		"cf-browser-verification",
		"cf-turnstile",
		"Attention Required! | Cloudflare",
		"Just a moment...",
	) {
		return found("Cloudflare")
	}
	return Detection{}
}

func detectAkamai(page *browser.Page) Detection {
	if !blockedStatus(page, http.StatusForbidden) {
		return Detection{}
	}
	if page.StatusCode != 0 && strings.Contains(strings.ToLower(header(page, "Server")), "akamai") {
		return found("Akamai")
	}
	// Akamai's block page is a bare "Access Denied" with a reference number.
	if strings.Contains(page.HTML, "Reference #") && strings.Contains(page.HTML, "Access Denied") {
		return found("Akamai")
	}
	return Detection{}
}

func detectDataDome(page *browser.Page) Detection {
	if !blockedStatus(page, http.StatusForbidden) {
		return Detection{}
	}
	if page.StatusCode != 0 {
		if strings.Contains(strings.ToLower(header(page, "Server")), "datadome") ||
			header(page, "X-DataDome") != "" || header(page, "X-DataDome-Response") != "" {
			return found("DataDome")
		}
	}
	if bodyContains(page, "geo.captcha-delivery.com", "ct.captcha-delivery.com") {
		return found("DataDome")
	}
	return Detection{}
}

func detectPerimeterX(page *browser.Page) Detection {
	if !blockedStatus(page, http.StatusForbidden) {
		return Detection{}
	}
	if page.StatusCode != 0 && header(page, "X-Px-Captcha") != "" {
		return found("PerimeterX")
	}
	if bodyContains(page, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return found("PerimeterX")
	}
	return Detection{}
}
