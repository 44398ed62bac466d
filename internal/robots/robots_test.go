package robots

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

const robotsBody = `
User-agent: *
Disallow: /cart/
Disallow: /*?sort=
Allow: /cart/public/

User-agent: BadBot
Disallow: /
`

func newTestAuditor(t *testing.T, transport *httpmock.MockTransport) *Auditor {
	t.Helper()
	a, err := NewAuditor(Config{Transport: transport}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestAuditor_IsAllowed(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://cellphones.com.vn/robots.txt", httpmock.NewStringResponder(200, robotsBody))

	auditor := newTestAuditor(t, transport)
	ctx := context.Background()

	tests := []struct {
		url   string
		agent string
		want  bool
	}{
		{"https://cellphones.com.vn/iphone-15.html", "GoodBot", true},
		{"https://cellphones.com.vn/cart/checkout", "GoodBot", false},
		{"https://cellphones.com.vn/cart/public/index.html", "GoodBot", true},
		{"https://cellphones.com.vn/iphone-15.html", "BadBot", false},
	}
	for _, tt := range tests {
		allowed, err := auditor.IsAllowed(ctx, tt.url, tt.agent)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.url, err)
		}
		if allowed != tt.want {
			t.Errorf("IsAllowed(%s, %s) = %v, want %v", tt.url, tt.agent, allowed, tt.want)
		}
	}

	if got := transport.GetCallCountInfo()["GET https://cellphones.com.vn/robots.txt"]; got != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", got)
	}
}

func TestAuditor_MissingRobots(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://www.thegioididong.com/robots.txt", httpmock.NewStringResponder(http.StatusNotFound, ""))

	auditor := newTestAuditor(t, transport)
	allowed, err := auditor.IsAllowed(context.Background(), "https://www.thegioididong.com/dtdd/x", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected allow when robots.txt is missing")
	}
}

func TestAuditor_FetchFailureAllows(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://cellphones.com.vn/robots.txt", httpmock.NewErrorResponder(errors.New("connection reset")))

	auditor := newTestAuditor(t, transport)
	for i := 0; i < 2; i++ {
		allowed, err := auditor.IsAllowed(context.Background(), "https://cellphones.com.vn/x", "GoodBot")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("expected fail-open allow")
		}
	}

	if got := transport.GetCallCountInfo()["GET https://cellphones.com.vn/robots.txt"]; got != 2 {
		t.Errorf("expected failed fetch retried, got %d fetches", got)
	}
}

func TestAuditor_RecoversAfterTransientFailure(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://cellphones.com.vn/robots.txt", httpmock.NewErrorResponder(errors.New("connection reset")))

	auditor := newTestAuditor(t, transport)
	allowed, err := auditor.IsAllowed(context.Background(), "https://cellphones.com.vn/x", "GoodBot")
	if err != nil || !allowed {
		t.Fatalf("expected fail-open allow, got %v, %v", allowed, err)
	}

	transport.RegisterResponder("GET", "https://cellphones.com.vn/robots.txt", httpmock.NewStringResponder(200, "User-agent: *\nDisallow: /\n"))
	allowed, err = auditor.IsAllowed(context.Background(), "https://cellphones.com.vn/x", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected disallow once robots.txt is reachable")
	}
}

func TestAuditor_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://cellphones.com.vn/robots.txt", httpmock.NewStringResponder(200, "User-agent: *\nDisallow: /\n"))

	auditor := newTestAuditor(t, transport)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := auditor.IsAllowed(cancelled, "https://cellphones.com.vn/x", "GoodBot"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	allowed, err := auditor.IsAllowed(context.Background(), "https://cellphones.com.vn/x", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected disallow after a cancelled caller")
	}
}

func TestAuditor_InvalidURL(t *testing.T) {
	auditor := newTestAuditor(t, httpmock.NewMockTransport())
	if _, err := auditor.IsAllowed(context.Background(), "not a url", "GoodBot"); err == nil {
		t.Error("expected error for invalid url")
	}
}
