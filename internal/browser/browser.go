// Package browser provides call-scoped page rendering sessions. A Launcher
// acquires an isolated Session; the caller must Close it on every exit path.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	// ErrNavigationTimeout is returned when the page did not load in time.
	ErrNavigationTimeout = errors.New("browser: navigation timed out")
	// ErrContentTimeout is returned when the ready marker did not appear in time.
	ErrContentTimeout = errors.New("browser: content wait timed out")
	// ErrMarkerNotFound is returned when the rendered page lacks the ready marker.
	ErrMarkerNotFound = errors.New("browser: content marker not found")
	// ErrSessionClosed is returned when rendering on a closed session.
	ErrSessionClosed = errors.New("browser: session closed")
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultContentTimeout    = 10 * time.Second
	DefaultSettleDelay       = 500 * time.Millisecond
)

// StatusError reports a non-success HTTP status for the main document.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("browser: %s returned HTTP %d", e.URL, e.Code)
}

// Page is a rendered document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int // 0 when the driver does not expose it
	Headers    http.Header
	HTML       string
	Duration   time.Duration
}

// Options configure a single session.
type Options struct {
	UserAgent         string
	NavigationTimeout time.Duration
	ContentTimeout    time.Duration
	// SettleDelay is how long to let network activity settle after load.
	SettleDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.ContentTimeout <= 0 {
		o.ContentTimeout = DefaultContentTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	return o
}

// Session renders pages in an isolated browsing context.
type Session interface {
	// Render navigates to url and waits until readyMarker (a CSS selector)
	// is present. A non-nil Page may accompany an error so callers can
	// inspect what was served instead.
	Render(ctx context.Context, url, readyMarker string) (*Page, error)
	Close() error
}

// Launcher acquires sessions.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, opts Options) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context, opts Options) (Session, error) {
	return f(ctx, opts)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
