package browser

import (
	"context"
	"time"

	"xscraper/pkg/session"
)

// ResponseHandler receives the body of an intercepted response whose URL
// passed the filter
type ResponseHandler func(url string, body []byte)

// Page is one live browser tab. A Page is owned by exactly one retrieval
// and must be closed on every exit path.
type Page interface {
	session.Jar

	// Intercept pauses every response, hands the bodies of those whose URL
	// satisfies match to handle, and lets all of them continue unmodified.
	// It must be called before Navigate. The returned func stops delivery.
	Intercept(ctx context.Context, match func(url string) bool, handle ResponseHandler) (stop func(), err error)

	Navigate(ctx context.Context, url string) error
	// StopLoading halts outstanding page loads (window.stop)
	StopLoading(ctx context.Context) error

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	// WaitVisible returns errors.ErrElementNotFound if selector does not
	// become visible within timeout
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Launcher opens fresh pages
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}
