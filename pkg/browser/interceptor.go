package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Predicate decides which intercepted response is the payload we want
type Predicate struct {
	// URLContains is matched as a plain substring of the response URL
	URLContains string
	// Keys must be present as a nested path of JSON objects, in order
	Keys []string
	// Refine is an optional final check on the decoded document. A false
	// result or a panic disqualifies the response.
	Refine func(doc any) bool
}

// MatchesURL reports whether url should be inspected at all
func (p Predicate) MatchesURL(url string) bool {
	return strings.Contains(url, p.URLContains)
}

// Matches reports whether a decoded document qualifies
func (p Predicate) Matches(doc any) (ok bool) {
	cur := doc
	for _, key := range p.Keys {
		obj, isObj := firstObject(cur)
		if !isObj {
			return false
		}
		next, present := obj[key]
		if !present {
			return false
		}
		cur = next
	}

	if p.Refine == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return p.Refine(doc)
}

// firstObject treats a top-level array as its first element, matching
// endpoints that batch a single result
func firstObject(v any) (map[string]any, bool) {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		v = arr[0]
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// Interceptor navigates a page and captures the first response that
// satisfies a Predicate
type Interceptor struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewInterceptor creates an Interceptor that waits at most timeout for a match
func NewInterceptor(timeout time.Duration, log logger.Logger) *Interceptor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Interceptor{timeout: timeout, logger: log.WithField("component", "interceptor")}
}

// Intercept subscribes to page responses, navigates to targetURL and returns
// the first decoded document that satisfies pred. Later matches are ignored.
// If nothing qualifies within the timeout it returns errors.ErrTimeout.
// Page loading is stopped before returning in every case.
func (i *Interceptor) Intercept(ctx context.Context, page Page, targetURL string, pred Predicate) (any, error) {
	latch := make(chan any, 1)
	var once sync.Once

	handle := func(url string, body []byte) {
		if len(body) == 0 {
			return
		}
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			i.logger.DebugWithFields("Skipping non-JSON response", map[string]interface{}{"url": url})
			return
		}
		if !pred.Matches(doc) {
			return
		}
		once.Do(func() {
			latch <- doc
			i.logger.DebugWithFields("Payload captured", map[string]interface{}{"url": url})
		})
	}

	stop, err := page.Intercept(ctx, pred.MatchesURL, handle)
	if err != nil {
		return nil, err
	}
	defer stop()

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := page.StopLoading(stopCtx); err != nil {
			i.logger.WithError(err).Debug("window.stop failed")
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	navDone := make(chan error, 1)
	go func() {
		navDone <- page.Navigate(waitCtx, targetURL)
	}()

	for {
		select {
		case doc := <-latch:
			return doc, nil
		case err := <-navDone:
			navDone = nil
			if err != nil {
				i.logger.WithError(err).DebugWithFields("Navigation did not complete, still waiting for payload", map[string]interface{}{"url": targetURL})
			}
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s after %s", xerrors.ErrTimeout, targetURL, i.timeout)
		}
	}
}
