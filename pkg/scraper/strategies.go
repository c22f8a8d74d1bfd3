package scraper

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"xscraper/pkg/assembler"
	"xscraper/pkg/browser"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

const (
	strategyAuthenticated   = "browser_authenticated"
	strategyUnauthenticated = "browser_unauthenticated"
	strategyEmbed           = "embed"
	strategyREST            = "rest"
)

// unavailableTypes mark a GraphQL result that was delivered but withheld
var unavailableTypes = map[string]bool{
	"TweetUnavailable": true,
	"TweetTombstone":   true,
	"UserUnavailable":  true,
}

// browserStrategy loads the public web page for a request and captures the
// GraphQL response the page's own client fetches
type browserStrategy struct {
	name        string
	launcher    browser.Launcher
	interceptor *browser.Interceptor
	webURL      string
	// screenshotDir enables a post screenshot when set
	screenshotDir string
	// prepare runs on the fresh page before navigation
	prepare func(ctx context.Context, page browser.Page) error
	// finish runs after a successful capture, before the page closes
	finish func(ctx context.Context, page browser.Page)
	logger logger.Logger
}

func (b *browserStrategy) Name() string { return b.name }

func (b *browserStrategy) Attempt(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error) {
	page, err := b.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.logger.WithError(err).Debug("Closing page failed")
		}
	}()

	if b.prepare != nil {
		if err := b.prepare(ctx, page); err != nil {
			return nil, err
		}
	}

	doc, err := b.interceptor.Intercept(ctx, page, targetURL(b.webURL, req), predicateFor(req))
	if err != nil {
		return nil, err
	}
	payload := &models.RawPayload{Kind: req.Kind, Source: models.SourceGraphQL, Data: doc}

	if b.screenshotDir != "" && req.Kind == models.KindPost {
		path := filepath.Join(b.screenshotDir, "screenshot_"+uuid.NewString()+".png")
		if err := page.Screenshot(ctx, path); err != nil {
			b.logger.WithError(err).Warn("Screenshot failed")
		} else {
			payload.Screenshot = path
		}
	}

	if b.finish != nil {
		b.finish(ctx, page)
	}

	if err := assembler.Availability(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// targetURL is the page whose own requests carry the payload. The status
// route resolves for any handle, so a fixed one is used.
func targetURL(webURL string, req models.RetrievalRequest) string {
	if req.Kind == models.KindAuthor {
		return webURL + "/i/user/" + req.ID
	}
	return webURL + "/jack/status/" + req.ID
}

// predicateFor latches the lookup's own response. A container without a
// result, or with a null one, is how X answers for a removed id and counts as
// unavailable.
func predicateFor(req models.RetrievalRequest) browser.Predicate {
	keys := []string{"data", "tweetResult"}
	if req.Kind == models.KindAuthor {
		keys = []string{"data", "user"}
	}
	return browser.Predicate{
		URLContains: "/graphql",
		Keys:        keys,
		Refine: func(doc any) bool {
			container, ok := dig(doc, keys...)
			if !ok {
				return false
			}
			switch result := container["result"].(type) {
			case nil:
				return true
			case map[string]any:
				return resultMatches(result, req.ID)
			default:
				return false
			}
		},
	}
}

// resultMatches accepts the result for id, including one nested in a
// visibility wrapper, and any unavailability marker
func resultMatches(result map[string]any, id string) bool {
	if typename, _ := result["__typename"].(string); unavailableTypes[typename] {
		return true
	}
	if restID, _ := result["rest_id"].(string); restID == id {
		return true
	}
	if inner, ok := result["tweet"].(map[string]any); ok {
		restID, _ := inner["rest_id"].(string)
		return restID == id
	}
	return false
}

// dig walks nested objects. A top-level array stands for its first element.
func dig(doc any, keys ...string) (map[string]any, bool) {
	if arr, ok := doc.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		doc = arr[0]
	}
	cur, ok := doc.(map[string]any)
	for _, key := range keys {
		if !ok {
			return nil, false
		}
		cur, ok = cur[key].(map[string]any)
	}
	return cur, ok
}

// embedStrategy reads the public syndication document for a post
type embedStrategy struct {
	client TwitterClient
}

func (e *embedStrategy) Name() string { return strategyEmbed }

func (e *embedStrategy) Attempt(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error) {
	return e.client.Embed(ctx, req.ID)
}

// restStrategy calls the bearer-token REST API
type restStrategy struct {
	client TwitterClient
}

func (r *restStrategy) Name() string { return strategyREST }

func (r *restStrategy) Attempt(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error) {
	if req.Kind == models.KindAuthor {
		return r.client.FetchAuthor(ctx, req.ID)
	}
	return r.client.FetchPost(ctx, req.ID)
}
