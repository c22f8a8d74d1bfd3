package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

func TestPredicateNestedKeys(t *testing.T) {
	p := Predicate{Keys: []string{"a", "b"}}

	assert.True(t, p.Matches(map[string]any{"a": map[string]any{"b": 1.0}}))
	assert.False(t, p.Matches(map[string]any{"a": map[string]any{}}))
	assert.False(t, p.Matches(map[string]any{"a": "b"}))
	assert.False(t, p.Matches("scalar"))
	assert.True(t, p.Matches([]any{map[string]any{"a": map[string]any{"b": nil}}}))
	assert.False(t, p.Matches([]any{}))
}

func TestPredicateRefine(t *testing.T) {
	doc := map[string]any{"id": "7"}

	accept := Predicate{Refine: func(d any) bool { return d.(map[string]any)["id"] == "7" }}
	reject := Predicate{Refine: func(any) bool { return false }}
	panics := Predicate{Refine: func(d any) bool { return d.([]any)[3] != nil }}

	assert.True(t, accept.Matches(doc))
	assert.False(t, reject.Matches(doc))
	assert.False(t, panics.Matches(doc))
}

func TestInterceptLatchesFirstQualifyingResponse(t *testing.T) {
	page := NewMockPage()
	page.OnNavigate = func(string) []MockResponse {
		return []MockResponse{
			{URL: "https://x.com/i/api/graphql/abc/Other", Body: []byte(`{"a":{}}`)},
			{URL: "https://x.com/analytics", Body: []byte(`{"a":{"b":"wrong endpoint"}}`)},
			{URL: "https://x.com/i/api/graphql/abc/Tweet", Body: []byte(`not json`)},
			{URL: "https://x.com/i/api/graphql/abc/Tweet", Body: nil},
			{URL: "https://x.com/i/api/graphql/abc/Tweet", Body: []byte(`{"a":{"b":1}}`)},
			{URL: "https://x.com/i/api/graphql/abc/Tweet", Body: []byte(`{"a":{"b":2}}`)},
		}
	}

	i := NewInterceptor(time.Second, logger.NewNopLogger())
	doc, err := i.Intercept(context.Background(), page, "https://x.com/jack/status/20",
		Predicate{URLContains: "/graphql", Keys: []string{"a", "b"}})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1.0}}, doc)
	assert.Equal(t, []string{"https://x.com/jack/status/20"}, page.Navigated)
	assert.Equal(t, 1, page.Stops)
}

func TestInterceptTimesOut(t *testing.T) {
	page := NewMockPage()
	page.OnNavigate = func(string) []MockResponse {
		return []MockResponse{{URL: "https://x.com/graphql/x", Body: []byte(`{"a":{}}`)}}
	}

	i := NewInterceptor(50*time.Millisecond, logger.NewNopLogger())
	start := time.Now()
	_, err := i.Intercept(context.Background(), page, "https://x.com/", Predicate{URLContains: "/graphql", Keys: []string{"a", "b"}})

	assert.True(t, errors.Is(err, xerrors.ErrTimeout))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, page.Stops)
}

func TestInterceptWaitsPastNavigationError(t *testing.T) {
	page := NewMockPage()
	page.NavigateErr = errors.New("net::ERR_ABORTED")
	page.OnNavigate = func(string) []MockResponse {
		return []MockResponse{{URL: "https://x.com/graphql/late", Body: []byte(`{"ok":true}`)}}
	}

	i := NewInterceptor(time.Second, logger.NewNopLogger())
	doc, err := i.Intercept(context.Background(), page, "https://x.com/", Predicate{URLContains: "graphql", Keys: []string{"ok"}})

	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestInterceptRespectsCancellation(t *testing.T) {
	page := NewMockPage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	i := NewInterceptor(time.Minute, logger.NewNopLogger())
	_, err := i.Intercept(ctx, page, "https://x.com/", Predicate{URLContains: "graphql"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, page.Stops)
}
