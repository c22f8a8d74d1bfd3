package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, version string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.TwitterConfig{
		BearerToken:    "token-123",
		APIVersion:     version,
		APIBaseURL:     srv.URL,
		EmbedBaseURL:   srv.URL,
		RequestTimeout: 5 * time.Second,
		EmbedEnabled:   true,
	}, logger.NewNopLogger())
}

func TestLookupTweetsSendsExpansions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, TweetsV2Endpoint, r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		assert.Equal(t, "1,2", r.URL.Query().Get("ids"))
		assert.Equal(t, tweetExpansions, r.URL.Query().Get("expansions"))
		w.Write([]byte(`{"data":[{"id":"1","text":"hi"}],"includes":{"media":[]}}`))
	}, "v2")

	payload, err := client.LookupTweets(context.Background(), "1", "2")
	require.NoError(t, err)
	assert.Equal(t, models.SourceRESTv2, payload.Source)
	assert.Equal(t, models.KindPost, payload.Kind)
}

func TestV2ErrorsMeanNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"value":"20","title":"Not Found Error","detail":"Could not find tweet"}]}`))
	}, "v2")

	_, err := client.FetchPost(context.Background(), "20")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.Contains(t, err.Error(), "20")
}

func TestStatusMapping(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(90*time.Second).Unix(), 10)

	tests := []struct {
		name    string
		status  int
		body    string
		headers map[string]string
		want    error
	}{
		{name: "not found", status: http.StatusNotFound, want: xerrors.ErrNotFound},
		{name: "suspended", status: http.StatusForbidden, body: `{"errors":[{"code":63,"message":"User has been suspended."}]}`, want: xerrors.ErrNotFound},
		{name: "forbidden", status: http.StatusForbidden, body: `{"errors":[{"code":200}]}`, want: xerrors.ErrAuthorization},
		{name: "unauthorized", status: http.StatusUnauthorized, want: xerrors.ErrAuthorization},
		{name: "server error", status: http.StatusBadGateway, want: xerrors.ErrAuthorization},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			headers: map[string]string{
				"x-rate-limit-limit":     "900",
				"x-rate-limit-remaining": "0",
				"x-rate-limit-reset":     reset,
			},
			want: xerrors.ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, "v1")

			_, err := client.FetchPost(context.Background(), "20")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRateLimitCarriesWindow(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(2*time.Minute).Unix(), 10)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-limit", "300")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", reset)
		w.WriteHeader(http.StatusTooManyRequests)
	}, "v2")

	_, err := client.FetchAuthor(context.Background(), "12")

	var rl *xerrors.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 300, rl.Limit)
	assert.Equal(t, 0, rl.Remaining)
	assert.InDelta(t, 120, rl.ResetIn.Seconds(), 5)
	assert.True(t, xerrors.IsRetryableLater(err))
}

func TestStatusV1UsesExtendedMode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StatusV1Endpoint, r.URL.Path)
		assert.Equal(t, "extended", r.URL.Query().Get("tweet_mode"))
		assert.Equal(t, "20", r.URL.Query().Get("id"))
		w.Write([]byte(`{"id_str":"20","full_text":"just setting up my twttr"}`))
	}, "v1")

	payload, err := client.FetchPost(context.Background(), "20")
	require.NoError(t, err)
	assert.Equal(t, models.SourceRESTv1, payload.Source)
}

func TestEmbed(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, EmbedEndpoint, r.URL.Path)
			assert.NotEmpty(t, r.URL.Query().Get("token"))
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Write([]byte(`{"__typename":"Tweet","id_str":"20","text":"hello"}`))
		}, "v2")

		payload, err := client.Embed(context.Background(), "20")
		require.NoError(t, err)
		assert.Equal(t, models.SourceEmbed, payload.Source)
	})

	t.Run("html error page", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head><title>Page not found</title></head><body></body></html>`))
		}, "v2")

		_, err := client.Embed(context.Background(), "20")
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
		assert.Contains(t, err.Error(), "Page not found")
	})

	t.Run("empty document", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}, "v2")

		_, err := client.Embed(context.Background(), "20")
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
	})

	t.Run("non-200", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, "v2")

		_, err := client.Embed(context.Background(), "20")
		assert.ErrorIs(t, err, xerrors.ErrNotFound)
	})
}

func TestTransportErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"id_str":"20"}`))
	}))
	srv.Close()

	client := NewClient(config.TwitterConfig{
		APIVersion:     "v1",
		APIBaseURL:     srv.URL,
		RequestTimeout: time.Second,
	}, nil, WithRetry(&retry.Config{MaxAttempts: 2, Backoff: retry.ConstantBackoff{Delay: time.Millisecond}}))

	_, err := client.FetchPost(context.Background(), "20")
	assert.ErrorIs(t, err, &xerrors.Error{Type: xerrors.ErrorTypeNetwork})
	assert.Contains(t, err.Error(), "max retry attempts (2) exceeded")
}

func TestEmbedToken(t *testing.T) {
	assert.Equal(t, "", EmbedToken("abc"))
	tok := EmbedToken("1590000000000000000")
	assert.NotEmpty(t, tok)
	assert.NotContains(t, tok, "0")
	assert.NotContains(t, tok, ".")
	assert.Equal(t, tok, EmbedToken("1590000000000000000"))
}

func TestAPIVersion(t *testing.T) {
	assert.Equal(t, "v1", NewClient(config.TwitterConfig{APIVersion: "1.1"}, nil).APIVersion())
	assert.Equal(t, "v2", NewClient(config.TwitterConfig{}, nil).APIVersion())
	assert.False(t, NewClient(config.TwitterConfig{}, nil).HasBearerToken())
}
