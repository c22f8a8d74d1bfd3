package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/retry"
)

// Client talks to the bearer-token REST API and the public embed endpoint
type Client struct {
	api         *resty.Client
	embed       *resty.Client
	bearerToken string
	apiVersion  string
	embedOn     bool
	limiter     ratelimit.Limiter
	retry       *retry.Config
	logger      logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithLimiter throttles every request the client sends
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets how transport failures are retried
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a client from the twitter section of the config
func NewClient(cfg config.TwitterConfig, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "twitter")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		api:         newResty(cfg.APIBaseURL, cfg.UserAgent, timeout, log),
		embed:       newResty(cfg.EmbedBaseURL, cfg.UserAgent, timeout, log),
		bearerToken: cfg.BearerToken,
		apiVersion:  strings.ToLower(cfg.APIVersion),
		embedOn:     cfg.EmbedEnabled,
		limiter:     ratelimit.Unlimited{},
		retry:       &retry.Config{MaxAttempts: 1},
		logger:      log,
	}
	if cfg.BearerToken != "" {
		c.api.SetAuthToken(cfg.BearerToken)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Logger == nil {
		c.retry.Logger = log
	}
	return c
}

func newResty(baseURL, userAgent string, timeout time.Duration, log logger.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.LogRequest(log, resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		log.WithError(err).DebugWithFields("HTTP request error", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
		})
	})
	return client
}

// HasBearerToken reports whether REST lookups are possible
func (c *Client) HasBearerToken() bool {
	return c.bearerToken != ""
}

// EmbedEnabled reports whether the embed endpoint may be used
func (c *Client) EmbedEnabled() bool {
	return c.embedOn
}

// APIVersion returns "v1" or "v2"
func (c *Client) APIVersion() string {
	if c.apiVersion == "v1" || c.apiVersion == "1.1" {
		return "v1"
	}
	return "v2"
}

// get sends one GET with the limiter and retry policy applied
func (c *Client) get(ctx context.Context, client *resty.Client, path string, query map[string]string) (*resty.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*resty.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &xerrors.Error{Type: xerrors.ErrorTypeNetwork, Message: fmt.Sprintf("request to %s failed: %v", path, err)}
		}
		return resp, nil
	}, c.retry)
}

// FetchPost looks up one post through the configured API version
func (c *Client) FetchPost(ctx context.Context, id string) (*models.RawPayload, error) {
	if c.APIVersion() == "v1" {
		return c.StatusV1(ctx, id)
	}
	return c.LookupTweets(ctx, id)
}

// FetchAuthor looks up one author through the configured API version
func (c *Client) FetchAuthor(ctx context.Context, id string) (*models.RawPayload, error) {
	if c.APIVersion() == "v1" {
		return c.UserV1(ctx, id)
	}
	return c.LookupUsers(ctx, id)
}

// LookupTweets performs a v2 tweet lookup with media and author expansions
func (c *Client) LookupTweets(ctx context.Context, ids ...string) (*models.RawPayload, error) {
	return c.lookupV2(ctx, models.KindPost, TweetsV2Endpoint, TweetsV2Query(ids), ids)
}

// LookupUsers performs a v2 user lookup
func (c *Client) LookupUsers(ctx context.Context, ids ...string) (*models.RawPayload, error) {
	return c.lookupV2(ctx, models.KindAuthor, UsersV2Endpoint, UsersV2Query(ids), ids)
}

func (c *Client) lookupV2(ctx context.Context, kind models.Kind, path string, query map[string]string, ids []string) (*models.RawPayload, error) {
	target := strings.Join(ids, ",")
	resp, err := c.get(ctx, c.api, path, query)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponse(resp, kind, target); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("failed to parse JSON: %v", err), Code: resp.StatusCode()}
	}
	if err := checkV2Errors(doc, kind, target); err != nil {
		return nil, err
	}
	return &models.RawPayload{Kind: kind, Source: models.SourceRESTv2, Data: doc}, nil
}

// checkV2Errors maps a v2 response without data to not-found. Removed posts
// and suspended authors come back as 200 with an errors array.
func checkV2Errors(doc map[string]any, kind models.Kind, id string) error {
	if data, ok := doc["data"].([]any); ok && len(data) > 0 {
		return nil
	}
	errs, _ := doc["errors"].([]any)
	for _, e := range errs {
		entry, _ := e.(map[string]any)
		title, _ := entry["title"].(string)
		if title == "Not Found Error" || title == "Authorization Error" {
			value, _ := entry["value"].(string)
			if value == "" {
				value = id
			}
			return xerrors.NotFound(string(kind), value)
		}
	}
	return xerrors.NotFound(string(kind), id)
}

// StatusV1 performs a v1.1 status lookup, which carries video variants
func (c *Client) StatusV1(ctx context.Context, id string) (*models.RawPayload, error) {
	return c.lookupV1(ctx, models.KindPost, StatusV1Endpoint, StatusV1Query(id), id)
}

// UserV1 performs a v1.1 user lookup
func (c *Client) UserV1(ctx context.Context, id string) (*models.RawPayload, error) {
	return c.lookupV1(ctx, models.KindAuthor, UserV1Endpoint, UserV1Query(id), id)
}

func (c *Client) lookupV1(ctx context.Context, kind models.Kind, path string, query map[string]string, id string) (*models.RawPayload, error) {
	resp, err := c.get(ctx, c.api, path, query)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponse(resp, kind, id); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, &xerrors.Error{Type: xerrors.ErrorTypeParsing, Message: fmt.Sprintf("failed to parse JSON: %v", err), Code: resp.StatusCode()}
	}
	return &models.RawPayload{Kind: kind, Source: models.SourceRESTv1, Data: doc}, nil
}

// checkResponse maps REST status codes onto the error taxonomy
func (c *Client) checkResponse(resp *resty.Response, kind models.Kind, id string) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		err := rateLimitFromHeaders(resp.Header())
		c.logger.WarnWithFields("Rate limit exceeded", map[string]interface{}{
			"limit":     err.Limit,
			"remaining": err.Remaining,
			"reset_in":  err.ResetIn.String(),
		})
		return err
	case code == http.StatusNotFound:
		return xerrors.NotFound(string(kind), id)
	case code == http.StatusForbidden && hasErrorCode(resp.Body(), 63):
		c.logger.DebugWithFields("Author suspended", map[string]interface{}{"id": id})
		return xerrors.NotFound(string(kind), id)
	default:
		return &xerrors.Error{
			Type:    xerrors.ErrorTypeAuth,
			Message: fmt.Sprintf("invalid response code %d", code),
			Code:    code,
		}
	}
}

func rateLimitFromHeaders(h http.Header) *xerrors.RateLimitError {
	limit, _ := strconv.Atoi(h.Get("x-rate-limit-limit"))
	remaining, _ := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	var resetIn time.Duration
	if reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		resetIn = time.Until(time.Unix(reset, 0)).Round(time.Second)
		if resetIn < 0 {
			resetIn = 0
		}
	}
	return &xerrors.RateLimitError{Limit: limit, Remaining: remaining, ResetIn: resetIn}
}

func hasErrorCode(body []byte, code int) bool {
	var doc struct {
		Errors []struct {
			Code int `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	for _, e := range doc.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Embed fetches a post from the public embed endpoint. Error pages and
// empty documents are reported as not-found.
func (c *Client) Embed(ctx context.Context, id string) (*models.RawPayload, error) {
	resp, err := c.get(ctx, c.embed, EmbedEndpoint, EmbedQuery(id))
	if err != nil {
		return nil, err
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, embedNotFound(id, resp.StatusCode(), body)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, embedNotFound(id, resp.StatusCode(), body)
	}
	if len(doc) == 0 || doc["__typename"] == "TweetTombstone" {
		return nil, xerrors.NotFound(string(models.KindPost), id)
	}
	return &models.RawPayload{Kind: models.KindPost, Source: models.SourceEmbed, Data: doc}, nil
}

func embedNotFound(id string, status int, body []byte) error {
	err := xerrors.NotFound(string(models.KindPost), id)
	if title := pageTitle(body); title != "" {
		err.Message = fmt.Sprintf("%s (embed status %d: %s)", err.Message, status, title)
	} else {
		err.Message = fmt.Sprintf("%s (embed status %d)", err.Message, status)
	}
	return err
}

// pageTitle extracts <title> from an HTML body, or "" if there is none
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
