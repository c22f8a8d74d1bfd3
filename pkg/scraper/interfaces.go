package scraper

import (
	"context"

	"xscraper/pkg/models"
)

// Strategy is one way of obtaining the raw payload for a request
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error)
}

// TwitterClient is the HTTP surface the fallback strategies need
type TwitterClient interface {
	HasBearerToken() bool
	EmbedEnabled() bool
	FetchPost(ctx context.Context, id string) (*models.RawPayload, error)
	FetchAuthor(ctx context.Context, id string) (*models.RawPayload, error)
	Embed(ctx context.Context, id string) (*models.RawPayload, error)
}
