// Package ratelimit throttles outbound HTTP traffic to the REST API, the
// embed endpoint and the media CDN.
//
//	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
