// Package retry provides backoff and retry helpers.
//
// Do retries transport-level failures of REST calls with exponential
// backoff. JitterBackoff and Pause pace browser interactions during login
// with uniformly random delays.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return page.Click(ctx, selector)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.JitterBackoff{Max: 8 * time.Second},
//		RetryIf:     func(err error) bool { return errors.Is(err, xerrors.ErrElementNotFound) },
//	})
package retry
