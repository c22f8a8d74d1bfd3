// Package scraper looks up X posts and authors by numeric id.
//
// Each lookup walks an ordered chain of strategies and stops at the first
// one that yields a payload:
//
//  1. A headless browser loads the public page and captures the GraphQL
//     response the page's own client fetches. If a session is already held
//     (a sign-in succeeded in this process or saved cookies exist) the page
//     is signed in first; otherwise it browses anonymously.
//  2. When the anonymous page reports the resource as withheld and
//     credentials are configured, the scraper signs in once and retries
//     with an authenticated page.
//  3. The public embed document (posts only).
//  4. The bearer-token REST API. Its errors are returned as they are.
//
// A failed sign-in ends the chain with errors.ErrLoginFailed and is not
// retried for the rest of the process. When every strategy comes up empty
// the result is errors.ErrNotFound joined with each strategy's cause.
//
// Usage:
//
//	s := scraper.New(cfg, account, log)
//	posts, err := s.LookupPosts(ctx, "20", "1346889436626259968")
//	if err != nil {
//	    return err
//	}
//
// Identifiers are validated before any network activity. With
// browser.concurrency above one, ids are retrieved in parallel, each with its
// own browser.
package scraper
