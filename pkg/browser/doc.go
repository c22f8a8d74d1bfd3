// Package browser drives a headless Chrome tab through chromedp and captures
// the JSON payload the web client fetches for a post or profile.
//
// A Page is a single tab with its own throwaway profile directory. Response
// interception uses the DevTools Fetch domain at the response stage: every
// paused response is continued unmodified, and bodies of URLs that pass the
// filter are handed to the Interceptor, which decodes them and latches the
// first one satisfying its Predicate.
//
// MockPage and MockLauncher are in-memory doubles for tests in this and
// dependent packages.
package browser
