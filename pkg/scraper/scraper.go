package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"xscraper/internal/downloader"
	"xscraper/pkg/assembler"
	"xscraper/pkg/auth"
	"xscraper/pkg/browser"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/login"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/retry"
	"xscraper/pkg/session"
	"xscraper/pkg/storage"
	"xscraper/pkg/twitter"
)

// Scraper looks up posts and authors, falling back across strategies until
// one produces a payload
type Scraper struct {
	launcher     browser.Launcher
	interceptor  *browser.Interceptor
	client       TwitterClient
	materializer downloader.Materializer
	assembler    *assembler.Assembler
	store        *session.Store
	machine      *login.Machine
	config       *config.Config
	logger       logger.Logger

	unauthenticated Strategy
	authenticated   Strategy
	embed           Strategy
	rest            Strategy

	// signInMu serializes sign-in; mu only guards signedIn and loginErr
	signInMu sync.Mutex
	mu       sync.Mutex
	signedIn bool
	loginErr error
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithLauncher replaces the Chrome launcher
func WithLauncher(l browser.Launcher) Option {
	return func(s *Scraper) { s.launcher = l }
}

// WithClient replaces the REST and embed client
func WithClient(c TwitterClient) Option {
	return func(s *Scraper) { s.client = c }
}

// WithMaterializer replaces the media downloader
func WithMaterializer(m downloader.Materializer) Option {
	return func(s *Scraper) { s.materializer = m }
}

// New creates a Scraper. account may be nil, in which case the scraper never
// signs in but still reuses a saved session.
func New(cfg *config.Config, account *auth.Account, log logger.Logger, opts ...Option) *Scraper {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "scraper")

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	s := &Scraper{
		launcher:    browser.NewChromeLauncher(cfg.Browser, cfg.Twitter.UserAgent, log),
		interceptor: browser.NewInterceptor(cfg.Browser.InterceptTimeout, log),
		client: twitter.NewClient(cfg.Twitter, log,
			twitter.WithLimiter(limiter),
			twitter.WithRetry(retry.FromSettings(cfg.Retry, log)),
		),
		materializer: storage.NewMaterializer(cfg.Storage, cfg.Twitter.UserAgent, log, storage.WithLimiter(limiter)),
		store:        session.NewStore(cfg.Session.CookieFile, log),
		config:       cfg,
		logger:       log,
	}
	for _, opt := range opts {
		opt(s)
	}

	if account != nil {
		s.machine = login.NewMachine(account, s.store, cfg.Login, cfg.Twitter.WebBaseURL, log)
	}
	s.assembler = assembler.New(s.materializer, cfg.Storage.ConcurrentDownloads, log)

	var screenshotDir string
	if cfg.Browser.Screenshots {
		screenshotDir = cfg.Storage.TempDirectory
	}
	s.unauthenticated = &browserStrategy{
		name:          strategyUnauthenticated,
		launcher:      s.launcher,
		interceptor:   s.interceptor,
		webURL:        cfg.Twitter.WebBaseURL,
		screenshotDir: screenshotDir,
		logger:        log,
	}
	s.authenticated = &browserStrategy{
		name:          strategyAuthenticated,
		launcher:      s.launcher,
		interceptor:   s.interceptor,
		webURL:        cfg.Twitter.WebBaseURL,
		screenshotDir: screenshotDir,
		prepare:       s.signIn,
		finish:        s.captureSession,
		logger:        log,
	}
	s.embed = &embedStrategy{client: s.client}
	s.rest = &restStrategy{client: s.client}
	return s
}

// LookupPosts retrieves and assembles every id. All ids are validated before
// any network activity. The first failure cancels the remaining lookups.
func (s *Scraper) LookupPosts(ctx context.Context, ids ...string) ([]*models.Post, error) {
	reqs, err := requests(models.KindPost, ids)
	if err != nil {
		return nil, err
	}
	return lookup[*models.Post](ctx, s, reqs, s.assembler.Post)
}

// LookupAuthors is LookupPosts for author ids
func (s *Scraper) LookupAuthors(ctx context.Context, ids ...string) ([]*models.Author, error) {
	reqs, err := requests(models.KindAuthor, ids)
	if err != nil {
		return nil, err
	}
	return lookup[*models.Author](ctx, s, reqs, s.assembler.Author)
}

// SignedIn reports whether a sign-in succeeded in this process
func (s *Scraper) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn
}

// Fetch walks the strategy chain for a single request and returns the raw
// payload without assembling it
func (s *Scraper) Fetch(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.retrieve(ctx, req)
}

func requests(kind models.Kind, ids []string) ([]models.RetrievalRequest, error) {
	reqs := make([]models.RetrievalRequest, 0, len(ids))
	for _, id := range ids {
		req := models.RetrievalRequest{ID: id, Kind: kind}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

type assembleFunc[T any] func(ctx context.Context, p *models.RawPayload, id string) (T, error)

// lookup runs reqs with at most browser.concurrency in flight. Results keep
// the order of reqs.
func lookup[T any](ctx context.Context, s *Scraper, reqs []models.RetrievalRequest, assemble assembleFunc[T]) ([]T, error) {
	limit := s.config.Browser.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]T, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			payload, err := s.retrieve(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req, err)
			}
			// the page is already closed; assembly only touches the network
			record, err := assemble(gctx, payload, req.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", req, err)
			}
			results[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// retrieve walks the strategy chain for one request
func (s *Scraper) retrieve(ctx context.Context, req models.RetrievalRequest) (*models.RawPayload, error) {
	var causes []error
	run := func(st Strategy) (*models.RawPayload, bool, error) {
		start := time.Now()
		payload, err := st.Attempt(ctx, req)
		logger.LogStrategy(s.logger, st.Name(), req.ID, err, time.Since(start))
		if err == nil {
			return payload, true, nil
		}
		if ctx.Err() != nil {
			return nil, true, ctx.Err()
		}
		if errors.Is(err, xerrors.ErrLoginFailed) {
			return nil, true, err
		}
		causes = append(causes, fmt.Errorf("%s: %w", st.Name(), err))
		return nil, false, err
	}

	first := s.unauthenticated
	if s.hasSession() {
		first = s.authenticated
	}
	payload, done, err := run(first)
	if done {
		return payload, err
	}

	if first == s.unauthenticated && errors.Is(err, xerrors.ErrUnavailable) && s.machine != nil {
		s.logger.InfoWithFields("Resource withheld from anonymous session, signing in", map[string]interface{}{
			"id":   req.ID,
			"kind": string(req.Kind),
		})
		if payload, done, err := run(s.authenticated); done {
			return payload, err
		}
	}

	if req.Kind == models.KindPost && s.client.EmbedEnabled() {
		if payload, done, err := run(s.embed); done {
			return payload, err
		}
	}

	if s.client.HasBearerToken() {
		start := time.Now()
		payload, err := s.rest.Attempt(ctx, req)
		logger.LogStrategy(s.logger, s.rest.Name(), req.ID, err, time.Since(start))
		return payload, err
	}

	return nil, errors.Join(append([]error{xerrors.NotFound(string(req.Kind), req.ID)}, causes...)...)
}

// hasSession reports whether the authenticated strategy should go first
func (s *Scraper) hasSession() bool {
	s.mu.Lock()
	signedIn := s.signedIn
	s.mu.Unlock()
	return signedIn || s.store.Exists()
}

// signIn prepares page for the authenticated strategy. The form is filled at
// most once per process; later pages reuse the saved cookies.
func (s *Scraper) signIn(ctx context.Context, page browser.Page) error {
	s.signInMu.Lock()
	defer s.signInMu.Unlock()

	s.mu.Lock()
	loginErr := s.loginErr
	s.mu.Unlock()
	if loginErr != nil {
		return loginErr
	}
	if s.machine == nil {
		restored := s.store.Restore(ctx, page)
		s.logger.DebugWithFields("Reusing saved session", map[string]interface{}{"cookies": restored})
		return nil
	}

	err := s.machine.Ensure(ctx, page)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, xerrors.ErrLoginFailed) {
			s.loginErr = err
		}
		return err
	}
	s.signedIn = true
	return nil
}

func (s *Scraper) captureSession(ctx context.Context, page browser.Page) {
	if err := s.store.Capture(ctx, page); err != nil {
		s.logger.WithError(err).Warn("Failed to save session cookies")
	}
}
