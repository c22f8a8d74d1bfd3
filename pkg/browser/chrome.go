package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/session"
)

// ChromeLauncher starts a dedicated Chrome process per page
type ChromeLauncher struct {
	cfg       config.BrowserConfig
	userAgent string
	logger    logger.Logger
}

// NewChromeLauncher creates a launcher from the browser section of the config
func NewChromeLauncher(cfg config.BrowserConfig, userAgent string, log logger.Logger) *ChromeLauncher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChromeLauncher{cfg: cfg, userAgent: userAgent, logger: log.WithField("component", "browser")}
}

// Launch starts Chrome with a throwaway profile directory and opens a tab
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	profileRoot := l.cfg.UserDataDir
	if profileRoot == "" {
		profileRoot = os.TempDir()
	}
	profile := filepath.Join(profileRoot, "xscraper_profile_"+uuid.NewString())

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.UserDataDir(profile),
		chromedp.WindowSize(1280, 1600),
	)
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	// Chrome refuses to start its sandbox as root, as in most containers
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}

	// the browser outlives the caller's ctx deadline; Close tears it down
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		os.RemoveAll(profile)
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.logger.DebugWithFields("Browser started", map[string]interface{}{
		"headless": l.cfg.Headless,
		"profile":  profile,
	})

	return &chromePage{
		tabCtx:      tabCtx,
		cancel:      func() { tabCancel(); allocCancel() },
		profile:     profile,
		navTimeout:  l.cfg.NavigationTimeout,
		elemTimeout: l.cfg.ElementTimeout,
		logger:      l.logger,
	}, nil
}

type chromePage struct {
	tabCtx      context.Context
	cancel      func()
	profile     string
	navTimeout  time.Duration
	elemTimeout time.Duration
	logger      logger.Logger

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := p.tabCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Intercept(ctx context.Context, match func(string) bool, handle ResponseHandler) (func(), error) {
	var active atomic.Bool
	active.Store(true)

	chromedp.ListenTarget(p.tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(p.tabCtx)
			if c == nil || c.Target == nil {
				return
			}
			execCtx := cdp.WithExecutor(p.tabCtx, c.Target)

			var body []byte
			url := paused.Request.URL
			wanted := active.Load() && paused.ResponseStatusCode != 0 && match(url)
			if wanted {
				b, err := fetch.GetResponseBody(paused.RequestID).Do(execCtx)
				if err != nil {
					p.logger.WithError(err).DebugWithFields("Could not read intercepted body", map[string]interface{}{"url": url})
				} else {
					body = b
				}
			}

			if err := fetch.ContinueRequest(paused.RequestID).Do(execCtx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.WithError(err).DebugWithFields("Could not continue request", map[string]interface{}{"url": url})
			}

			if wanted && body != nil && active.Load() {
				handle(url, body)
			}
		}()
	})

	enable := fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
		URLPattern:   "*",
		RequestStage: fetch.RequestStageResponse,
	}})
	if err := p.run(ctx, p.elemTimeout, enable); err != nil {
		return nil, fmt.Errorf("failed to enable response interception: %w", err)
	}

	return func() {
		active.Store(false)
	}, nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) StopLoading(ctx context.Context) error {
	return p.run(ctx, 5*time.Second, chromedp.Evaluate("window.stop()", nil))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	err := p.run(ctx, p.elemTimeout, chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible))
	return p.elementError(ctx, selector, err)
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	err := p.run(ctx, p.elemTimeout, chromedp.SendKeys(selector, text, chromedp.BySearch, chromedp.NodeVisible))
	return p.elementError(ctx, selector, err)
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.BySearch))
	return p.elementError(ctx, selector, err)
}

// elementError maps an action deadline to ErrElementNotFound, keeping
// caller cancellation distinct
func (p *chromePage) elementError(ctx context.Context, selector string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", xerrors.ErrElementNotFound, selector)
	}
	return err
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, p.navTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return os.WriteFile(path, buf, 0644)
}

// Cookies returns every cookie in the browser, not just those sent to the
// current URL, so sign-in cookies scoped to other x.com hosts survive
func (p *chromePage) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, p.elemTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		sc := session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			exp := time.Unix(int64(sec), int64(frac*1e9)).UTC()
			sc.Expires = &exp
		}
		cookies = append(cookies, sc)
	}
	return cookies, nil
}

func (p *chromePage) SetCookie(ctx context.Context, c session.Cookie) error {
	return p.run(ctx, p.elemTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithSecure(c.Secure).
			WithHTTPOnly(c.HTTPOnly)
		if c.Expires != nil {
			exp := cdp.TimeSinceEpoch(*c.Expires)
			params = params.WithExpires(&exp)
		}
		return params.Do(ctx)
	}))
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := os.RemoveAll(p.profile); err != nil {
			p.logger.WithError(err).Debug("Could not remove browser profile")
		}
		p.logger.Debug("Browser closed")
	})
	return nil
}
