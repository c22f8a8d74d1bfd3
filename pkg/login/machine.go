package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"xscraper/pkg/auth"
	"xscraper/pkg/browser"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/retry"
	"xscraper/pkg/session"
)

// State is a step of the sign-in flow
type State int

const (
	LoggedOut State = iota
	CheckingSession
	FillingCredentials
	Submitting
	ErrorBanner
	LoggedIn
	Failed
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case CheckingSession:
		return "checking_session"
	case FillingCredentials:
		return "filling_credentials"
	case Submitting:
		return "submitting"
	case ErrorBanner:
		return "error_banner"
	case LoggedIn:
		return "logged_in"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// challengeWait bounds the check for the email confirmation step
const challengeWait = 3 * time.Second

// Selectors locate the sign-in form controls. Each value is anything
// chromedp's BySearch accepts: CSS, XPath or plain text.
type Selectors struct {
	Search      string
	Username    string
	Next        string
	Challenge   string
	Password    string
	Submit      string
	ErrorBanner string
	SavePrompt  string
}

// DefaultSelectors matches the x.com web client
func DefaultSelectors() Selectors {
	return Selectors{
		Search:      `input[data-testid="SearchBox_Search_Input"]`,
		Username:    `input[name="text"]`,
		Next:        `//button[.//span[text()="Next"]]`,
		Challenge:   `input[data-testid="ocfEnterTextTextInput"]`,
		Password:    `input[name="password"]`,
		Submit:      `button[data-testid="LoginForm_Login_Button"]`,
		ErrorBanner: `p[data-testid="login-error-message"]`,
		SavePrompt:  `//button[.//span[text()="Save Info"]]`,
	}
}

// Machine drives the sign-in form of a browser page until it reaches
// LoggedIn or Failed
type Machine struct {
	account   *auth.Account
	store     *session.Store
	cfg       config.LoginConfig
	webURL    string
	selectors Selectors
	logger    logger.Logger

	mu          sync.Mutex
	state       State
	transitions []State
}

// Option configures a Machine
type Option func(*Machine)

// WithSelectors overrides the default form selectors
func WithSelectors(s Selectors) Option {
	return func(m *Machine) { m.selectors = s }
}

// NewMachine creates a login machine for account. Cookies are restored from
// and persisted to store.
func NewMachine(account *auth.Account, store *session.Store, cfg config.LoginConfig, webURL string, log logger.Logger, opts ...Option) *Machine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	m := &Machine{
		account:   account,
		store:     store,
		cfg:       cfg,
		webURL:    strings.TrimRight(webURL, "/"),
		selectors: DefaultSelectors(),
		logger:    log.WithField("component", "login"),
		state:     LoggedOut,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transitions returns every state entered since the machine was created
func (m *Machine) Transitions() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.transitions...)
}

func (m *Machine) enter(s State) {
	m.mu.Lock()
	from := m.state
	m.state = s
	m.transitions = append(m.transitions, s)
	m.mu.Unlock()

	m.logger.DebugWithFields("Login state changed", map[string]interface{}{
		"from": from.String(),
		"to":   s.String(),
	})
}

// CheckSession restores saved cookies into page and reports whether the
// session is already signed in. When targetID is set the status page is
// opened instead of the home timeline.
func (m *Machine) CheckSession(ctx context.Context, page browser.Page, targetID string) (bool, error) {
	m.enter(CheckingSession)

	if m.store != nil {
		restored := m.store.Restore(ctx, page)
		m.logger.DebugWithFields("Restored session cookies", map[string]interface{}{"count": restored})
	}

	target := m.webURL + "/home"
	if targetID != "" {
		target = m.webURL + "/jack/status/" + targetID
	}
	if err := page.Navigate(ctx, target); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.WithError(err).Debug("Session check navigation did not complete")
	}

	err := page.WaitVisible(ctx, m.selectors.Search, m.cfg.SessionCheckWait)
	switch {
	case err == nil:
		m.enter(LoggedIn)
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		m.enter(LoggedOut)
		return false, nil
	}
}

// Login signs page in. A restored session short-circuits the form. The form
// is retried up to the configured attempt budget; running out returns
// errors.ErrLoginFailed, which callers must not retry.
func (m *Machine) Login(ctx context.Context, page browser.Page) error {
	if m.account == nil || m.account.Username == "" || m.account.Password == "" {
		m.enter(Failed)
		return fmt.Errorf("%w: no credentials configured", xerrors.ErrLoginFailed)
	}

	ok, err := m.CheckSession(ctx, page, "")
	if err != nil {
		return err
	}
	if ok {
		m.logger.Info("Saved session is still signed in")
		return nil
	}

	if err := page.Navigate(ctx, m.webURL+"/i/flow/login"); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.WithError(err).Debug("Login page navigation did not complete")
	}

	maxAttempts := m.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rejected, err := m.attempt(ctx, page)
		if err != nil {
			return err
		}
		if !rejected {
			return m.finish(ctx, page)
		}

		m.logger.WarnWithFields("Login attempt rejected", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		})
		if attempt < maxAttempts {
			if err := retry.Pause(ctx, m.cfg.RetryJitter); err != nil {
				return err
			}
		}
	}

	m.enter(Failed)
	return fmt.Errorf("%w: sign-in rejected %d times", xerrors.ErrLoginFailed, maxAttempts)
}

// Ensure signs page in unless the machine already reached LoggedIn, in which
// case the saved cookies are restored into page without touching the form.
func (m *Machine) Ensure(ctx context.Context, page browser.Page) error {
	if m.State() == LoggedIn {
		if m.store != nil {
			m.store.Restore(ctx, page)
		}
		return nil
	}
	return m.Login(ctx, page)
}

// attempt fills and submits the form once. It reports whether the attempt
// was rejected; a non-nil error is only returned for cancellation.
func (m *Machine) attempt(ctx context.Context, page browser.Page) (bool, error) {
	m.enter(FillingCredentials)

	if err := m.fill(ctx, page); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.WithError(err).Debug("Login form not ready")
		m.enter(ErrorBanner)
		return true, nil
	}

	m.enter(Submitting)
	if err := page.Click(ctx, m.selectors.Submit); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		m.logger.WithError(err).Debug("Sign-in control not found, waiting for result anyway")
	}

	err := page.WaitVisible(ctx, m.selectors.ErrorBanner, m.cfg.ErrorBannerWait)
	if err == nil {
		m.enter(ErrorBanner)
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

func (m *Machine) fill(ctx context.Context, page browser.Page) error {
	clickAttempts := m.cfg.ClickAttempts
	if clickAttempts <= 0 {
		clickAttempts = 1
	}
	if err := retry.Pause(ctx, m.cfg.ClickJitter); err != nil {
		return err
	}
	err := retry.Do(ctx, func(ctx context.Context) error {
		return page.Click(ctx, m.selectors.Username)
	}, &retry.Config{
		MaxAttempts: clickAttempts,
		Backoff:     retry.JitterBackoff{Max: m.cfg.ClickJitter},
		RetryIf:     isElementNotFound,
		Logger:      m.logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.WithError(err).Debug("Username field never became clickable")
	}

	steps := []func(context.Context) error{
		func(ctx context.Context) error { return page.Type(ctx, m.selectors.Username, m.account.Username) },
		func(ctx context.Context) error { return page.Click(ctx, m.selectors.Next) },
		func(ctx context.Context) error { return m.answerChallenge(ctx, page) },
		func(ctx context.Context) error { return page.Type(ctx, m.selectors.Password, m.account.Password) },
	}
	for _, step := range steps {
		if err := retry.Pause(ctx, m.cfg.TypeJitter); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// answerChallenge fills the email confirmation X shows for unusual sign-ins.
// Absence of the prompt is not an error.
func (m *Machine) answerChallenge(ctx context.Context, page browser.Page) error {
	if m.account.Email == "" || m.selectors.Challenge == "" {
		return nil
	}
	if err := page.WaitVisible(ctx, m.selectors.Challenge, challengeWait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	m.logger.Info("Answering sign-in confirmation prompt")
	if err := page.Type(ctx, m.selectors.Challenge, m.account.Email); err != nil {
		return err
	}
	return page.Click(ctx, m.selectors.Next)
}

// finish persists the new session before anything else can fail, then
// dismisses the save-login prompt if it shows up
func (m *Machine) finish(ctx context.Context, page browser.Page) error {
	m.enter(LoggedIn)

	if m.store != nil {
		if err := m.store.Capture(ctx, page); err != nil {
			m.logger.WithError(err).Warn("Could not persist session cookies")
		}
	}

	if m.selectors.SavePrompt != "" {
		if err := page.Click(ctx, m.selectors.SavePrompt); err != nil && ctx.Err() == nil {
			m.logger.Debug("No save-login prompt shown")
		}
	}

	m.logger.InfoWithFields("Logged in", map[string]interface{}{"username": m.account.Username})
	return ctx.Err()
}

func isElementNotFound(err error) bool {
	return errors.Is(err, xerrors.ErrElementNotFound)
}
