package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/session"
)

// MockResponse is a response MockPage replays when navigated
type MockResponse struct {
	URL   string
	Body  []byte
	Delay time.Duration
}

// MockPage is an in-memory Page for tests. Navigation replays the
// responses returned by OnNavigate through the active interception, and
// element visibility is answered by Visible.
type MockPage struct {
	mu sync.Mutex

	OnNavigate   func(url string) []MockResponse
	Visible      func(selector string) bool
	OnClick      func(selector string) error
	RejectCookie func(c session.Cookie) bool
	NavigateErr  error

	Navigated   []string
	Clicked     []string
	Typed       map[string]string
	Stops       int
	Closed      bool
	Screenshots []string

	jar    []session.Cookie
	match  func(string) bool
	handle ResponseHandler
}

// NewMockPage returns an empty MockPage
func NewMockPage() *MockPage {
	return &MockPage{Typed: map[string]string{}}
}

func (m *MockPage) Intercept(_ context.Context, match func(string) bool, handle ResponseHandler) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.match, m.handle = match, handle
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.match, m.handle = nil, nil
	}, nil
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	m.Navigated = append(m.Navigated, url)
	onNav, navErr := m.OnNavigate, m.NavigateErr
	m.mu.Unlock()

	if onNav != nil {
		for _, r := range onNav(url) {
			if r.Delay > 0 {
				select {
				case <-time.After(r.Delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			m.mu.Lock()
			match, handle := m.match, m.handle
			m.mu.Unlock()
			if handle != nil && match(r.URL) {
				handle(r.URL, r.Body)
			}
		}
	}
	return navErr
}

func (m *MockPage) StopLoading(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stops++
	return nil
}

func (m *MockPage) Click(_ context.Context, selector string) error {
	m.mu.Lock()
	visible, onClick := m.Visible, m.OnClick
	m.Clicked = append(m.Clicked, selector)
	m.mu.Unlock()

	if visible != nil && !visible(selector) {
		return fmt.Errorf("%w: %s", xerrors.ErrElementNotFound, selector)
	}
	if onClick != nil {
		return onClick(selector)
	}
	return nil
}

func (m *MockPage) Type(_ context.Context, selector, text string) error {
	m.mu.Lock()
	visible := m.Visible
	m.mu.Unlock()
	if visible != nil && !visible(selector) {
		return fmt.Errorf("%w: %s", xerrors.ErrElementNotFound, selector)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Typed[selector] = text
	return nil
}

func (m *MockPage) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	m.mu.Lock()
	visible := m.Visible
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if visible != nil && visible(selector) {
		return nil
	}
	return fmt.Errorf("%w: %s", xerrors.ErrElementNotFound, selector)
}

func (m *MockPage) Screenshot(_ context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Screenshots = append(m.Screenshots, path)
	return nil
}

func (m *MockPage) Cookies(context.Context) ([]session.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Cookie(nil), m.jar...), nil
}

func (m *MockPage) SetCookie(_ context.Context, c session.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RejectCookie != nil && m.RejectCookie(c) {
		return fmt.Errorf("cookie %s rejected", c.Name)
	}
	m.jar = append(m.jar, c)
	return nil
}

func (m *MockPage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// TypeCount returns how many fields have been typed into
func (m *MockPage) TypeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Typed)
}

// IsClosed reports whether Close was called
func (m *MockPage) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// MockLauncher hands out pages built by NewPage and records them
type MockLauncher struct {
	mu      sync.Mutex
	NewPage func() *MockPage
	Err     error
	Pages   []*MockPage
}

func (l *MockLauncher) Launch(context.Context) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	var p *MockPage
	if l.NewPage != nil {
		p = l.NewPage()
	} else {
		p = NewMockPage()
	}
	l.Pages = append(l.Pages, p)
	return p, nil
}

// Launched returns a snapshot of the pages handed out so far
func (l *MockLauncher) Launched() []*MockPage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*MockPage(nil), l.Pages...)
}
