package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"xscraper/pkg/config"
	xerrors "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
)

var extensionPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Materializer downloads remote media into a local directory under
// collision-free names
type Materializer struct {
	dir     string
	enabled bool
	http    *resty.Client
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// Option customizes a Materializer
type Option func(*Materializer)

// WithHTTPClient replaces the resty client, used by tests
func WithHTTPClient(c *resty.Client) Option {
	return func(m *Materializer) { m.http = c }
}

// WithLimiter throttles downloads
func WithLimiter(l ratelimit.Limiter) Option {
	return func(m *Materializer) { m.limiter = l }
}

// NewMaterializer creates a materializer from the storage section of the config
func NewMaterializer(cfg config.StorageConfig, userAgent string, log logger.Logger, opts ...Option) *Materializer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "*/*")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	m := &Materializer{
		dir:     cfg.TempDirectory,
		enabled: cfg.SaveMedia,
		http:    client,
		limiter: ratelimit.Unlimited{},
		logger:  log.WithField("component", "materializer"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether Materialize performs any I/O
func (m *Materializer) Enabled() bool {
	return m.enabled
}

// Dir returns the directory media is written to
func (m *Materializer) Dir() string {
	return m.dir
}

// Materialize fetches sourceURL and writes it to a new file, returning its
// path. When saving is disabled it returns "" and touches nothing.
func (m *Materializer) Materialize(ctx context.Context, sourceURL string) (string, error) {
	if !m.enabled {
		return "", nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := m.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(sourceURL)
	if err != nil {
		return "", &xerrors.Error{Type: xerrors.ErrorTypeNetwork, Message: fmt.Sprintf("failed to download %s: %v", sourceURL, err)}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", &xerrors.Error{
			Type:    xerrors.ErrorTypeNetwork,
			Message: fmt.Sprintf("unexpected status downloading %s", sourceURL),
			Code:    resp.StatusCode(),
		}
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := uuid.NewString()
	if ext := Extension(sourceURL); ext != "" {
		name += "." + ext
	}
	dest := filepath.Join(m.dir, name)

	if err := writeAtomic(dest, body); err != nil {
		return "", err
	}

	m.logger.DebugWithFields("Media saved", map[string]interface{}{
		"url":  sourceURL,
		"path": dest,
	})
	return dest, nil
}

// Extension derives a file extension from the last path segment of rawURL.
// Anything that is not purely alphanumeric is rejected and yields "".
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return ""
	}
	ext := base[dot+1:]
	if !extensionPattern.MatchString(ext) {
		return ""
	}
	return ext
}

func writeAtomic(dest string, r io.Reader) error {
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmp)
		return &xerrors.Error{Type: xerrors.ErrorTypeNetwork, Message: fmt.Sprintf("failed to save media data: %v", err)}
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close media file: %w", closeErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename media file: %w", err)
	}
	return nil
}
