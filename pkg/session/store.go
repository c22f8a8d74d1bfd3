package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xscraper/pkg/logger"
)

// Cookie is one persisted authentication cookie
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  *time.Time
	Secure   bool
	HTTPOnly bool
}

// record is the on-disk shape. Expiry is kept as a string so a single
// malformed value can be skipped without losing the rest of the file.
type record struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  string `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	time.RubyDate,
	time.RFC1123,
}

func parseExpiry(s string) (*time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized expiry %q", s)
}

// Jar is a cookie container the store can restore into and capture from.
// Browser pages implement it.
type Jar interface {
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookie(ctx context.Context, c Cookie) error
}

// Store persists session cookies to a JSON file
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store backed by path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{path: path, logger: log.WithField("component", "session")}
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a cookie file is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads persisted cookies. Any read or decode failure yields an empty
// list; individual cookies that fail to decode are skipped.
func (s *Store) Load() []Cookie {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Debug("Cookie file unreadable, starting without session")
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.WithError(err).Debug("Cookie file is not a JSON array, ignoring")
		return nil
	}

	cookies := make([]Cookie, 0, len(raw))
	for i, item := range raw {
		var r record
		if err := json.Unmarshal(item, &r); err != nil || r.Name == "" {
			s.logger.DebugWithFields("Skipping malformed cookie", map[string]interface{}{"index": i})
			continue
		}
		c := Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Secure:   r.Secure,
			HTTPOnly: r.HTTPOnly,
		}
		if r.Expires != "" {
			exp, err := parseExpiry(r.Expires)
			if err != nil {
				s.logger.DebugWithFields("Skipping cookie with bad expiry", map[string]interface{}{"name": r.Name})
				continue
			}
			c.Expires = exp
		}
		cookies = append(cookies, c)
	}

	s.logger.DebugWithFields("Cookies loaded", map[string]interface{}{
		"count": len(cookies),
		"path":  s.path,
	})
	return cookies
}

// Save replaces the cookie file atomically. Concurrent savers race and the
// last rename wins.
func (s *Store) Save(cookies []Cookie) error {
	records := make([]record, 0, len(cookies))
	for _, c := range cookies {
		r := record{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires != nil {
			r.Expires = c.Expires.UTC().Format(time.RFC3339)
		}
		records = append(records, r)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cookie file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close cookie file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set cookie file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}

	s.logger.DebugWithFields("Cookies saved", map[string]interface{}{
		"count": len(cookies),
		"path":  s.path,
	})
	return nil
}

// Delete removes the cookie file, invalidating the persisted session
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cookie file: %w", err)
	}
	s.logger.Info("Session cookies deleted")
	return nil
}

// Restore loads persisted cookies into jar. Cookies the jar rejects are
// skipped. It returns how many were applied.
func (s *Store) Restore(ctx context.Context, jar Jar) int {
	applied := 0
	for _, c := range s.Load() {
		if err := jar.SetCookie(ctx, c); err != nil {
			s.logger.WithError(err).DebugWithFields("Cookie rejected by browser", map[string]interface{}{"name": c.Name})
			continue
		}
		applied++
	}
	return applied
}

// Capture reads every cookie from jar and saves it
func (s *Store) Capture(ctx context.Context, jar Jar) error {
	cookies, err := jar.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read browser cookies: %w", err)
	}
	return s.Save(cookies)
}
