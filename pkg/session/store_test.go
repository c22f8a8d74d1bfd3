package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/logger"
)

type memJar struct {
	mu      sync.Mutex
	cookies []Cookie
	reject  map[string]bool
}

func (j *memJar) Cookies(context.Context) ([]Cookie, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Cookie(nil), j.cookies...), nil
}

func (j *memJar) SetCookie(_ context.Context, c Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.reject[c.Name] {
		return errors.New("invalid domain")
	}
	j.cookies = append(j.cookies, c)
	return nil
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "cookies.json"), logger.NewNopLogger())
}

func TestSaveAndLoad(t *testing.T) {
	s := newStore(t)
	exp := time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save([]Cookie{
		{Name: "auth_token", Value: "abc", Domain: ".x.com", Path: "/", Expires: &exp, Secure: true, HTTPOnly: true},
		{Name: "lang", Value: "en", Domain: "x.com"},
	}))

	got := s.Load()
	require.Len(t, got, 2)
	assert.Equal(t, "auth_token", got[0].Name)
	require.NotNil(t, got[0].Expires)
	assert.True(t, exp.Equal(*got[0].Expires))
	assert.True(t, got[0].HTTPOnly)
	assert.Nil(t, got[1].Expires)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadMissingFile(t *testing.T) {
	s := newStore(t)
	assert.Empty(t, s.Load())
	assert.False(t, s.Exists())
}

func TestLoadCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0600))
	assert.Empty(t, s.Load())
}

func TestLoadSkipsMalformedCookies(t *testing.T) {
	s := newStore(t)
	content := `[
  {"name": "good", "value": "1", "expires": "2027-01-01T00:00:00Z"},
  {"name": "bad_expiry", "value": "2", "expires": "next tuesday"},
  {"name": 42},
  {"value": "nameless"},
  {"name": "ruby_style", "value": "3", "expires": "2027-01-01 10:00:00 +0000"}
]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0600))

	got := s.Load()
	require.Len(t, got, 2)
	assert.Equal(t, "good", got[0].Name)
	assert.Equal(t, "ruby_style", got[1].Name)
	assert.Equal(t, 10, got[1].Expires.Hour())
}

func TestRestoreSwallowsRejectedCookies(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save([]Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}, {Name: "c", Value: "3"}}))

	jar := &memJar{reject: map[string]bool{"b": true}}
	n := s.Restore(context.Background(), jar)

	assert.Equal(t, 2, n)
	names := []string{jar.cookies[0].Name, jar.cookies[1].Name}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestCapture(t *testing.T) {
	s := newStore(t)
	jar := &memJar{cookies: []Cookie{{Name: "ct0", Value: "tok"}}}

	require.NoError(t, s.Capture(context.Background(), jar))
	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, "tok", got[0].Value)
}

func TestConcurrentSavesLeaveValidFile(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Save([]Cookie{{Name: "n", Value: string(rune('a' + i))}})
		}(i)
	}
	wg.Wait()

	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, "n", got[0].Name)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(nil))
	assert.True(t, s.Exists())
	require.NoError(t, s.Delete())
	assert.False(t, s.Exists())
	assert.NoError(t, s.Delete())
}
