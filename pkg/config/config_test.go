package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "v2", cfg.Twitter.APIVersion)
	assert.Empty(t, cfg.Twitter.BearerToken)
	assert.True(t, cfg.Twitter.EmbedEnabled)

	assert.Equal(t, 60*time.Second, cfg.Browser.InterceptTimeout)
	assert.Equal(t, 10*time.Second, cfg.Browser.ElementTimeout)
	assert.Equal(t, 1, cfg.Browser.Concurrency)

	assert.Equal(t, 5, cfg.Login.MaxAttempts)
	assert.Equal(t, 3, cfg.Login.ClickAttempts)
	assert.Equal(t, 10*time.Second, cfg.Login.ErrorBannerWait)

	assert.Equal(t, "xscraper_cookies.json", cfg.Session.CookieFile)
	assert.True(t, cfg.Storage.SaveMedia)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XSCRAPER_BEARER_TOKEN", "AAAA")
	t.Setenv("XSCRAPER_API_VERSION", "v1")
	t.Setenv("XSCRAPER_HEADLESS", "false")
	t.Setenv("XSCRAPER_INTERCEPT_TIMEOUT", "15s")
	t.Setenv("XSCRAPER_COOKIE_FILE", "/tmp/c.json")
	t.Setenv("XSCRAPER_SAVE_MEDIA", "0")
	t.Setenv("XSCRAPER_CONCURRENT_DOWNLOADS", "5")
	t.Setenv("XSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "AAAA", cfg.Twitter.BearerToken)
	assert.Equal(t, "v1", cfg.Twitter.APIVersion)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.InterceptTimeout)
	assert.Equal(t, "/tmp/c.json", cfg.Session.CookieFile)
	assert.False(t, cfg.Storage.SaveMedia)
	assert.Equal(t, 5, cfg.Storage.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvBadValues(t *testing.T) {
	t.Setenv("XSCRAPER_CONCURRENT_DOWNLOADS", "many")
	t.Setenv("XSCRAPER_INTERCEPT_TIMEOUT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XSCRAPER_CONCURRENT_DOWNLOADS")
	assert.Contains(t, err.Error(), "XSCRAPER_INTERCEPT_TIMEOUT")
	assert.Equal(t, 3, cfg.Storage.ConcurrentDownloads)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
twitter:
  api_version: v1
  bearer_token: from-file
browser:
  intercept_timeout: 45s
login:
  max_attempts: 2
storage:
  save_media: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "v1", cfg.Twitter.APIVersion)
	assert.Equal(t, "from-file", cfg.Twitter.BearerToken)
	assert.Equal(t, 45*time.Second, cfg.Browser.InterceptTimeout)
	assert.Equal(t, 2, cfg.Login.MaxAttempts)
	assert.False(t, cfg.Storage.SaveMedia)
	// untouched sections keep defaults
	assert.Equal(t, 3, cfg.Login.ClickAttempts)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("browser: [unclosed"), 0600))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad api version", mutate: func(c *Config) { c.Twitter.APIVersion = "v3" }, wantErr: "api version"},
		{name: "zero intercept timeout", mutate: func(c *Config) { c.Browser.InterceptTimeout = 0 }, wantErr: "intercept timeout"},
		{name: "no login attempts", mutate: func(c *Config) { c.Login.MaxAttempts = 0 }, wantErr: "login max attempts"},
		{name: "negative jitter", mutate: func(c *Config) { c.Login.RetryJitter = -time.Second }, wantErr: "jitter"},
		{name: "no cookie file", mutate: func(c *Config) { c.Session.CookieFile = "" }, wantErr: "cookie file"},
		{name: "media without dir", mutate: func(c *Config) { c.Storage.TempDirectory = "" }, wantErr: "temp directory"},
		{name: "media disabled without dir", mutate: func(c *Config) {
			c.Storage.TempDirectory = ""
			c.Storage.SaveMedia = false
		}},
		{name: "unknown format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "output format"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Login.MaxAttempts = 0
	cfg.RateLimit.BurstSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login max attempts")
	assert.Contains(t, err.Error(), "burst size")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"bearer-token": "flag-token",
		"headless":     false,
		"no-media":     true,
		"format":       "yaml",
		"timeout":      20 * time.Second,
		"concurrency":  0,
	})

	assert.Equal(t, "flag-token", cfg.Twitter.BearerToken)
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.Storage.SaveMedia)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, 20*time.Second, cfg.Browser.InterceptTimeout)
	assert.Equal(t, 1, cfg.Browser.Concurrency)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: yaml\nlogging:\n  level: warn\n"), 0600))

	t.Setenv("HOME", dir)
	t.Setenv("XSCRAPER_LOG_LEVEL", "error")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XSCRAPER_API_VERSION", "v9")

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestSaveRoundTripKeepsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Browser.InterceptTimeout = 42 * time.Second
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, "42s", doc["browser"]["intercept_timeout"])
}
