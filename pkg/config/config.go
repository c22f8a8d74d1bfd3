package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the config reads
const EnvPrefix = "XSCRAPER_"

// Config holds all configuration options for xscraper
type Config struct {
	Twitter   TwitterConfig   `yaml:"twitter" json:"twitter"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Login     LoginConfig     `yaml:"login" json:"login"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// TwitterConfig holds endpoints and REST credentials
type TwitterConfig struct {
	// BearerToken enables the REST fallback when set
	BearerToken    string        `yaml:"bearer_token" json:"-"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	APIVersion     string        `yaml:"api_version" json:"api_version"`
	APIBaseURL     string        `yaml:"api_base_url" json:"api_base_url"`
	EmbedBaseURL   string        `yaml:"embed_base_url" json:"embed_base_url"`
	WebBaseURL     string        `yaml:"web_base_url" json:"web_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// EmbedEnabled toggles the public syndication fallback
	EmbedEnabled bool `yaml:"embed_enabled" json:"embed_enabled"`
}

// BrowserConfig controls the headless browser used for interception
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	UserDataDir       string        `yaml:"user_data_dir" json:"user_data_dir"`
	InterceptTimeout  time.Duration `yaml:"intercept_timeout" json:"intercept_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	ElementTimeout    time.Duration `yaml:"element_timeout" json:"element_timeout"`
	Screenshots       bool          `yaml:"screenshots" json:"screenshots"`
	// Concurrency bounds how many ids of one lookup run in parallel, each with its own browser
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// LoginConfig holds the interactive login budget and the human-like pauses
type LoginConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts"`
	ClickAttempts    int           `yaml:"click_attempts" json:"click_attempts"`
	ClickJitter      time.Duration `yaml:"click_jitter" json:"click_jitter"`
	TypeJitter       time.Duration `yaml:"type_jitter" json:"type_jitter"`
	RetryJitter      time.Duration `yaml:"retry_jitter" json:"retry_jitter"`
	ErrorBannerWait  time.Duration `yaml:"error_banner_wait" json:"error_banner_wait"`
	SessionCheckWait time.Duration `yaml:"session_check_wait" json:"session_check_wait"`
	// Account selects stored credentials; empty uses the default account
	Account string `yaml:"account" json:"account"`
}

// SessionConfig locates the persisted cookie file
type SessionConfig struct {
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`
}

// StorageConfig controls media materialization
type StorageConfig struct {
	TempDirectory       string        `yaml:"temp_directory" json:"temp_directory"`
	SaveMedia           bool          `yaml:"save_media" json:"save_media"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// RateLimitConfig holds rate limiting configuration for outbound HTTP
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds transport-level retry settings for REST calls
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig controls how lookup results are written
type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			APIVersion:     "v2",
			APIBaseURL:     "https://api.x.com",
			EmbedBaseURL:   "https://cdn.syndication.twimg.com",
			WebBaseURL:     "https://x.com",
			RequestTimeout: 30 * time.Second,
			EmbedEnabled:   true,
		},
		Browser: BrowserConfig{
			Headless:          true,
			InterceptTimeout:  60 * time.Second,
			NavigationTimeout: 30 * time.Second,
			ElementTimeout:    10 * time.Second,
			Concurrency:       1,
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			ClickAttempts:    3,
			ClickJitter:      8800 * time.Millisecond,
			TypeJitter:       2800 * time.Millisecond,
			RetryJitter:      10300 * time.Millisecond,
			ErrorBannerWait:  10 * time.Second,
			SessionCheckWait: 10 * time.Second,
		},
		Session: SessionConfig{
			CookieFile: "xscraper_cookies.json",
		},
		Storage: StorageConfig{
			TempDirectory:       filepath.Join(os.TempDir(), "xscraper"),
			SaveMedia:           true,
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from XSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	setString("BEARER_TOKEN", &c.Twitter.BearerToken)
	setString("USER_AGENT", &c.Twitter.UserAgent)
	setString("API_VERSION", &c.Twitter.APIVersion)
	setString("API_BASE_URL", &c.Twitter.APIBaseURL)
	setBool("EMBED_ENABLED", &c.Twitter.EmbedEnabled)

	setBool("HEADLESS", &c.Browser.Headless)
	setString("BROWSER_PATH", &c.Browser.ExecPath)
	setDuration("INTERCEPT_TIMEOUT", &c.Browser.InterceptTimeout)
	setBool("SCREENSHOTS", &c.Browser.Screenshots)
	setInt("CONCURRENCY", &c.Browser.Concurrency)

	setString("ACCOUNT", &c.Login.Account)
	setInt("LOGIN_ATTEMPTS", &c.Login.MaxAttempts)

	setString("COOKIE_FILE", &c.Session.CookieFile)

	setString("TEMP_DIR", &c.Storage.TempDirectory)
	setBool("SAVE_MEDIA", &c.Storage.SaveMedia)
	setInt("CONCURRENT_DOWNLOADS", &c.Storage.ConcurrentDownloads)

	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	setString("OUTPUT_FORMAT", &c.Output.Format)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations and is not an error when none exist.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// DefaultPath is where `config init` writes when no path is given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "xscraper", "config.yaml")
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".xscraper.yaml",
		".xscraper.yml",
		filepath.Join(home, ".config", "xscraper", "config.yaml"),
		filepath.Join(home, ".config", "xscraper", "config.yml"),
		filepath.Join(home, ".xscraper.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Twitter.APIVersion {
	case "v1", "v2":
	default:
		errs = append(errs, fmt.Errorf("api version must be v1 or v2, got %q", c.Twitter.APIVersion))
	}
	if c.Twitter.WebBaseURL == "" {
		errs = append(errs, errors.New("web base url is required"))
	}
	if c.Twitter.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Browser.InterceptTimeout <= 0 {
		errs = append(errs, errors.New("intercept timeout must be positive"))
	}
	if c.Browser.ElementTimeout <= 0 {
		errs = append(errs, errors.New("element timeout must be positive"))
	}
	if c.Browser.Concurrency <= 0 || c.Browser.Concurrency > 8 {
		errs = append(errs, errors.New("browser concurrency must be between 1 and 8"))
	}

	if c.Login.MaxAttempts <= 0 {
		errs = append(errs, errors.New("login max attempts must be positive"))
	}
	if c.Login.ClickAttempts <= 0 {
		errs = append(errs, errors.New("login click attempts must be positive"))
	}
	if c.Login.ClickJitter < 0 || c.Login.TypeJitter < 0 || c.Login.RetryJitter < 0 {
		errs = append(errs, errors.New("login jitter cannot be negative"))
	}

	if c.Session.CookieFile == "" {
		errs = append(errs, errors.New("cookie file is required"))
	}

	if c.Storage.SaveMedia && c.Storage.TempDirectory == "" {
		errs = append(errs, errors.New("temp directory is required when saving media"))
	}
	if c.Storage.ConcurrentDownloads <= 0 || c.Storage.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 10"))
	}
	if c.Storage.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry max attempts cannot be negative"))
	}

	switch strings.ToLower(c.Output.Format) {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output format must be json or yaml, got %q", c.Output.Format))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML, creating parent directories
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies flag values keyed by flag name. Only set,
// non-zero values override.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["bearer-token"].(string); ok && v != "" {
		c.Twitter.BearerToken = v
	}
	if v, ok := flags["api-version"].(string); ok && v != "" {
		c.Twitter.APIVersion = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["screenshots"].(bool); ok && v {
		c.Browser.Screenshots = true
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Browser.Concurrency = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Browser.InterceptTimeout = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Login.Account = v
	}
	if v, ok := flags["cookie-file"].(string); ok && v != "" {
		c.Session.CookieFile = v
	}
	if v, ok := flags["temp-dir"].(string); ok && v != "" {
		c.Storage.TempDirectory = v
	}
	if v, ok := flags["no-media"].(bool); ok && v {
		c.Storage.SaveMedia = false
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Format = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.File = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home := os.Getenv("HOME")
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".xscraper.env"))

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
