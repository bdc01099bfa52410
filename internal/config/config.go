package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/simplecrawl/pkg/transport"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "simplecrawl"

	// DefaultTimeout bounds a single request to the service. Scrapes render
	// pages in a headless browser on the service side, so a minute is
	// generous but not unusual.
	DefaultTimeout = 60 * time.Second

	// DefaultPollInterval is the pause between crawl status queries.
	DefaultPollInterval = 2 * time.Second

	// DefaultBatchSize is the number of concurrent scrapes of the scrape
	// command.
	DefaultBatchSize = 4

	// DefaultCleanThreshold is the minimum length in characters of a text
	// block kept by the cleaner. Shorter blocks are usually navigation,
	// cookie banners or button labels.
	DefaultCleanThreshold = 40

	// DefaultHistoryLimit is the number of jobs listed by the history command.
	DefaultHistoryLimit = 20
)

// Config holds all configuration options of the simplecrawl command.
// It is populated from CLI flags and the config file and passed down
// explicitly; nothing reads it from global state.
type Config struct {
	// APIURL is the explicitly configured base URL of the service. Empty
	// means the environment, the config file, then the default.
	APIURL string

	// APIKey is the explicitly configured bearer token.
	APIKey string

	// Timeout is the timeout of each request to the service.
	Timeout time.Duration

	// PollInterval is the pause between crawl status queries.
	PollInterval time.Duration

	// MaxWait bounds how long a crawl is polled. Zero polls until the job
	// finishes.
	MaxWait time.Duration

	// Verbose enables Debug level logging including request traces.
	Verbose bool

	// BatchSize is the number of URLs scraped concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file. If empty, the
	// current directory, the home directory and the XDG config directory
	// are searched for .simplecrawl.
	ConfigFilePath string

	// File holds the loaded configuration file, if any.
	File *File

	// OutputDir is the root directory for scrape and crawl output.
	OutputDir string

	// DBDir is the directory of the job history database.
	DBDir string

	// ProxyAddress routes requests through a SOCKS5 proxy when set.
	ProxyAddress string

	// RateLimit is the maximum number of requests per second. Zero disables
	// throttling.
	RateLimit float64

	// CleanThreshold is passed to the HTML cleaner.
	CleanThreshold int

	// Tracing enables OpenTelemetry instrumentation of requests.
	Tracing bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		BatchSize:      DefaultBatchSize,
		OutputDir:      DefaultOutputDir(),
		DBDir:          XDGDataDir(),
		CleanThreshold: DefaultCleanThreshold,
	}
}

// XDGDataDir returns the XDG data directory for simplecrawl.
// On Linux: ~/.local/share/simplecrawl
// On macOS: ~/Library/Application Support/simplecrawl
// On Windows: %LOCALAPPDATA%\simplecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for simplecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultOutputDir returns the directory where results are written when no
// output directory is configured.
func DefaultOutputDir() string {
	return filepath.Join(XDGDataDir(), "output")
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.MaxWait < 0 {
		return ErrInvalidMaxWait
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.CleanThreshold < 0 {
		return ErrInvalidThreshold
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.ProxyAddress != "" && !transport.IsValidProxyAddress(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	return nil
}

// ApplyFile copies the values of f into c for every setting the user did not
// set explicitly. explicit reports whether the flag with the given name was
// set on the command line. The API URL and key are not copied; they are
// resolved through File.Lookup so the environment takes precedence.
func (c *Config) ApplyFile(f *File, explicit func(flag string) bool) {
	if f == nil {
		return
	}
	c.File = f
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if f.Timeout > 0 && !explicit("timeout") {
		c.Timeout = f.Timeout
	}
	if f.PollInterval > 0 && !explicit("interval") {
		c.PollInterval = f.PollInterval
	}
	if f.MaxWait > 0 && !explicit("max-wait") {
		c.MaxWait = f.MaxWait
	}
	if f.BatchSize > 0 && !explicit("batch") {
		c.BatchSize = f.BatchSize
	}
	if f.OutputDir != "" && !explicit("output") {
		c.OutputDir = f.OutputDir
	}
	if f.Proxy != "" && !explicit("proxy") {
		c.ProxyAddress = f.Proxy
	}
	if f.RateLimit > 0 && !explicit("rate-limit") {
		c.RateLimit = f.RateLimit
	}
	if f.CleanThreshold > 0 && !explicit("threshold") {
		c.CleanThreshold = f.CleanThreshold
	}
	if f.Tracing && !explicit("trace") {
		c.Tracing = true
	}
}
