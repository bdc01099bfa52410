package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/simplecrawl/pkg/firecrawl"
)

// SiteConfig holds crawl and scrape defaults for one site.
type SiteConfig struct {
	// Headers are sent by the service when it fetches pages of this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Formats are the output formats requested for this site.
	Formats []string `yaml:"formats,omitempty"`

	// Depth overrides the crawl depth. Zero keeps the global default.
	Depth int `yaml:"depth,omitempty"`

	// Limit overrides the crawl page limit. Zero keeps the global default.
	Limit int `yaml:"limit,omitempty"`

	// ExcludePaths are path globs of pages that are never crawled.
	ExcludePaths []string `yaml:"excludePaths,omitempty"`

	// IncludePaths are path globs; when set only matching pages are crawled.
	IncludePaths []string `yaml:"includePaths,omitempty"`

	// ExcludeTags are HTML tags removed by the service before conversion.
	ExcludeTags []string `yaml:"excludeTags,omitempty"`
}

// File represents the structure of the .simplecrawl configuration file.
type File struct {
	// APIURL is the base URL of the service.
	APIURL string `yaml:"apiURL,omitempty"`

	// APIKey is the bearer token of the service.
	APIKey string `yaml:"apiKey,omitempty"`

	Timeout        time.Duration `yaml:"timeout,omitempty"`
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`
	MaxWait        time.Duration `yaml:"maxWait,omitempty"`
	BatchSize      int           `yaml:"batchSize,omitempty"`
	OutputDir      string        `yaml:"outputDir,omitempty"`
	Proxy          string        `yaml:"proxy,omitempty"`
	RateLimit      float64       `yaml:"rateLimit,omitempty"`
	CleanThreshold int           `yaml:"cleanThreshold,omitempty"`
	Tracing        bool          `yaml:"tracing,omitempty"`

	// Sites maps host names to their site-specific configurations.
	// Keys are host names without scheme or port (e.g., "docs.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// Lookup exposes the connection settings of the file under the environment
// variable names used by the client, so the file can act as a fallback
// layer behind the environment.
func (cf *File) Lookup() firecrawl.LookupFunc {
	return func(key string) (string, bool) {
		if cf == nil {
			return "", false
		}
		switch key {
		case firecrawl.EnvBaseURL:
			return cf.APIURL, cf.APIURL != ""
		case firecrawl.EnvAPIKey:
			return cf.APIKey, cf.APIKey != ""
		default:
			return "", false
		}
	}
}

// GetSiteConfig returns the configuration for the site of rawURL.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(rawURL string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	result.Headers = copyHeaders(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[hostOf(rawURL)]
	if !ok {
		return result
	}

	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.Limit != 0 {
		result.Limit = siteConfig.Limit
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.Formats) > 0 {
		result.Formats = siteConfig.Formats
	}
	if len(siteConfig.ExcludePaths) > 0 {
		result.ExcludePaths = siteConfig.ExcludePaths
	}
	if len(siteConfig.IncludePaths) > 0 {
		result.IncludePaths = siteConfig.IncludePaths
	}
	if len(siteConfig.ExcludeTags) > 0 {
		result.ExcludeTags = siteConfig.ExcludeTags
	}
	return result
}

// hostOf returns the lower-case host name of rawURL without port, or rawURL
// itself when it does not parse as an absolute URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(u.Hostname())
}

func copyHeaders(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
