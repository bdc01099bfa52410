package schema

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Service defaults applied by the request constructors when the caller leaves
// an option unset. They match the defaults of the firecrawl-simple API.
const (
	// DefaultScrapeTimeout is the page load timeout in milliseconds.
	DefaultScrapeTimeout = 30000

	// DefaultCrawlMaxDepth is the link depth followed from the seed URL.
	DefaultCrawlMaxDepth = 2

	// DefaultCrawlLimit is the maximum number of pages a crawl job scrapes.
	DefaultCrawlLimit = 10

	// DefaultCrawlWaitFor is the per-page render delay in milliseconds used
	// for crawl jobs.
	DefaultCrawlWaitFor = 123

	// DefaultMapLimit is the maximum number of links returned by map.
	DefaultMapLimit = 5000
)

// Int returns a pointer to v. It is a helper for optional integer options.
func Int(v int) *int { return &v }

// Bool returns a pointer to v. It is a helper for optional boolean options.
func Bool(v bool) *bool { return &v }

// ExtractOptions requests LLM based extraction of structured data.
type ExtractOptions struct {
	Schema       map[string]any
	SystemPrompt string
	Prompt       string
}

func (e *ExtractOptions) isEmpty() bool {
	return e == nil || (len(e.Schema) == 0 && e.SystemPrompt == "" && e.Prompt == "")
}

// ScrapeOptions are the caller supplied options of a scrape request.
// The zero value selects every default.
type ScrapeOptions struct {
	// Formats lists the requested output formats. Defaults to markdown.
	Formats []OutputFormat

	// IncludeTags restricts extraction to the given HTML tags or selectors.
	IncludeTags []string

	// ExcludeTags removes the given HTML tags or selectors before extraction.
	ExcludeTags []string

	// Headers are sent by the service when it fetches the page.
	Headers map[string]string

	// WaitFor delays scraping by the given number of milliseconds.
	WaitFor int

	// Timeout is the page load timeout in milliseconds. Zero means
	// DefaultScrapeTimeout.
	Timeout int

	// Extract enables LLM extraction when any of its fields is set.
	Extract *ExtractOptions
}

// ScrapeRequest is a validated scrape request.
type ScrapeRequest struct {
	URL         string
	Formats     []OutputFormat
	IncludeTags []string
	ExcludeTags []string
	Headers     map[string]string
	WaitFor     int
	Timeout     int
	Extract     *ExtractOptions
}

// NewScrapeRequest validates rawURL and opts and returns a normalized request.
func NewScrapeRequest(rawURL string, opts ScrapeOptions) (ScrapeRequest, error) {
	u, err := validateURL("url", rawURL)
	if err != nil {
		return ScrapeRequest{}, err
	}

	formats, err := normalizeFormats("formats", opts.Formats)
	if err != nil {
		return ScrapeRequest{}, err
	}

	if opts.WaitFor < 0 {
		return ScrapeRequest{}, invalid("waitFor", strconv.Itoa(opts.WaitFor), "must be non-negative")
	}
	timeout := opts.Timeout
	if timeout < 0 {
		return ScrapeRequest{}, invalid("timeout", strconv.Itoa(timeout), "must be non-negative")
	}
	if timeout == 0 {
		timeout = DefaultScrapeTimeout
	}

	req := ScrapeRequest{
		URL:         u,
		Formats:     formats,
		IncludeTags: cloneStrings(opts.IncludeTags),
		ExcludeTags: cloneStrings(opts.ExcludeTags),
		Headers:     cloneHeaders(opts.Headers),
		WaitFor:     opts.WaitFor,
		Timeout:     timeout,
	}
	if !opts.Extract.isEmpty() {
		extract := *opts.Extract
		req.Extract = &extract
	}
	return req, nil
}

type extractPayload struct {
	Schema       map[string]any `json:"schema,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
}

type scrapePayload struct {
	URL         string            `json:"url"`
	Formats     []OutputFormat    `json:"formats"`
	WaitFor     int               `json:"waitFor"`
	Timeout     int               `json:"timeout"`
	IncludeTags []string          `json:"includeTags,omitempty"`
	ExcludeTags []string          `json:"excludeTags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Extract     *extractPayload   `json:"extract,omitempty"`
}

// MarshalJSON encodes the request as the POST /scrape body.
func (r ScrapeRequest) MarshalJSON() ([]byte, error) {
	p := scrapePayload{
		URL:         r.URL,
		Formats:     r.Formats,
		WaitFor:     r.WaitFor,
		Timeout:     r.Timeout,
		IncludeTags: r.IncludeTags,
		ExcludeTags: r.ExcludeTags,
		Headers:     r.Headers,
	}
	if r.Extract != nil {
		p.Extract = &extractPayload{
			Schema:       r.Extract.Schema,
			SystemPrompt: r.Extract.SystemPrompt,
			Prompt:       r.Extract.Prompt,
		}
	}
	return json.Marshal(p)
}

// CrawlScrapeOptions are the scrape options applied to every page of a crawl.
type CrawlScrapeOptions struct {
	Formats     []OutputFormat
	Headers     map[string]string
	IncludeTags []string
	ExcludeTags []string

	// WaitFor is the per-page render delay in milliseconds. Nil means
	// DefaultCrawlWaitFor.
	WaitFor *int
}

// CrawlOptions are the caller supplied options of a crawl request.
// The zero value selects every default.
type CrawlOptions struct {
	// IncludePaths are path globs; when set only matching pages are crawled.
	IncludePaths []string

	// ExcludePaths are path globs of pages that are never crawled.
	ExcludePaths []string

	// MaxDepth is the link depth followed from the seed. Nil means
	// DefaultCrawlMaxDepth. Must be non-negative.
	MaxDepth *int

	// Limit is the maximum number of pages. Nil means DefaultCrawlLimit.
	// Must be positive.
	Limit *int

	// IgnoreSitemap skips sitemap.xml discovery. Nil means true.
	IgnoreSitemap *bool

	AllowBackwardLinks bool
	AllowExternalLinks bool

	// Webhook receives status updates from the service when set.
	Webhook string

	ScrapeOptions CrawlScrapeOptions
}

// CrawlScrapeSettings is the normalized form of CrawlScrapeOptions.
type CrawlScrapeSettings struct {
	Formats     []OutputFormat
	Headers     map[string]string
	IncludeTags []string
	ExcludeTags []string
	WaitFor     int
}

// CrawlRequest is a validated crawl request. MaxDepth >= 0 and Limit > 0
// always hold for a value returned by NewCrawlRequest.
type CrawlRequest struct {
	URL                string
	IncludePaths       []string
	ExcludePaths       []string
	MaxDepth           int
	Limit              int
	IgnoreSitemap      bool
	AllowBackwardLinks bool
	AllowExternalLinks bool
	Webhook            string
	Scrape             CrawlScrapeSettings
}

// NewCrawlRequest validates rawURL and opts and returns a normalized request.
func NewCrawlRequest(rawURL string, opts CrawlOptions) (CrawlRequest, error) {
	u, err := validateURL("url", rawURL)
	if err != nil {
		return CrawlRequest{}, err
	}

	maxDepth := DefaultCrawlMaxDepth
	if opts.MaxDepth != nil {
		maxDepth = *opts.MaxDepth
	}
	if maxDepth < 0 {
		return CrawlRequest{}, invalid("maxDepth", strconv.Itoa(maxDepth), "must be non-negative")
	}

	limit := DefaultCrawlLimit
	if opts.Limit != nil {
		limit = *opts.Limit
	}
	if limit <= 0 {
		return CrawlRequest{}, invalid("limit", strconv.Itoa(limit), "must be positive")
	}

	includes, err := validatePatterns("includePaths", opts.IncludePaths)
	if err != nil {
		return CrawlRequest{}, err
	}
	excludes, err := validatePatterns("excludePaths", opts.ExcludePaths)
	if err != nil {
		return CrawlRequest{}, err
	}

	webhook := strings.TrimSpace(opts.Webhook)
	if webhook != "" {
		if webhook, err = validateURL("webhook", webhook); err != nil {
			return CrawlRequest{}, err
		}
	}

	formats, err := normalizeFormats("scrapeOptions.formats", opts.ScrapeOptions.Formats)
	if err != nil {
		return CrawlRequest{}, err
	}
	waitFor := DefaultCrawlWaitFor
	if opts.ScrapeOptions.WaitFor != nil {
		waitFor = *opts.ScrapeOptions.WaitFor
	}
	if waitFor < 0 {
		return CrawlRequest{}, invalid("scrapeOptions.waitFor", strconv.Itoa(waitFor), "must be non-negative")
	}

	ignoreSitemap := true
	if opts.IgnoreSitemap != nil {
		ignoreSitemap = *opts.IgnoreSitemap
	}

	return CrawlRequest{
		URL:                u,
		IncludePaths:       includes,
		ExcludePaths:       excludes,
		MaxDepth:           maxDepth,
		Limit:              limit,
		IgnoreSitemap:      ignoreSitemap,
		AllowBackwardLinks: opts.AllowBackwardLinks,
		AllowExternalLinks: opts.AllowExternalLinks,
		Webhook:            webhook,
		Scrape: CrawlScrapeSettings{
			Formats:     formats,
			Headers:     cloneHeaders(opts.ScrapeOptions.Headers),
			IncludeTags: cloneStrings(opts.ScrapeOptions.IncludeTags),
			ExcludeTags: cloneStrings(opts.ScrapeOptions.ExcludeTags),
			WaitFor:     waitFor,
		},
	}, nil
}

type crawlScrapePayload struct {
	Formats     []OutputFormat    `json:"formats"`
	WaitFor     int               `json:"waitFor"`
	Headers     map[string]string `json:"headers,omitempty"`
	IncludeTags []string          `json:"includeTags,omitempty"`
	ExcludeTags []string          `json:"excludeTags,omitempty"`
}

type crawlPayload struct {
	URL                string             `json:"url"`
	MaxDepth           int                `json:"maxDepth"`
	IgnoreSitemap      bool               `json:"ignoreSitemap"`
	Limit              int                `json:"limit"`
	AllowBackwardLinks bool               `json:"allowBackwardLinks"`
	AllowExternalLinks bool               `json:"allowExternalLinks"`
	ScrapeOptions      crawlScrapePayload `json:"scrapeOptions"`
	ExcludePaths       []string           `json:"excludePaths,omitempty"`
	IncludePaths       []string           `json:"includePaths,omitempty"`
	Webhook            string             `json:"webhook,omitempty"`
}

// MarshalJSON encodes the request as the POST /crawl body.
func (r CrawlRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(crawlPayload{
		URL:                r.URL,
		MaxDepth:           r.MaxDepth,
		IgnoreSitemap:      r.IgnoreSitemap,
		Limit:              r.Limit,
		AllowBackwardLinks: r.AllowBackwardLinks,
		AllowExternalLinks: r.AllowExternalLinks,
		ScrapeOptions: crawlScrapePayload{
			Formats:     r.Scrape.Formats,
			WaitFor:     r.Scrape.WaitFor,
			Headers:     r.Scrape.Headers,
			IncludeTags: r.Scrape.IncludeTags,
			ExcludeTags: r.Scrape.ExcludeTags,
		},
		ExcludePaths: r.ExcludePaths,
		IncludePaths: r.IncludePaths,
		Webhook:      r.Webhook,
	})
}

// MapOptions are the caller supplied options of a map request.
type MapOptions struct {
	// Search filters the returned links by a query string.
	Search string

	// IgnoreSitemap skips sitemap.xml discovery. Nil means true.
	IgnoreSitemap *bool

	IncludeSubdomains bool

	// Limit is the maximum number of links. Nil means DefaultMapLimit.
	Limit *int
}

// MapRequest is a validated map request.
type MapRequest struct {
	URL               string
	Search            string
	IgnoreSitemap     bool
	IncludeSubdomains bool
	Limit             int
}

// NewMapRequest validates rawURL and opts and returns a normalized request.
func NewMapRequest(rawURL string, opts MapOptions) (MapRequest, error) {
	u, err := validateURL("url", rawURL)
	if err != nil {
		return MapRequest{}, err
	}

	limit := DefaultMapLimit
	if opts.Limit != nil {
		limit = *opts.Limit
	}
	if limit <= 0 {
		return MapRequest{}, invalid("limit", strconv.Itoa(limit), "must be positive")
	}

	ignoreSitemap := true
	if opts.IgnoreSitemap != nil {
		ignoreSitemap = *opts.IgnoreSitemap
	}

	return MapRequest{
		URL:               u,
		Search:            strings.TrimSpace(opts.Search),
		IgnoreSitemap:     ignoreSitemap,
		IncludeSubdomains: opts.IncludeSubdomains,
		Limit:             limit,
	}, nil
}

type mapPayload struct {
	URL               string `json:"url"`
	IgnoreSitemap     bool   `json:"ignoreSitemap"`
	IncludeSubdomains bool   `json:"includeSubdomains"`
	Limit             int    `json:"limit"`
	Search            string `json:"search,omitempty"`
}

// MarshalJSON encodes the request as the POST /map body.
func (r MapRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapPayload{
		URL:               r.URL,
		IgnoreSitemap:     r.IgnoreSitemap,
		IncludeSubdomains: r.IncludeSubdomains,
		Limit:             r.Limit,
		Search:            r.Search,
	})
}

// ValidateURL reports whether raw is an absolute http or https URL and
// returns it with surrounding whitespace removed.
func ValidateURL(raw string) (string, error) {
	return validateURL("url", raw)
}

func validateURL(field, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", invalid(field, "", "must not be empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &ValidationError{Field: field, Value: raw, Reason: "not a valid URL", Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", invalid(field, raw, "scheme must be http or https")
	}
	if u.Host == "" {
		return "", invalid(field, raw, "URL must be absolute")
	}
	return trimmed, nil
}

// validatePatterns checks every pattern with path.Match syntax and returns a
// copy with surrounding whitespace removed.
func validatePatterns(field string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, invalid(field, "", "pattern must not be empty")
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, &ValidationError{Field: field, Value: p, Reason: "malformed glob pattern", Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
