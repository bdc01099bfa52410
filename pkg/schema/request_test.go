package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

// TestNewScrapeRequest tests validation and defaults of scrape requests.
func TestNewScrapeRequest(t *testing.T) {
	t.Parallel()

	t.Run("defaults to markdown and 30s timeout", func(t *testing.T) {
		t.Parallel()

		req, err := NewScrapeRequest("https://example.com", ScrapeOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(req.Formats, []OutputFormat{FormatMarkdown}) {
			t.Errorf("Formats = %v, expected [markdown]", req.Formats)
		}
		if req.Timeout != DefaultScrapeTimeout {
			t.Errorf("Timeout = %d, expected %d", req.Timeout, DefaultScrapeTimeout)
		}
		if req.Extract != nil {
			t.Error("expected no extract options")
		}
	})

	t.Run("formats are normalized and deduplicated", func(t *testing.T) {
		t.Parallel()

		req, err := NewScrapeRequest("https://example.com", ScrapeOptions{
			Formats: []OutputFormat{"HTML", FormatLinks, FormatHTML},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := []OutputFormat{FormatHTML, FormatLinks}
		if !reflect.DeepEqual(req.Formats, expected) {
			t.Errorf("Formats = %v, expected %v", req.Formats, expected)
		}
	})

	testCases := []struct {
		name  string
		url   string
		opts  ScrapeOptions
		field string
	}{
		{"empty URL", "", ScrapeOptions{}, "url"},
		{"relative URL", "/docs", ScrapeOptions{}, "url"},
		{"ftp scheme", "ftp://example.com", ScrapeOptions{}, "url"},
		{"missing host", "https://", ScrapeOptions{}, "url"},
		{"unknown format", "https://example.com", ScrapeOptions{Formats: []OutputFormat{"pdf"}}, "formats"},
		{"negative wait", "https://example.com", ScrapeOptions{WaitFor: -1}, "waitFor"},
		{"negative timeout", "https://example.com", ScrapeOptions{Timeout: -5}, "timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name+" returns ValidationError", func(t *testing.T) {
			t.Parallel()

			_, err := NewScrapeRequest(tc.url, tc.opts)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, expected %q", verr.Field, tc.field)
			}
		})
	}

	t.Run("payload matches the service wire format", func(t *testing.T) {
		t.Parallel()

		req, err := NewScrapeRequest(" https://example.com ", ScrapeOptions{
			ExcludeTags: []string{"nav"},
			Extract:     &ExtractOptions{Prompt: "summarize"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if got["url"] != "https://example.com" {
			t.Errorf("url = %v", got["url"])
		}
		if got["waitFor"] != float64(0) || got["timeout"] != float64(30000) {
			t.Errorf("unexpected waitFor/timeout: %v/%v", got["waitFor"], got["timeout"])
		}
		if _, ok := got["includeTags"]; ok {
			t.Error("includeTags should be omitted when unset")
		}
		extract, ok := got["extract"].(map[string]any)
		if !ok || extract["prompt"] != "summarize" {
			t.Errorf("extract = %v", got["extract"])
		}
	})
}

// TestNewCrawlRequest tests the depth and limit invariants of crawl requests.
func TestNewCrawlRequest(t *testing.T) {
	t.Parallel()

	t.Run("applies service defaults", func(t *testing.T) {
		t.Parallel()

		req, err := NewCrawlRequest("https://example.com", CrawlOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.MaxDepth != DefaultCrawlMaxDepth {
			t.Errorf("MaxDepth = %d, expected %d", req.MaxDepth, DefaultCrawlMaxDepth)
		}
		if req.Limit != DefaultCrawlLimit {
			t.Errorf("Limit = %d, expected %d", req.Limit, DefaultCrawlLimit)
		}
		if !req.IgnoreSitemap {
			t.Error("expected IgnoreSitemap to default to true")
		}
		if req.Scrape.WaitFor != DefaultCrawlWaitFor {
			t.Errorf("Scrape.WaitFor = %d, expected %d", req.Scrape.WaitFor, DefaultCrawlWaitFor)
		}
	})

	t.Run("zero depth is valid", func(t *testing.T) {
		t.Parallel()

		req, err := NewCrawlRequest("https://example.com", CrawlOptions{MaxDepth: Int(0)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.MaxDepth != 0 {
			t.Errorf("MaxDepth = %d, expected 0", req.MaxDepth)
		}
	})

	t.Run("limit and depth bounds hold for every accepted request", func(t *testing.T) {
		t.Parallel()

		for depth := -2; depth <= 2; depth++ {
			for limit := -2; limit <= 2; limit++ {
				req, err := NewCrawlRequest("https://example.com", CrawlOptions{
					MaxDepth: Int(depth),
					Limit:    Int(limit),
				})
				valid := depth >= 0 && limit > 0
				if valid && err != nil {
					t.Errorf("depth=%d limit=%d: unexpected error %v", depth, limit, err)
				}
				if !valid {
					var verr *ValidationError
					if !errors.As(err, &verr) {
						t.Errorf("depth=%d limit=%d: expected *ValidationError, got %v", depth, limit, err)
					}
					continue
				}
				if req.Limit <= 0 || req.MaxDepth < 0 {
					t.Errorf("invariant violated: %+v", req)
				}
			}
		}
	})

	t.Run("malformed glob is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewCrawlRequest("https://example.com", CrawlOptions{
			IncludePaths: []string{"/blog/["},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "includePaths" {
			t.Fatalf("expected includePaths ValidationError, got %v", err)
		}
	})

	t.Run("relative webhook is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewCrawlRequest("https://example.com", CrawlOptions{Webhook: "/hook"})
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "webhook" {
			t.Fatalf("expected webhook ValidationError, got %v", err)
		}
	})

	t.Run("payload nests scrape options", func(t *testing.T) {
		t.Parallel()

		req, err := NewCrawlRequest("https://example.com", CrawlOptions{
			ExcludePaths: []string{"/admin/*"},
			ScrapeOptions: CrawlScrapeOptions{
				Formats: []OutputFormat{FormatHTML},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		var got struct {
			MaxDepth      int      `json:"maxDepth"`
			Limit         int      `json:"limit"`
			ExcludePaths  []string `json:"excludePaths"`
			ScrapeOptions struct {
				Formats []string `json:"formats"`
				WaitFor int      `json:"waitFor"`
			} `json:"scrapeOptions"`
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if got.MaxDepth != 2 || got.Limit != 10 {
			t.Errorf("maxDepth/limit = %d/%d", got.MaxDepth, got.Limit)
		}
		if len(got.ExcludePaths) != 1 || got.ExcludePaths[0] != "/admin/*" {
			t.Errorf("excludePaths = %v", got.ExcludePaths)
		}
		if len(got.ScrapeOptions.Formats) != 1 || got.ScrapeOptions.Formats[0] != "html" {
			t.Errorf("scrapeOptions.formats = %v", got.ScrapeOptions.Formats)
		}
		if got.ScrapeOptions.WaitFor != 123 {
			t.Errorf("scrapeOptions.waitFor = %d", got.ScrapeOptions.WaitFor)
		}
	})
}

// TestNewMapRequest tests map request validation.
func TestNewMapRequest(t *testing.T) {
	t.Parallel()

	t.Run("defaults limit to 5000", func(t *testing.T) {
		t.Parallel()

		req, err := NewMapRequest("https://example.com", MapOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Limit != DefaultMapLimit {
			t.Errorf("Limit = %d, expected %d", req.Limit, DefaultMapLimit)
		}
	})

	t.Run("zero limit returns ValidationError", func(t *testing.T) {
		t.Parallel()

		_, err := NewMapRequest("https://example.com", MapOptions{Limit: Int(0)})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
	})
}

// TestParseFormat tests case-insensitive format parsing.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected OutputFormat
		wantErr  bool
	}{
		{"markdown", FormatMarkdown, false},
		{"rawhtml", FormatRawHTML, false},
		{" links ", FormatLinks, false},
		{"screenshot@fullPage", FormatScreenshotFull, false},
		{"pdf", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("ParseFormat(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
