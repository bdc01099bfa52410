package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const scrapeResponseBody = `{
	"success": true,
	"data": {
		"markdown": "# Example Domain",
		"html": "<h1>Example Domain</h1>",
		"links": ["https://www.iana.org/domains/example"],
		"metadata": {
			"title": "Example Domain",
			"sourceURL": "https://example.com",
			"statusCode": 200,
			"ogLocaleAlternate": ["en_GB"],
			"keywords": "example"
		},
		"unknownTopLevel": {"nested": true}
	}
}`

// TestParseScrapeResponse tests strict and lenient parts of scrape decoding.
func TestParseScrapeResponse(t *testing.T) {
	t.Parallel()

	t.Run("decodes content and keeps unknown metadata", func(t *testing.T) {
		t.Parallel()

		result, err := ParseScrapeResponse([]byte(scrapeResponseBody))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Markdown != "# Example Domain" {
			t.Errorf("Markdown = %q", result.Markdown)
		}
		if result.Metadata.StatusCode != 200 {
			t.Errorf("StatusCode = %d", result.Metadata.StatusCode)
		}
		if result.Metadata.Extra["keywords"] != "example" {
			t.Errorf("Extra = %v", result.Metadata.Extra)
		}
	})

	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing data", `{"success": true}`, "data"},
		{"null data", `{"success": true, "data": null}`, "data"},
		{"missing metadata", `{"data": {"markdown": "x"}}`, "data.metadata"},
		{"missing source URL", `{"data": {"metadata": {"statusCode": 200}}}`, "data.metadata.sourceURL"},
		{"missing status code", `{"data": {"metadata": {"sourceURL": "https://a.test"}}}`, "data.metadata.statusCode"},
		{"malformed JSON", `{"data":`, "body"},
		{"empty body", ``, "body"},
	}

	for _, tc := range testCases {
		t.Run(tc.name+" returns ValidationError", func(t *testing.T) {
			t.Parallel()

			_, err := ParseScrapeResponse([]byte(tc.body))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, expected %q", verr.Field, tc.field)
			}
		})
	}
}

// TestScrapeResultRoundTrip verifies that encoding a parsed result and parsing
// it again yields an equal value.
func TestScrapeResultRoundTrip(t *testing.T) {
	t.Parallel()

	first, err := ParseScrapeResponse([]byte(scrapeResponseBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	second, err := ParseScrapeResult(encoded)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip mismatch:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

// TestParseCrawlStatus tests decoding of crawl status responses.
func TestParseCrawlStatus(t *testing.T) {
	t.Parallel()

	t.Run("decodes counts, cursor and pages", func(t *testing.T) {
		t.Parallel()

		body := `{
			"status": "scraping",
			"total": 5,
			"completed": 2,
			"expiresAt": "2026-01-02T15:04:05Z",
			"next": "https://h.test/v1/crawl/abc?skip=2",
			"data": [
				{"markdown": "a", "metadata": {"sourceURL": "https://example.com/a", "statusCode": 200}},
				{"markdown": "b", "metadata": {"sourceURL": "https://example.com/b", "statusCode": 200}}
			],
			"success": true
		}`

		status, err := ParseCrawlStatus([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Status != StatusScraping || status.Total != 5 || status.Completed != 2 {
			t.Errorf("unexpected status: %+v", status)
		}
		if status.Next == "" {
			t.Error("expected next cursor")
		}
		if status.ExpiresAt == nil || status.ExpiresAt.Year() != 2026 {
			t.Errorf("ExpiresAt = %v", status.ExpiresAt)
		}
		if len(status.Data) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(status.Data))
		}
	})

	t.Run("missing data decodes as no pages", func(t *testing.T) {
		t.Parallel()

		status, err := ParseCrawlStatus([]byte(`{"status": "completed", "total": 0, "completed": 0}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(status.Data) != 0 {
			t.Errorf("expected no pages, got %d", len(status.Data))
		}
	})

	t.Run("missing status returns ValidationError", func(t *testing.T) {
		t.Parallel()

		_, err := ParseCrawlStatus([]byte(`{"total": 1}`))
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "status" {
			t.Fatalf("expected status ValidationError, got %v", err)
		}
	})

	t.Run("unknown status returns ValidationError", func(t *testing.T) {
		t.Parallel()

		_, err := ParseCrawlStatus([]byte(`{"status": "paused"}`))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
	})

	t.Run("page without metadata reports its index", func(t *testing.T) {
		t.Parallel()

		_, err := ParseCrawlStatus([]byte(`{"status": "scraping", "data": [{"markdown": "x"}]}`))
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "data[0].metadata" {
			t.Fatalf("expected data[0].metadata ValidationError, got %v", err)
		}
	})
}

// TestParseCrawlStarted tests decoding of crawl submission responses.
func TestParseCrawlStarted(t *testing.T) {
	t.Parallel()

	started, err := ParseCrawlStarted([]byte(`{"success": true, "id": "job-1", "url": "https://h.test/v1/crawl/job-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.ID != "job-1" {
		t.Errorf("ID = %q", started.ID)
	}

	if _, err := ParseCrawlStarted([]byte(`{"success": true}`)); err == nil {
		t.Error("expected error for missing id")
	}
}

// TestParseMapResult tests decoding of map responses.
func TestParseMapResult(t *testing.T) {
	t.Parallel()

	result, err := ParseMapResult([]byte(`{"success": true, "links": ["https://example.com", "https://example.com/a"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Links) != 2 {
		t.Errorf("expected 2 links, got %d", len(result.Links))
	}

	empty, err := ParseMapResult([]byte(`{"success": true, "links": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty.Links) != 0 {
		t.Errorf("expected no links, got %v", empty.Links)
	}

	if _, err := ParseMapResult([]byte(`{"success": true}`)); err == nil {
		t.Error("expected error for missing links")
	}
}

// TestParseCancelResult tests both acknowledgement shapes.
func TestParseCancelResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		body     string
		expected bool
	}{
		{`{"success": true}`, true},
		{`{"status": "cancelled"}`, true},
		{`{"success": false}`, false},
		{`{}`, false},
	}

	for _, tc := range testCases {
		got, err := ParseCancelResult([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.body, err)
		}
		if got != tc.expected {
			t.Errorf("%s: got %v, expected %v", tc.body, got, tc.expected)
		}
	}
}

// TestCrawlJobMerge tests first-seen deduplication of pages.
func TestCrawlJobMerge(t *testing.T) {
	t.Parallel()

	page := func(url, content string) ScrapeResult {
		return ScrapeResult{Markdown: content, Metadata: Metadata{SourceURL: url, StatusCode: 200}}
	}

	job := NewCrawlJob("job", "https://example.com")
	job = job.Merge([]ScrapeResult{page("https://example.com/a", "first"), page("https://example.com/b", "b")})
	merged := job.Merge([]ScrapeResult{page("https://example.com/a", "second"), page("https://example.com/c", "c")})

	if len(merged.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(merged.Results))
	}
	if merged.Results[0].Markdown != "first" {
		t.Errorf("first occurrence should be retained, got %q", merged.Results[0].Markdown)
	}
	if merged.Results[2].Metadata.SourceURL != "https://example.com/c" {
		t.Errorf("unexpected order: %v", merged.Results)
	}
	if len(job.Results) != 2 {
		t.Errorf("Merge must not modify the receiver, got %d results", len(job.Results))
	}
}

// TestJobStatusIsTerminal tests the terminal states.
func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[JobStatus]bool{
		StatusSubmitted: false,
		StatusScraping:  false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for status, expected := range terminal {
		if status.IsTerminal() != expected {
			t.Errorf("%s.IsTerminal() = %v, expected %v", status, !expected, expected)
		}
	}
}
