package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Metadata describes a scraped page. Keys the client does not model are kept
// in Extra so that a decoded value encodes back to an equivalent document.
type Metadata struct {
	Title       string
	Description string
	Language    string

	// SourceURL is the URL the page was fetched from. Required.
	SourceURL string

	// StatusCode is the HTTP status the service observed. Required.
	StatusCode int

	// Error is set by the service when the page could not be scraped cleanly.
	Error string

	// Extra holds every metadata key not listed above (og:*, keywords, ...).
	Extra map[string]any
}

var metadataStringKeys = map[string]func(*Metadata) *string{
	"title":       func(m *Metadata) *string { return &m.Title },
	"description": func(m *Metadata) *string { return &m.Description },
	"language":    func(m *Metadata) *string { return &m.Language },
	"sourceURL":   func(m *Metadata) *string { return &m.SourceURL },
	"error":       func(m *Metadata) *string { return &m.Error },
}

// UnmarshalJSON decodes metadata, routing unknown or oddly typed keys to Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Metadata{}
	for key, value := range raw {
		if field, ok := metadataStringKeys[key]; ok {
			if err := json.Unmarshal(value, field(m)); err == nil {
				continue
			}
		}
		if key == "statusCode" {
			if err := json.Unmarshal(value, &m.StatusCode); err == nil {
				continue
			}
		}

		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = v
	}
	return nil
}

// MarshalJSON encodes metadata as a flat object including Extra keys.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	if m.Language != "" {
		out["language"] = m.Language
	}
	if m.Error != "" {
		out["error"] = m.Error
	}
	out["sourceURL"] = m.SourceURL
	out["statusCode"] = m.StatusCode
	return json.Marshal(out)
}

// ScrapeResult is the content and metadata of one scraped page.
type ScrapeResult struct {
	Markdown      string         `json:"markdown,omitempty"`
	HTML          string         `json:"html,omitempty"`
	RawHTML       string         `json:"rawHtml,omitempty"`
	Links         []string       `json:"links,omitempty"`
	Screenshot    string         `json:"screenshot,omitempty"`
	Metadata      Metadata       `json:"metadata"`
	LLMExtraction map[string]any `json:"llm_extraction,omitempty"`
	Warning       string         `json:"warning,omitempty"`
}

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

// Crawl job states. StatusSubmitted is local to the client: it is assigned
// when a job is created and never reported by the service.
const (
	StatusSubmitted JobStatus = "submitted"
	StatusScraping  JobStatus = "scraping"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// parseWireStatus accepts the states the service reports.
func parseWireStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case StatusScraping, StatusCompleted, StatusFailed, StatusCancelled:
		return JobStatus(s), nil
	default:
		return "", invalid("status", s, "unknown crawl status")
	}
}

// CrawlStarted is the response to a crawl submission.
type CrawlStarted struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
}

// CrawlStatus is one status or page-fetch response of a crawl job.
type CrawlStatus struct {
	Status    JobStatus      `json:"status"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Next      string         `json:"next,omitempty"`
	Data      []ScrapeResult `json:"data"`
}

// MapResult lists the URLs discovered for a seed URL.
type MapResult struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
}

// ParseScrapeResult decodes a ScrapeResult document, such as one produced by
// encoding a ScrapeResult with encoding/json.
func ParseScrapeResult(body []byte) (ScrapeResult, error) {
	return decodePage("data", body)
}

// ParseScrapeResponse decodes the body of a POST /scrape response.
func ParseScrapeResponse(body []byte) (ScrapeResult, error) {
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := decodeEnvelope(body, &env); err != nil {
		return ScrapeResult{}, err
	}
	if isNull(env.Data) {
		return ScrapeResult{}, missing("data")
	}
	return decodePage("data", env.Data)
}

// ParseCrawlStarted decodes the body of a POST /crawl response.
func ParseCrawlStarted(body []byte) (CrawlStarted, error) {
	var started CrawlStarted
	if err := decodeEnvelope(body, &started); err != nil {
		return CrawlStarted{}, err
	}
	if started.ID == "" {
		return CrawlStarted{}, missing("id")
	}
	return started, nil
}

// ParseCrawlStatus decodes the body of a GET /crawl/{id} response or of a
// page-fetch following its next cursor.
func ParseCrawlStatus(body []byte) (CrawlStatus, error) {
	var env struct {
		Status    *string           `json:"status"`
		Total     int               `json:"total"`
		Completed int               `json:"completed"`
		ExpiresAt *time.Time        `json:"expiresAt"`
		Next      *string           `json:"next"`
		Data      []json.RawMessage `json:"data"`
	}
	if err := decodeEnvelope(body, &env); err != nil {
		return CrawlStatus{}, err
	}
	if env.Status == nil {
		return CrawlStatus{}, missing("status")
	}
	status, err := parseWireStatus(*env.Status)
	if err != nil {
		return CrawlStatus{}, err
	}

	out := CrawlStatus{
		Status:    status,
		Total:     env.Total,
		Completed: env.Completed,
		ExpiresAt: env.ExpiresAt,
		Data:      make([]ScrapeResult, 0, len(env.Data)),
	}
	if env.Next != nil {
		out.Next = *env.Next
	}
	for i, raw := range env.Data {
		page, err := decodePage("data["+strconv.Itoa(i)+"]", raw)
		if err != nil {
			return CrawlStatus{}, err
		}
		out.Data = append(out.Data, page)
	}
	return out, nil
}

// ParseMapResult decodes the body of a POST /map response.
func ParseMapResult(body []byte) (MapResult, error) {
	var env struct {
		Success bool      `json:"success"`
		Links   *[]string `json:"links"`
	}
	if err := decodeEnvelope(body, &env); err != nil {
		return MapResult{}, err
	}
	if env.Links == nil {
		return MapResult{}, missing("links")
	}
	return MapResult{Success: env.Success, Links: *env.Links}, nil
}

// ParseCancelResult decodes the body of a DELETE /crawl/{id} response and
// reports whether the service acknowledged the cancellation.
func ParseCancelResult(body []byte) (bool, error) {
	var env struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
	}
	if err := decodeEnvelope(body, &env); err != nil {
		return false, err
	}
	return env.Success || JobStatus(env.Status) == StatusCancelled, nil
}

// decodeEnvelope decodes a JSON object, reporting syntax and type errors as
// *ValidationError. Unknown fields are ignored.
func decodeEnvelope(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return invalid("body", "", "empty response body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ValidationError{Field: "body", Reason: "malformed JSON", Err: err}
	}
	return nil
}

// decodePage decodes one page and enforces its required metadata fields.
func decodePage(field string, raw json.RawMessage) (ScrapeResult, error) {
	var required struct {
		Metadata *struct {
			SourceURL  *string `json:"sourceURL"`
			StatusCode *int    `json:"statusCode"`
		} `json:"metadata"`
	}
	if err := decodeEnvelope(raw, &required); err != nil {
		return ScrapeResult{}, err
	}
	switch {
	case required.Metadata == nil:
		return ScrapeResult{}, missing(field + ".metadata")
	case required.Metadata.SourceURL == nil || *required.Metadata.SourceURL == "":
		return ScrapeResult{}, missing(field + ".metadata.sourceURL")
	case required.Metadata.StatusCode == nil:
		return ScrapeResult{}, missing(field + ".metadata.statusCode")
	}

	var page ScrapeResult
	if err := decodeEnvelope(raw, &page); err != nil {
		return ScrapeResult{}, err
	}
	return page, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
