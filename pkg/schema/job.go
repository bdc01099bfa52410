package schema

import "time"

// CrawlJob is the client side view of a crawl job: the last known status and
// counts reported by the service plus every page accumulated so far.
//
// A CrawlJob is a value. The poller produces a new snapshot on every
// observation and callers own the snapshots they receive.
type CrawlJob struct {
	// ID is the opaque identifier issued by the service.
	ID string `json:"id"`

	// URL is the seed URL of the crawl, when known.
	URL string `json:"url,omitempty"`

	Status JobStatus `json:"status"`

	// Total is the number of pages the service expects to scrape.
	Total int `json:"total"`

	// Completed is the number of pages the service has scraped.
	Completed int `json:"completed"`

	// Results are the pages accumulated so far in first-seen order, with at
	// most one entry per source URL.
	Results []ScrapeResult `json:"results"`

	// Next is the pagination cursor of the most recent response.
	Next string `json:"next,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewCrawlJob returns a job in the submitted state.
func NewCrawlJob(id, seedURL string) CrawlJob {
	return CrawlJob{
		ID:      id,
		URL:     seedURL,
		Status:  StatusSubmitted,
		Results: []ScrapeResult{},
	}
}

// Clone returns a copy whose Results slice does not alias the receiver's.
func (j CrawlJob) Clone() CrawlJob {
	out := j
	out.Results = make([]ScrapeResult, len(j.Results))
	copy(out.Results, j.Results)
	if j.ExpiresAt != nil {
		t := *j.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// Merge appends the pages of data that are not already present, comparing
// by source URL. The first occurrence of a page is retained. Pages without a
// source URL are always appended.
func (j CrawlJob) Merge(data []ScrapeResult) CrawlJob {
	out := j.Clone()
	seen := make(map[string]bool, len(out.Results)+len(data))
	for _, r := range out.Results {
		if r.Metadata.SourceURL != "" {
			seen[r.Metadata.SourceURL] = true
		}
	}
	for _, r := range data {
		key := r.Metadata.SourceURL
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out.Results = append(out.Results, r)
	}
	return out
}
