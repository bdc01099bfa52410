// Package firecrawl is a client for a self-hosted firecrawl-simple service.
//
// A Client scrapes single pages, discovers the URLs of a site (Map) and runs
// crawl jobs. Crawl submits a job and polls it until it finishes; StartCrawl,
// GetCrawlStatus, PollCrawl and CancelCrawl give manual control over the same
// lifecycle.
//
// Two constructors exist. NewClient waits between status queries in a way
// that returns as soon as the context is cancelled. NewBlockingClient sleeps
// for the full poll interval. Requests, ordering and errors are otherwise
// identical.
//
//	client, err := firecrawl.NewClient(firecrawl.WithBaseURL("http://localhost:3002/v1"))
//	if err != nil {
//		return err
//	}
//	job, err := client.Crawl(ctx, "https://example.com", schema.CrawlOptions{Limit: schema.Int(20)})
//
// The base URL and API key are resolved from explicit options, then the
// FIRECRAWL_API_URL and FIRECRAWL_API_KEY environment variables, then the
// default http://localhost:3002/v1 (no key).
//
// Errors:
//
//   - *ConfigError: invalid base URL or client settings, before any request.
//   - *ValidationError: malformed input or a response missing required fields.
//   - *TransportError: connection failure, timeout or non-2xx response.
//   - *ScrapeError: any failure of Scrape, wrapping one of the above.
//   - *PollTimeoutError: the job was still running after the max wait.
//   - *JobFailedError: the job ended failed or cancelled.
//
// The library never logs and never retries.
package firecrawl
