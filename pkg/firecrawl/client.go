package firecrawl

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nao1215/simplecrawl/pkg/poller"
	"github.com/nao1215/simplecrawl/pkg/schema"
	"github.com/nao1215/simplecrawl/pkg/transport"
)

// Client talks to one firecrawl-simple service. It is safe for concurrent
// use; each call owns the values it returns.
type Client struct {
	transport *transport.Client
	baseURL   string
	keySource Source
	pollOpts  []poller.Option
}

type options struct {
	baseURL       string
	apiKey        string
	lookup        LookupFunc
	httpTimeout   time.Duration
	pollInterval  time.Duration
	maxWait       time.Duration
	observer      func(schema.CrawlJob)
	clock         poller.Clock
	transportOpts []transport.Option
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL sets the service endpoint, e.g. "http://localhost:3002/v1".
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithLookup replaces the environment lookup used for values not set
// explicitly. The default is os.LookupEnv.
func WithLookup(lookup LookupFunc) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// WithHTTPTimeout sets the timeout of each request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) {
		o.httpTimeout = d
	}
}

// WithPollInterval sets the pause between crawl status queries.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithMaxWait bounds how long Crawl and PollCrawl poll a job. Zero, the
// default, means no bound.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		o.maxWait = d
	}
}

// WithObserver registers fn to receive a job snapshot after every status
// query made by Crawl and PollCrawl.
func WithObserver(fn func(schema.CrawlJob)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithClock sets the time source used to measure the max wait.
func WithClock(c poller.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTransportOptions passes additional options to the underlying
// transport, such as a proxy or a rate limit.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) {
		o.transportOpts = append(o.transportOpts, opts...)
	}
}

// NewClient creates a Client whose poll waits end early when the context is
// cancelled.
func NewClient(opts ...Option) (*Client, error) {
	return newClient(poller.ContextWaiter{}, opts)
}

// NewBlockingClient creates a Client whose poll waits always sleep for the
// full interval. Requests still honor the context.
func NewBlockingClient(opts ...Option) (*Client, error) {
	return newClient(poller.SleepWaiter{}, opts)
}

func newClient(waiter poller.Waiter, opts []Option) (*Client, error) {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	if o.httpTimeout < 0 {
		return nil, &ConfigError{Field: "HTTP timeout", Value: o.httpTimeout.String(), Source: SourceExplicit, Err: errNegative}
	}
	if o.pollInterval < 0 {
		return nil, &ConfigError{Field: "poll interval", Value: o.pollInterval.String(), Source: SourceExplicit, Err: errNegative}
	}
	if o.maxWait < 0 {
		return nil, &ConfigError{Field: "max wait", Value: o.maxWait.String(), Source: SourceExplicit, Err: errNegative}
	}

	baseURL, _, err := ResolveBaseURL(o.baseURL, o.lookup)
	if err != nil {
		return nil, err
	}
	apiKey, keySource := ResolveAPIKey(o.apiKey, o.lookup)

	topts := []transport.Option{
		transport.WithToken(apiKey),
		transport.WithTimeout(o.httpTimeout),
	}
	topts = append(topts, o.transportOpts...)
	tc, err := transport.New(baseURL, topts...)
	if err != nil {
		return nil, &ConfigError{Field: "transport", Err: err}
	}

	return &Client{
		transport: tc,
		baseURL:   baseURL,
		keySource: keySource,
		pollOpts: []poller.Option{
			poller.WithWaiter(waiter),
			poller.WithInterval(o.pollInterval),
			poller.WithMaxWait(o.maxWait),
			poller.WithObserver(o.observer),
			poller.WithClock(o.clock),
		},
	}, nil
}

// BaseURL returns the resolved service endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasAPIKey reports whether requests carry a bearer token.
func (c *Client) HasAPIKey() bool {
	return c.keySource != SourceNone
}

// Scrape fetches one page. Every failure is returned as *ScrapeError.
func (c *Client) Scrape(ctx context.Context, rawURL string, opts schema.ScrapeOptions) (schema.ScrapeResult, error) {
	req, err := schema.NewScrapeRequest(rawURL, opts)
	if err != nil {
		return schema.ScrapeResult{}, &ScrapeError{URL: rawURL, Err: err}
	}

	resp, err := c.transport.Post(ctx, "scrape", req)
	if err != nil {
		return schema.ScrapeResult{}, &ScrapeError{URL: req.URL, Err: err}
	}

	result, err := schema.ParseScrapeResponse(resp.Body)
	if err != nil {
		return schema.ScrapeResult{}, &ScrapeError{URL: req.URL, Err: err}
	}
	return result, nil
}

// StartCrawl submits a crawl and returns the job in the submitted state.
func (c *Client) StartCrawl(ctx context.Context, rawURL string, opts schema.CrawlOptions) (schema.CrawlJob, error) {
	req, err := schema.NewCrawlRequest(rawURL, opts)
	if err != nil {
		return schema.CrawlJob{}, err
	}

	resp, err := c.transport.Post(ctx, "crawl", req)
	if err != nil {
		return schema.CrawlJob{}, err
	}

	started, err := schema.ParseCrawlStarted(resp.Body)
	if err != nil {
		return schema.CrawlJob{}, err
	}
	return schema.NewCrawlJob(started.ID, req.URL), nil
}

// GetCrawlStatus queries the status of a job once.
func (c *Client) GetCrawlStatus(ctx context.Context, jobID string) (schema.CrawlStatus, error) {
	ref, err := jobRef(jobID)
	if err != nil {
		return schema.CrawlStatus{}, err
	}
	return c.fetchStatus(ctx, ref)
}

// PollCrawl polls job until it reaches a terminal state, using the client's
// poll settings followed by opts. See poller.Poller.Poll for the returned
// values.
func (c *Client) PollCrawl(ctx context.Context, job schema.CrawlJob, opts ...poller.Option) (schema.CrawlJob, error) {
	if _, err := jobRef(job.ID); err != nil {
		return job, err
	}
	all := make([]poller.Option, 0, len(c.pollOpts)+len(opts))
	all = append(all, c.pollOpts...)
	all = append(all, opts...)
	return poller.New(statusSource{c: c}, all...).Poll(ctx, job)
}

// Crawl submits a crawl and polls it to completion. Errors of the poll are
// returned unchanged.
func (c *Client) Crawl(ctx context.Context, rawURL string, opts schema.CrawlOptions) (schema.CrawlJob, error) {
	job, err := c.StartCrawl(ctx, rawURL, opts)
	if err != nil {
		return schema.CrawlJob{}, err
	}
	return c.PollCrawl(ctx, job)
}

// CancelCrawl asks the service to stop a job and reports whether it
// acknowledged the request.
func (c *Client) CancelCrawl(ctx context.Context, jobID string) (bool, error) {
	ref, err := jobRef(jobID)
	if err != nil {
		return false, err
	}

	resp, err := c.transport.Delete(ctx, ref)
	if err != nil {
		return false, err
	}
	return schema.ParseCancelResult(resp.Body)
}

// Map discovers the URLs of a site without scraping them.
func (c *Client) Map(ctx context.Context, rawURL string, opts schema.MapOptions) (schema.MapResult, error) {
	req, err := schema.NewMapRequest(rawURL, opts)
	if err != nil {
		return schema.MapResult{}, err
	}

	resp, err := c.transport.Post(ctx, "map", req)
	if err != nil {
		return schema.MapResult{}, err
	}
	return schema.ParseMapResult(resp.Body)
}

func (c *Client) fetchStatus(ctx context.Context, ref string) (schema.CrawlStatus, error) {
	resp, err := c.transport.Get(ctx, ref)
	if err != nil {
		return schema.CrawlStatus{}, err
	}
	return schema.ParseCrawlStatus(resp.Body)
}

// jobRef returns the request path of a job.
func jobRef(jobID string) (string, error) {
	id := strings.TrimSpace(jobID)
	switch {
	case id == "":
		return "", &schema.ValidationError{Field: "id", Reason: "must not be empty"}
	case id == "." || id == "..":
		return "", &schema.ValidationError{Field: "id", Value: jobID, Reason: "must not be a relative path segment"}
	case strings.ContainsAny(id, `/\`):
		return "", &schema.ValidationError{Field: "id", Value: jobID, Reason: "must not contain path separators"}
	}
	return "crawl/" + url.PathEscape(id), nil
}

// statusSource adapts a Client to poller.StatusSource.
type statusSource struct {
	c *Client
}

func (s statusSource) Status(ctx context.Context, jobID string) (schema.CrawlStatus, error) {
	return s.c.GetCrawlStatus(ctx, jobID)
}

// Page follows a next cursor. Cursors are absolute URLs on the service
// origin or paths relative to the base URL.
func (s statusSource) Page(ctx context.Context, cursor string) (schema.CrawlStatus, error) {
	return s.c.fetchStatus(ctx, cursor)
}
