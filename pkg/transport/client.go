package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// Default transport settings.
const (
	// DefaultTimeout bounds one request including reading the response body.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read. Crawl
	// pages with html and rawHtml formats can be large, so the limit is
	// generous.
	DefaultMaxBodySize = 64 * 1024 * 1024

	// DefaultUserAgent identifies the client in service logs.
	DefaultUserAgent = "simplecrawl/1.0 (+https://github.com/nao1215/simplecrawl)"

	// RequestIDHeader carries a unique identifier per request.
	RequestIDHeader = "X-Request-ID"

	// maxRedirects stops redirect loops.
	maxRedirects = 10
)

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client sends requests relative to a base URL.
type Client struct {
	// baseURL is the absolute service endpoint, e.g. http://localhost:3002/v1.
	baseURL *url.URL

	// httpClient carries the header injection, tracing and proxy layers.
	httpClient *http.Client

	// limiter throttles outgoing requests. Nil when rate limiting is off.
	limiter *rate.Limiter

	// logger receives Debug level request traces.
	logger *slog.Logger

	// maxBodySize limits response body reads.
	maxBodySize int64
}

type options struct {
	token        string
	userAgent    string
	timeout      time.Duration
	proxyAddress string
	ratePerSec   float64
	burst        int
	tracing      bool
	tracer       trace.TracerProvider
	metrics      *Metrics
	logger       *slog.Logger
	maxBodySize  int64
	base         http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithToken attaches "Authorization: Bearer <token>" to every request sent
// to the base URL origin. An empty token disables the header.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithTimeout sets the per-request timeout. Zero or negative values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithProxy routes connections through the SOCKS5 proxy at address
// ("host:port").
func WithProxy(address string) Option {
	return func(o *options) {
		o.proxyAddress = address
	}
}

// WithRateLimit allows at most perSecond requests per second with the given
// burst. A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.ratePerSec = perSecond
		o.burst = burst
	}
}

// WithTracing wraps the transport with OpenTelemetry HTTP instrumentation.
// Spans go to the globally registered tracer provider unless
// WithTracerProvider names another one. The W3C traceparent and baggage
// headers are sent with every request.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracing = enabled
	}
}

// WithTracerProvider enables tracing with spans recorded by tp. A nil tp
// leaves the tracing setting unchanged.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracing = true
			o.tracer = tp
		}
	}
}

// WithMetrics records request counts and latencies in m. A nil m disables
// metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger used for Debug level request traces.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// WithRoundTripper replaces the network layer. Header injection and tracing
// are still applied on top of it. Intended for tests and custom dialers.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// New creates a Client for baseURL. It validates the configuration but does
// not contact the service.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	o := options{
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rt := o.base
	if rt == nil {
		rt, err = newNetworkTransport(o.proxyAddress)
		if err != nil {
			return nil, err
		}
	}
	if o.metrics != nil {
		rt = o.metrics.instrument(rt)
	}
	if o.tracing {
		traceOpts := []otelhttp.Option{
			otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			)),
		}
		if o.tracer != nil {
			traceOpts = append(traceOpts, otelhttp.WithTracerProvider(o.tracer))
		}
		rt = otelhttp.NewTransport(rt, traceOpts...)
	}
	rt = &headerInjectingTransport{
		base:      rt,
		origin:    base,
		token:     o.token,
		userAgent: o.userAgent,
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   o.timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger:      o.logger,
		maxBodySize: o.maxBodySize,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if o.ratePerSec > 0 {
		burst := o.burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.ratePerSec), burst)
	}
	return c, nil
}

// parseBaseURL accepts absolute http(s) URLs only.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidBaseURL, raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	u.Scheme = scheme
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// newNetworkTransport builds the connection layer, dialing through a SOCKS5
// proxy when proxyAddress is set.
func newNetworkTransport(proxyAddress string) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if proxyAddress == "" {
		return transport, nil
	}

	if !IsValidProxyAddress(proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
	}
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	transport.Proxy = nil
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}
	return transport, nil
}

// IsValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1..65535.
func IsValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// BaseURL returns a copy of the configured base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Resolve turns ref into an absolute URL. Relative references are appended
// to the base URL path; absolute references must share the base URL origin.
func (c *Client) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid request reference %q: %w", ref, err)
	}

	if r.IsAbs() {
		if !sameOrigin(r, c.baseURL) {
			return nil, fmt.Errorf("%w: %s", ErrForeignOrigin, r.Redacted())
		}
		return r, nil
	}

	u := c.baseURL.JoinPath(r.EscapedPath())
	u.RawQuery = r.RawQuery
	return u, nil
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(hostPort(a), hostPort(b))
}

// hostPort returns "host:port" of u with the scheme's default port filled
// in.
func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Send issues one request. ref is resolved with Resolve. A non-nil body is
// encoded as UTF-8 JSON. Any failure, including a non-2xx status, is
// returned as *Error.
func (c *Client) Send(ctx context.Context, method, ref string, body any, headers http.Header) (*Response, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, &Error{Method: method, URL: ref, Err: err}
	}
	endpoint := target.String()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Method: method, URL: endpoint, Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Method: method, URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Method: method, URL: endpoint, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &Error{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	tooLarge := int64(len(data)) > c.maxBodySize
	if tooLarge {
		data = data[:c.maxBodySize]
	}

	c.logger.DebugContext(ctx, "request completed",
		"method", method,
		"path", target.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
		"request_id", req.Header.Get(RequestIDHeader),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if tooLarge {
		return nil, &Error{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.maxBodySize),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, ref string) (*Response, error) {
	return c.Send(ctx, http.MethodGet, ref, nil, nil)
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, ref string, body any) (*Response, error) {
	return c.Send(ctx, http.MethodPost, ref, body, nil)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, ref string) (*Response, error) {
	return c.Send(ctx, http.MethodDelete, ref, nil, nil)
}
