// Package transport sends JSON requests to a firecrawl-simple service.
//
// A Client is bound to one absolute base URL and an optional bearer token.
// Every request is a single attempt: connection failures, timeouts and
// non-2xx responses are all returned as *Error carrying the HTTP status and
// response body when they exist. Nothing is retried at this layer.
//
// The underlying http.Client can optionally dial through a SOCKS5 proxy,
// throttle outgoing requests with a token bucket, and emit OpenTelemetry
// spans. A Client holds no mutable state after construction and may be shared
// by any number of goroutines.
package transport
