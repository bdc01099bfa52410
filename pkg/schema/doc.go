// Package schema defines the request and response envelopes exchanged with a
// firecrawl-simple service.
//
// Requests are built through validating constructors (NewScrapeRequest,
// NewCrawlRequest, NewMapRequest) that normalize caller input and apply the
// service defaults. A request value returned by a constructor is complete and
// ready to be serialized; callers should not mutate it afterwards.
//
// Responses are decoded with the Parse* functions. Decoding is lenient on
// fields the client does not know about, so newer service versions keep
// working, but strict on the fields the client depends on: a missing status,
// a missing scrape payload, or a page without source URL is reported as a
// *ValidationError.
package schema
