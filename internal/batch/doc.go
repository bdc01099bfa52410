// Package batch runs one operation over many inputs concurrently.
//
// The CLI uses it to scrape several URLs at once. Concurrency is bounded
// with errgroup.SetLimit, a failing item never stops the other items, and
// results are reported in input order regardless of completion order.
package batch
