// Package main provides the entry point for the simplecrawl CLI.
//
// simplecrawl drives a self-hosted firecrawl-simple service: it scrapes
// single pages, runs crawl jobs to completion, maps sites and keeps a local
// history of crawl jobs.
//
// Usage:
//
//	simplecrawl scrape <url>...
//	simplecrawl crawl <url>
//	simplecrawl map <url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
