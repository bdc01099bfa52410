// Package config provides the configuration of the simplecrawl command: the
// connection to the firecrawl-simple service, crawl polling, output layout
// and per-site crawl defaults loaded from a .simplecrawl YAML file.
package config
