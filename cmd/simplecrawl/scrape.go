package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/internal/batch"
	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/internal/output"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// scrapeOutcome is the result of scraping one URL.
type scrapeOutcome struct {
	Page  schema.ScrapeResult
	Files output.PageFiles
}

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape URL...",
		Short: "Scrape one or more pages",
		Long: `Scrape fetches each URL through the service and writes the result.

Pages are written below the output directory in a directory named after the
scrape run: raw/ holds markdown and HTML exactly as returned by the service
and cleaned/ holds markdown produced from the HTML with navigation and short
boilerplate blocks removed. With --json the results are printed to stdout
instead.

URLs are scraped concurrently (see --batch). A failed URL does not stop the
others; the command fails if any URL failed.

Examples:
  # Scrape a page as markdown
  simplecrawl scrape https://example.com

  # Scrape several pages, also requesting HTML so that cleaned output is written
  simplecrawl scrape -F markdown,html https://example.com/a https://example.com/b

  # Print the result as JSON
  simplecrawl scrape --json https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringSliceP("format", "F", nil,
		"Output formats: markdown, html, rawHtml, links, screenshot, screenshot@fullPage (default: markdown)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of URLs scraped concurrently")
	cmd.Flags().StringP("output", "o", "", "Output directory (default: <data-dir>/output)")
	cmd.Flags().Int("threshold", config.DefaultCleanThreshold, "Minimum length of text blocks kept in cleaned output")
	cmd.Flags().Bool("no-clean", false, "Do not write cleaned output")
	cmd.Flags().Bool("json", false, "Print results as JSON to stdout instead of writing files")
	cmd.Flags().StringSliceP("header", "H", nil, `Header sent when fetching the page ("Name: value")`)
	cmd.Flags().StringSlice("include-tag", nil, "Only extract these HTML tags or selectors")
	cmd.Flags().StringSlice("exclude-tag", nil, "Remove these HTML tags or selectors before extraction")
	cmd.Flags().Int("wait-for", 0, "Delay before scraping in milliseconds")
	cmd.Flags().Int("page-timeout", 0, "Page load timeout in milliseconds (default: service default)")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	r := &flagReader{flags: cmd.Flags()}
	formatNames := r.strings("format")
	headerPairs := r.strings("header")
	includeTags := r.strings("include-tag")
	excludeTags := r.strings("exclude-tag")
	waitFor := r.integer("wait-for")
	pageTimeout := r.integer("page-timeout")
	noClean := r.boolean("no-clean")
	jsonOutput := r.boolean("json")
	if r.err != nil {
		return r.err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}

	runID := "scrape-" + uuid.Must(uuid.NewV7()).String()

	scrapeOne := func(ctx context.Context, rawURL string) (scrapeOutcome, error) {
		site := a.cfg.File.GetSiteConfig(rawURL)
		opts, err := scrapeOptions(site, formatNames, headerPairs, includeTags, excludeTags)
		if err != nil {
			return scrapeOutcome{}, err
		}
		opts.WaitFor = waitFor
		opts.Timeout = pageTimeout

		page, err := client.Scrape(ctx, rawURL, opts)
		if err != nil {
			return scrapeOutcome{}, err
		}
		if jsonOutput {
			return scrapeOutcome{Page: page}, nil
		}
		var writerOpts []output.Option
		if !noClean {
			writerOpts = append(writerOpts, output.WithCleaning(a.cfg.CleanThreshold, a.cleaningNoise(opts.ExcludeTags)...))
		}
		files, err := output.NewWriter(a.cfg.OutputDir, writerOpts...).WritePage(runID, page)
		if err != nil {
			return scrapeOutcome{}, err
		}
		return scrapeOutcome{Page: page, Files: files}, nil
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	total := len(args)
	processor := batch.New(batch.WithConcurrency(a.cfg.BatchSize), batch.WithLogger(a.logger))

	results, runErr := batch.RunWithCallback(ctx, processor, args, scrapeOne,
		func(res batch.Result[string, scrapeOutcome]) {
			if res.Err != nil {
				fmt.Fprintf(errOut, "[%d/%d] %s: %v\n", res.Index+1, total, res.Input, res.Err)
				return
			}
			if jsonOutput {
				return
			}
			target := "-"
			if res.Value.Files.Cleaned != "" {
				target = res.Value.Files.Cleaned
			} else if len(res.Value.Files.Raw) > 0 {
				target = res.Value.Files.Raw[0]
			}
			fmt.Fprintf(errOut, "[%d/%d] %s -> %s\n", res.Index+1, total, res.Input, target)
		})

	if jsonOutput {
		pages := make([]schema.ScrapeResult, 0, len(results))
		for _, res := range results {
			if res.Err == nil {
				pages = append(pages, res.Value.Page)
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pages); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	} else if succeeded := total - len(batch.Failed(results)); succeeded > 0 {
		dir, err := output.NewWriter(a.cfg.OutputDir).JobDir(runID)
		if err == nil {
			fmt.Fprintf(out, "Wrote %d page(s) to %s\n", succeeded, dir)
		}
	}

	if runErr != nil {
		return runErr
	}
	failed := batch.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == 1 {
		return failed[0].Err
	}
	return fmt.Errorf("%d of %d scrape(s) failed: %w", len(failed), total, batch.Join(results))
}

// scrapeOptions merges the command line options with the site configuration.
// Command line values take precedence; headers are merged by name.
func scrapeOptions(site config.SiteConfig, formatNames, headerPairs, includeTags, excludeTags []string) (schema.ScrapeOptions, error) {
	formats, err := parseFormats(firstNonEmpty(formatNames, site.Formats))
	if err != nil {
		return schema.ScrapeOptions{}, err
	}
	headers, err := parseHeaders(site.Headers, headerPairs)
	if err != nil {
		return schema.ScrapeOptions{}, err
	}
	return schema.ScrapeOptions{
		Formats:     formats,
		Headers:     headers,
		IncludeTags: includeTags,
		ExcludeTags: firstNonEmpty(excludeTags, site.ExcludeTags),
	}, nil
}
