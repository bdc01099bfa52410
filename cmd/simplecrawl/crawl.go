package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/internal/history"
	"github.com/nao1215/simplecrawl/internal/output"
	"github.com/nao1215/simplecrawl/pkg/firecrawl"
	"github.com/nao1215/simplecrawl/pkg/poller"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl URL",
		Short: "Crawl a site and wait for the job to finish",
		Long: `Crawl submits a crawl job for URL and polls it until it finishes.

Every page of the job is written below <output>/<job ID>: raw/ holds the
content as returned by the service, cleaned/ holds markdown produced from the
HTML of each page and summary.md describes the job. Jobs are recorded in the
local history (see 'simplecrawl history').

When --max-wait expires the job keeps running on the service. The pages
received so far are written and the command exits with status 2; resume
with 'simplecrawl status --wait <job ID>'.

Examples:
  # Crawl two levels deep, at most 50 pages
  simplecrawl crawl -d 2 -l 50 https://docs.example.com

  # Only crawl the blog and give up waiting after ten minutes
  simplecrawl crawl --include '/blog/*' --max-wait 10m https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("depth", "d", schema.DefaultCrawlMaxDepth, "Maximum link depth from the seed URL")
	cmd.Flags().IntP("limit", "l", schema.DefaultCrawlLimit, "Maximum number of pages")
	cmd.Flags().StringSlice("include", nil, "Only crawl paths matching these globs")
	cmd.Flags().StringSlice("exclude", nil, "Never crawl paths matching these globs")
	cmd.Flags().StringSliceP("format", "F", []string{"markdown", "html"}, "Output formats of each page")
	cmd.Flags().StringSliceP("header", "H", nil, `Header sent when fetching pages ("Name: value")`)
	cmd.Flags().StringSlice("exclude-tag", nil, "Remove these HTML tags or selectors before extraction")
	cmd.Flags().Bool("use-sitemap", false, "Discover pages from sitemap.xml")
	cmd.Flags().Bool("allow-backward-links", false, "Follow links to pages above the seed path")
	cmd.Flags().Bool("allow-external-links", false, "Follow links to other sites")
	cmd.Flags().String("webhook", "", "URL notified by the service about job progress")
	cmd.Flags().Duration("interval", config.DefaultPollInterval, "Pause between status queries")
	cmd.Flags().Duration("max-wait", 0, "Stop polling after this duration (0 waits until the job finishes)")
	addJobOutputFlags(cmd)

	return cmd
}

// addJobOutputFlags adds the flags of commands that write crawl jobs.
func addJobOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Output directory (default: <data-dir>/output)")
	cmd.Flags().Int("threshold", config.DefaultCleanThreshold, "Minimum length of text blocks kept in cleaned output")
	cmd.Flags().Bool("no-clean", false, "Do not write cleaned output")
	cmd.Flags().Bool("no-progress", false, "Do not show the progress spinner")
	cmd.Flags().Bool("no-history", false, "Do not record the job in the history")
	cmd.Flags().Bool("json", false, "Print the final job as JSON to stdout")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	seed := args[0]

	opts, err := crawlOptions(cmd, a.cfg.File.GetSiteConfig(seed))
	if err != nil {
		return err
	}
	// Validate before anything is submitted or recorded.
	if _, err := schema.NewCrawlRequest(seed, opts); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}

	job, err := client.StartCrawl(ctx, seed, opts)
	if err != nil {
		return fmt.Errorf("failed to start crawl: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Started crawl job %s\n", job.ID)
	a.logger.Debug("crawl job submitted", "job_id", job.ID, "url", job.URL)

	f, err := newJobFinisher(cmd, a)
	if err != nil {
		return err
	}
	defer f.close()
	f.withNoise(opts.ScrapeOptions.ExcludeTags)

	f.record(ctx, job, "")
	return f.poll(ctx, client, job)
}

// crawlOptions builds crawl options from the flags of cmd, falling back to
// the site configuration for values the user did not set.
func crawlOptions(cmd *cobra.Command, site config.SiteConfig) (schema.CrawlOptions, error) {
	r := &flagReader{flags: cmd.Flags()}
	depth := r.integer("depth")
	limit := r.integer("limit")
	include := r.strings("include")
	exclude := r.strings("exclude")
	formatNames := r.strings("format")
	headerPairs := r.strings("header")
	excludeTags := r.strings("exclude-tag")
	useSitemap := r.boolean("use-sitemap")
	backward := r.boolean("allow-backward-links")
	external := r.boolean("allow-external-links")
	webhook := r.str("webhook")
	if r.err != nil {
		return schema.CrawlOptions{}, r.err
	}

	if !r.changed("depth") && site.Depth > 0 {
		depth = site.Depth
	}
	if !r.changed("limit") && site.Limit > 0 {
		limit = site.Limit
	}
	if !r.changed("format") && len(site.Formats) > 0 {
		formatNames = site.Formats
	}

	formats, err := parseFormats(formatNames)
	if err != nil {
		return schema.CrawlOptions{}, err
	}
	headers, err := parseHeaders(site.Headers, headerPairs)
	if err != nil {
		return schema.CrawlOptions{}, err
	}

	return schema.CrawlOptions{
		IncludePaths:       firstNonEmpty(include, site.IncludePaths),
		ExcludePaths:       firstNonEmpty(exclude, site.ExcludePaths),
		MaxDepth:           schema.Int(depth),
		Limit:              schema.Int(limit),
		IgnoreSitemap:      schema.Bool(!useSitemap),
		AllowBackwardLinks: backward,
		AllowExternalLinks: external,
		Webhook:            webhook,
		ScrapeOptions: schema.CrawlScrapeOptions{
			Formats:     formats,
			Headers:     headers,
			ExcludeTags: firstNonEmpty(excludeTags, site.ExcludeTags),
		},
	}, nil
}

// jobFinisher polls crawl jobs and persists what they produced.
type jobFinisher struct {
	app      *app
	out      io.Writer
	errOut   io.Writer
	writer   *output.Writer
	store    *history.Store
	progress bool
	json     bool

	// clean is false when --no-clean was given.
	clean bool
}

func newJobFinisher(cmd *cobra.Command, a *app) (*jobFinisher, error) {
	r := &flagReader{flags: cmd.Flags()}
	noClean := r.boolean("no-clean")
	noProgress := r.boolean("no-progress")
	noHistory := r.boolean("no-history")
	jsonOutput := r.boolean("json")
	if r.err != nil {
		return nil, r.err
	}

	f := &jobFinisher{
		app:      a,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		progress: !noProgress,
		json:     jsonOutput,
		clean:    !noClean,
	}
	f.withNoise(nil)
	if !noHistory {
		f.store = a.openHistory()
	}
	return f, nil
}

// withNoise makes cleaned output also drop elements matching selectors,
// normally the excludeTags sent with the crawl.
func (f *jobFinisher) withNoise(selectors []string) {
	var opts []output.Option
	if f.clean {
		opts = append(opts, output.WithCleaning(f.app.cfg.CleanThreshold, f.app.cleaningNoise(selectors)...))
	}
	f.writer = output.NewWriter(f.app.cfg.OutputDir, opts...)
}

func (f *jobFinisher) close() {
	if f.store != nil {
		if err := f.store.Close(); err != nil {
			f.app.logger.Warn("failed to close job history", "error", err)
		}
	}
}

// poll observes job until it is terminal, the maximum wait expires or ctx is
// cancelled, then writes and records whatever was received.
func (f *jobFinisher) poll(ctx context.Context, client *firecrawl.Client, job schema.CrawlJob) error {
	sp := f.startSpinner(job.ID)
	observer := func(snapshot schema.CrawlJob) {
		f.app.logger.Debug("crawl status",
			"job_id", snapshot.ID,
			"status", snapshot.Status,
			"completed", snapshot.Completed,
			"total", snapshot.Total,
			"pages", len(snapshot.Results),
		)
		if sp != nil {
			sp.Lock()
			sp.Suffix = fmt.Sprintf(" %s %s %d/%d", snapshot.ID, snapshot.Status, snapshot.Completed, snapshot.Total)
			sp.Unlock()
		}
	}

	final, pollErr := client.PollCrawl(ctx, job, poller.WithObserver(observer))
	if sp != nil {
		sp.Stop()
	}

	// Persist with a fresh context so that an interrupted poll still saves
	// the pages received so far.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := f.finish(saveCtx, final); err != nil {
		return errors.Join(pollErr, err)
	}

	var timeout *poller.PollTimeoutError
	switch {
	case pollErr == nil:
	case errors.As(pollErr, &timeout):
		fmt.Fprintf(f.errOut, "Job %s is still running on the service; resume with 'simplecrawl status --wait %s'\n",
			final.ID, final.ID)
	case errors.Is(pollErr, context.Canceled):
		fmt.Fprintf(f.errOut, "Stopped waiting; job %s keeps running. Stop it with 'simplecrawl cancel %s'\n",
			final.ID, final.ID)
	}
	return pollErr
}

// finish writes the pages and summary of job, records it in the history and
// prints the outcome.
func (f *jobFinisher) finish(ctx context.Context, job schema.CrawlJob) error {
	files, err := f.writer.WriteJob(job)
	if err != nil {
		return fmt.Errorf("failed to write crawl output: %w", err)
	}
	f.record(ctx, job, files.Dir)
	f.recordPages(ctx, job.ID, files)

	if f.json {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		return nil
	}
	fmt.Fprintf(f.out, "Crawl %s %s: %d/%d pages, %d written to %s\n",
		job.ID, job.Status, job.Completed, job.Total, len(files.Pages), files.Dir)
	return nil
}

// record saves job in the history. Failures are logged only.
func (f *jobFinisher) record(ctx context.Context, job schema.CrawlJob, outputDir string) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveJob(ctx, history.FromCrawlJob(job, outputDir)); err != nil {
		f.app.logger.Warn("failed to record job", "job_id", job.ID, "error", err)
	}
}

func (f *jobFinisher) recordPages(ctx context.Context, jobID string, files *output.JobFiles) {
	if f.store == nil || len(files.Pages) == 0 {
		return
	}
	pages := make([]history.Page, 0, len(files.Pages))
	for _, p := range files.Pages {
		path := p.Cleaned
		if path == "" && len(p.Raw) > 0 {
			path = p.Raw[0]
		}
		if rel, err := filepath.Rel(files.Dir, path); err == nil && path != "" {
			path = rel
		}
		pages = append(pages, history.Page{
			SourceURL:  p.SourceURL,
			StatusCode: p.StatusCode,
			Title:      p.Title,
			Path:       filepath.ToSlash(path),
		})
	}
	if err := f.store.SavePages(ctx, jobID, pages); err != nil {
		f.app.logger.Warn("failed to record pages", "job_id", jobID, "error", err)
	}
}

// startSpinner starts a progress spinner on stderr. It returns nil when
// progress is disabled; the spinner itself stays silent when stderr is not
// a terminal.
func (f *jobFinisher) startSpinner(jobID string) *spinner.Spinner {
	if !f.progress || f.app.cfg.Verbose {
		return nil
	}
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr))
	sp.Suffix = " " + jobID + " submitted"
	sp.Start()
	return sp
}
