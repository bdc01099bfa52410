package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/internal/history"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the status of a crawl job",
		Long: `Status queries the service once for the state of a crawl job.

With --wait the job is polled until it finishes and its pages are written
like 'simplecrawl crawl' does. This resumes a crawl whose polling stopped
because --max-wait expired or the command was interrupted.

Examples:
  simplecrawl status 5f3c1c1e-9d3b-4a1e-8f7e-0c6d2b0e4a11
  simplecrawl status --wait 5f3c1c1e-9d3b-4a1e-8f7e-0c6d2b0e4a11`,
		Args: cobra.ExactArgs(1),
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("wait", "w", false, "Poll until the job finishes and write its pages")
	cmd.Flags().Duration("interval", config.DefaultPollInterval, "Pause between status queries")
	cmd.Flags().Duration("max-wait", 0, "Stop polling after this duration (0 waits until the job finishes)")
	addJobOutputFlags(cmd)

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}
	jobID := args[0]

	ctx, stop := signalContext(cmd)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}

	f, err := newJobFinisher(cmd, a)
	if err != nil {
		return err
	}
	defer f.close()

	var known *history.Job
	if f.store != nil {
		known, err = f.store.GetJob(ctx, jobID)
		if err != nil && !errors.Is(err, history.ErrJobNotFound) {
			a.logger.Warn("failed to read job history", "job_id", jobID, "error", err)
		}
	}

	if wait {
		job := schema.NewCrawlJob(jobID, "")
		if known != nil {
			job.URL = known.URL
			f.withNoise(a.cfg.File.GetSiteConfig(known.URL).ExcludeTags)
		}
		return f.poll(ctx, client, job)
	}

	status, err := client.GetCrawlStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", jobID, err)
	}

	if known != nil {
		snapshot := schema.NewCrawlJob(jobID, known.URL)
		snapshot.Status = status.Status
		snapshot.Total = status.Total
		snapshot.Completed = status.Completed
		snapshot.ExpiresAt = status.ExpiresAt
		record := history.FromCrawlJob(snapshot, "")
		record.Pages = known.Pages
		if err := f.store.SaveJob(ctx, record); err != nil {
			a.logger.Warn("failed to update job history", "job_id", jobID, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if f.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintf(out, "Job:       %s\n", jobID)
	if known != nil && known.URL != "" {
		fmt.Fprintf(out, "URL:       %s\n", known.URL)
	}
	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Progress:  %d/%d\n", status.Completed, status.Total)
	fmt.Fprintf(out, "Pages:     %d in this response\n", len(status.Data))
	if status.ExpiresAt != nil {
		fmt.Fprintf(out, "Expires:   %s\n", status.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if status.Next != "" {
		fmt.Fprintln(out, "More pages are available; use --wait to fetch all of them.")
	}
	return nil
}
