package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/internal/history"
	"github.com/nao1215/simplecrawl/pkg/schema"
)

// NewCancelCmd creates the cancel command.
func NewCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a running crawl job",
		Long: `Cancel asks the service to stop a crawl job. Pages already scraped stay
available through 'simplecrawl status' until the job expires.`,
		Args: cobra.ExactArgs(1),
		RunE: runCancelCmd,
	}
}

// runCancelCmd executes the cancel command.
func runCancelCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	jobID := args[0]

	ctx, stop := signalContext(cmd)
	defer stop()

	client, err := a.client()
	if err != nil {
		return err
	}

	ok, err := client.CancelCrawl(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to cancel %s: %w", jobID, err)
	}
	if !ok {
		return fmt.Errorf("the service did not acknowledge cancellation of %s", jobID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancelled crawl job %s\n", jobID)

	store := a.openHistory()
	if store == nil {
		return nil
	}
	defer store.Close()

	job, err := store.GetJob(ctx, jobID)
	switch {
	case errors.Is(err, history.ErrJobNotFound):
		return nil
	case err != nil:
		a.logger.Warn("failed to read job history", "job_id", jobID, "error", err)
		return nil
	}
	job.Status = schema.StatusCancelled
	if err := store.SaveJob(ctx, *job); err != nil {
		a.logger.Warn("failed to update job history", "job_id", jobID, "error", err)
	}
	return nil
}
