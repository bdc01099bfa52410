package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/simplecrawl/internal/config"
	"github.com/nao1215/simplecrawl/internal/history"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [JOB_ID]",
		Short: "List recorded crawl jobs",
		Long: `History lists the crawl jobs recorded by 'simplecrawl crawl', most recently
updated first. With a job ID it shows the job and the pages written for it.

The history is stored in simplecrawl.db below --data-dir.

Examples:
  # Show the last 20 jobs
  simplecrawl history

  # Show one job with its pages
  simplecrawl history 5f3c1c1e-9d3b-4a1e-8f7e-0c6d2b0e4a11

  # Forget a job
  simplecrawl history --delete 5f3c1c1e-9d3b-4a1e-8f7e-0c6d2b0e4a11`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit, "Number of jobs to list (0 lists all)")
	cmd.Flags().Bool("delete", false, "Delete the given job from the history")
	cmd.Flags().Bool("json", false, "Print records as JSON")

	return cmd
}

// historyEntry is the JSON form of a recorded job.
type historyEntry struct {
	history.Job
	PageFiles []history.Page `json:"PageFiles,omitempty"`
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	r := &flagReader{flags: cmd.Flags()}
	limit := r.integer("limit")
	remove := r.boolean("delete")
	jsonOutput := r.boolean("json")
	if r.err != nil {
		return r.err
	}
	if remove && len(args) == 0 {
		return errors.New("--delete requires a job ID")
	}

	store, err := history.Open(cfg.DBDir, history.DefaultOptions())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		jobID := args[0]
		if remove {
			if err := store.DeleteJob(ctx, jobID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %s from history\n", jobID)
			return nil
		}

		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("%s: %w", jobID, err)
		}
		pages, err := store.Pages(ctx, jobID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, historyEntry{Job: *job, PageFiles: pages})
		}
		return writeHistoryJob(out, job, pages)
	}

	jobs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, jobs)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No crawl jobs recorded.")
		return nil
	}

	rows := make([][]string, len(jobs))
	for i, j := range jobs {
		rows[i] = []string{
			j.ID,
			orDash(j.URL),
			string(j.Status),
			strconv.Itoa(j.Completed) + "/" + strconv.Itoa(j.Total),
			strconv.Itoa(j.Pages),
			j.UpdatedAt.Local().Format(time.DateTime),
		}
	}
	return markdown.NewMarkdown(out).
		Table(markdown.TableSet{
			Header: []string{"Job ID", "URL", "Status", "Progress", "Pages", "Updated"},
			Rows:   rows,
		}).
		Build()
}

func writeHistoryJob(w io.Writer, job *history.Job, pages []history.Page) error {
	expires := "-"
	if job.ExpiresAt != nil {
		expires = job.ExpiresAt.Local().Format(time.DateTime)
	}

	md := markdown.NewMarkdown(w).
		H2("Crawl " + job.ID).
		Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"URL", orDash(job.URL)},
				{"Status", string(job.Status)},
				{"Progress", strconv.Itoa(job.Completed) + "/" + strconv.Itoa(job.Total)},
				{"Output", orDash(job.OutputDir)},
				{"Expires", expires},
				{"Created", job.CreatedAt.Local().Format(time.DateTime)},
				{"Updated", job.UpdatedAt.Local().Format(time.DateTime)},
			},
		})

	if len(pages) > 0 {
		rows := make([][]string, len(pages))
		for i, p := range pages {
			rows[i] = []string{p.SourceURL, strconv.Itoa(p.StatusCode), orDash(p.Title), orDash(p.Path)}
		}
		md.H3("Pages").Table(markdown.TableSet{
			Header: []string{"Source URL", "Status", "Title", "File"},
			Rows:   rows,
		})
	}
	return md.Build()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
