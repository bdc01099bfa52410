package poller

import (
	"fmt"
	"time"

	"github.com/nao1215/simplecrawl/pkg/schema"
)

// PollTimeoutError is returned when a job is still running after the
// configured maximum wait. Job holds every page accumulated so far; polling
// the same job ID again resumes observation.
type PollTimeoutError struct {
	JobID   string
	Elapsed time.Duration
	MaxWait time.Duration
	Job     schema.CrawlJob
}

// Error implements the error interface.
func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("crawl job %s still %s after %s (max wait %s, %d/%d pages)",
		e.JobID, e.Job.Status, e.Elapsed.Round(time.Millisecond), e.MaxWait,
		e.Job.Completed, e.Job.Total)
}

// JobFailedError is returned when a job ends in the failed or cancelled
// state. Job is the last state reported by the service.
type JobFailedError struct {
	Job schema.CrawlJob
}

// Error implements the error interface.
func (e *JobFailedError) Error() string {
	return fmt.Sprintf("crawl job %s %s (%d/%d pages)",
		e.Job.ID, e.Job.Status, e.Job.Completed, e.Job.Total)
}

// Cancelled reports whether the job was cancelled rather than failed.
func (e *JobFailedError) Cancelled() bool {
	return e.Job.Status == schema.StatusCancelled
}
