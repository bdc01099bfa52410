package poller

import (
	"time"

	"github.com/nao1215/simplecrawl/pkg/schema"
)

// Source tells Transition where an observation came from.
type Source int

const (
	// FromStatus is a status query of the job.
	FromStatus Source = iota

	// FromPage is a page-fetch that followed a pagination cursor. It
	// contributes content only; counts and status come from status queries.
	FromPage
)

// Observation is one response from the service.
type Observation struct {
	Source Source
	Status schema.CrawlStatus

	// Elapsed is the time since polling started.
	Elapsed time.Duration
}

// Action is what the poll loop has to do next.
type Action int

const (
	// ActionFetchPage requests the page at Step.Cursor.
	ActionFetchPage Action = iota + 1

	// ActionWait sleeps for Step.Wait and then queries the status again.
	ActionWait

	// ActionDone returns the completed job.
	ActionDone

	// ActionFail returns a *JobFailedError.
	ActionFail

	// ActionTimeout returns a *PollTimeoutError.
	ActionTimeout
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionFetchPage:
		return "fetch-page"
	case ActionWait:
		return "wait"
	case ActionDone:
		return "done"
	case ActionFail:
		return "fail"
	case ActionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Step is the output of Transition.
type Step struct {
	Action Action
	Cursor string
	Wait   time.Duration
}

// Limits are the timing parameters of a poll.
type Limits struct {
	// Interval is the pause between status queries.
	Interval time.Duration

	// MaxWait bounds the total polling time. Zero means no bound.
	MaxWait time.Duration
}

// State is the poller's knowledge of a job between observations.
type State struct {
	Job schema.CrawlJob

	// followed holds the cursors already fetched since the last status
	// query. A cursor seen twice in one round ends the round.
	followed map[string]struct{}
}

// NewState returns the initial state for job.
func NewState(job schema.CrawlJob) State {
	return State{Job: job.Clone()}
}

// Transition folds obs into s and decides the next step. It performs no I/O
// and does not modify s.
func Transition(s State, obs Observation, limits Limits) (State, Step) {
	next := State{Job: s.Job.Merge(obs.Status.Data)}

	if obs.Source == FromStatus {
		next.Job.Status = obs.Status.Status
		next.Job.Total = obs.Status.Total
		next.Job.Completed = obs.Status.Completed
		if obs.Status.ExpiresAt != nil {
			t := *obs.Status.ExpiresAt
			next.Job.ExpiresAt = &t
		}
		next.followed = map[string]struct{}{}
	} else {
		next.followed = make(map[string]struct{}, len(s.followed)+1)
		for cursor := range s.followed {
			next.followed[cursor] = struct{}{}
		}
	}
	next.Job.Next = obs.Status.Next

	if cursor := obs.Status.Next; cursor != "" {
		if _, done := next.followed[cursor]; !done {
			next.followed[cursor] = struct{}{}
			return next, Step{Action: ActionFetchPage, Cursor: cursor}
		}
	}

	switch next.Job.Status {
	case schema.StatusCompleted:
		return next, Step{Action: ActionDone}
	case schema.StatusFailed, schema.StatusCancelled:
		return next, Step{Action: ActionFail}
	}

	if limits.MaxWait > 0 && obs.Elapsed >= limits.MaxWait {
		return next, Step{Action: ActionTimeout}
	}

	wait := limits.Interval
	if limits.MaxWait > 0 {
		if remaining := limits.MaxWait - obs.Elapsed; remaining < wait {
			wait = remaining
		}
	}
	return next, Step{Action: ActionWait, Wait: wait}
}
