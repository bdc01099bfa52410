package poller

import (
	"context"
	"time"

	"github.com/nao1215/simplecrawl/pkg/schema"
)

// DefaultInterval is the pause between status queries.
const DefaultInterval = 2 * time.Second

// StatusSource queries the service.
type StatusSource interface {
	// Status returns the current status of the job.
	Status(ctx context.Context, jobID string) (schema.CrawlStatus, error)

	// Page follows a pagination cursor returned in a previous response.
	Page(ctx context.Context, cursor string) (schema.CrawlStatus, error)
}

// Poller polls crawl jobs until they reach a terminal state.
type Poller struct {
	source   StatusSource
	limits   Limits
	waiter   Waiter
	clock    Clock
	observer func(schema.CrawlJob)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the pause between status queries. Non-positive values
// keep DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.limits.Interval = d
		}
	}
}

// WithMaxWait bounds the total polling time. Zero disables the bound.
func WithMaxWait(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.limits.MaxWait = d
		}
	}
}

// WithWaiter sets how the poller waits. The default is ContextWaiter.
func WithWaiter(w Waiter) Option {
	return func(p *Poller) {
		if w != nil {
			p.waiter = w
		}
	}
}

// WithClock sets the time source used to measure elapsed time.
func WithClock(c Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithObserver registers fn to receive a snapshot after every status query,
// once the pages it announced have been fetched. fn runs on the polling
// goroutine and must not block for long.
func WithObserver(fn func(schema.CrawlJob)) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// New creates a Poller reading from source.
func New(source StatusSource, opts ...Option) *Poller {
	p := &Poller{
		source: source,
		limits: Limits{Interval: DefaultInterval},
		waiter: ContextWaiter{},
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limits returns the timing parameters of p.
func (p *Poller) Limits() Limits {
	return p.limits
}

// PollUntilTerminal polls jobID until it is terminal. See Poll.
func (p *Poller) PollUntilTerminal(ctx context.Context, jobID string) (schema.CrawlJob, error) {
	return p.Poll(ctx, schema.NewCrawlJob(jobID, ""))
}

// Poll observes job until it reaches a terminal state. The first status
// query is issued immediately.
//
// A completed job is returned with a nil error. A failed or cancelled job
// yields *JobFailedError and a job still running after the maximum wait
// yields *PollTimeoutError. Errors from the StatusSource and the Waiter are
// returned unchanged. In every case the returned job is the last known
// snapshot, including all pages accumulated so far.
func (p *Poller) Poll(ctx context.Context, job schema.CrawlJob) (schema.CrawlJob, error) {
	start := p.clock.Now()
	state := NewState(job)

	status, err := p.source.Status(ctx, job.ID)
	if err != nil {
		return state.Job, err
	}
	obs := Observation{Source: FromStatus, Status: status, Elapsed: p.elapsed(start)}

	for {
		var step Step
		state, step = Transition(state, obs, p.limits)

		if step.Action != ActionFetchPage && p.observer != nil {
			p.observer(state.Job.Clone())
		}

		switch step.Action {
		case ActionFetchPage:
			page, err := p.source.Page(ctx, step.Cursor)
			if err != nil {
				return state.Job, err
			}
			obs = Observation{Source: FromPage, Status: page, Elapsed: p.elapsed(start)}
			continue

		case ActionDone:
			return state.Job, nil

		case ActionFail:
			return state.Job, &JobFailedError{Job: state.Job.Clone()}

		case ActionTimeout:
			return state.Job, &PollTimeoutError{
				JobID:   state.Job.ID,
				Elapsed: obs.Elapsed,
				MaxWait: p.limits.MaxWait,
				Job:     state.Job.Clone(),
			}

		case ActionWait:
			if err := p.waiter.Wait(ctx, step.Wait); err != nil {
				return state.Job, err
			}
		}

		status, err := p.source.Status(ctx, job.ID)
		if err != nil {
			return state.Job, err
		}
		obs = Observation{Source: FromStatus, Status: status, Elapsed: p.elapsed(start)}
	}
}

func (p *Poller) elapsed(start time.Time) time.Duration {
	return p.clock.Now().Sub(start)
}
