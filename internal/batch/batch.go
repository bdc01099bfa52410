package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of items processed at the same time when
// no concurrency is configured.
const DefaultConcurrency = 4

// Result is the outcome of one item.
type Result[In, Out any] struct {
	// Index is the position of Input in the original slice.
	Index int
	Input In
	Value Out
	Err   error
}

// Func processes one input.
type Func[In, Out any] func(ctx context.Context, input In) (Out, error)

// Processor holds the settings shared by batch runs.
type Processor struct {
	// concurrency is the maximum number of items in flight.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency sets the maximum number of concurrent items. Non-positive
// values keep DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger for batch progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Concurrency returns the configured concurrency limit.
func (p *Processor) Concurrency() int {
	return p.concurrency
}

// Run calls fn for every input and returns the results in input order.
func Run[In, Out any](ctx context.Context, p *Processor, inputs []In, fn Func[In, Out]) ([]Result[In, Out], error) {
	return RunWithCallback(ctx, p, inputs, fn, nil)
}

// RunWithCallback calls fn for every input with at most Concurrency calls in
// flight. A failed item is recorded in its Result and does not stop the
// batch. Items that have not started when ctx is cancelled are recorded with
// the context error, which is also returned.
//
// callback, when non-nil, receives every result exactly once in input order
// as soon as all earlier items have finished. Calls to callback are
// serialized.
func RunWithCallback[In, Out any](
	ctx context.Context,
	p *Processor,
	inputs []In,
	fn Func[In, Out],
	callback func(Result[In, Out]),
) ([]Result[In, Out], error) {
	p.logger.Debug("starting batch",
		"total", len(inputs),
		"concurrency", p.concurrency,
	)
	start := time.Now()

	results := make([]Result[In, Out], len(inputs))

	var (
		mu      sync.Mutex
		next    int
		pending = make(map[int]Result[In, Out])
	)
	deliver := func(r Result[In, Out]) {
		mu.Lock()
		defer mu.Unlock()

		results[r.Index] = r
		if callback == nil {
			return
		}
		pending[r.Index] = r
		for {
			ready, ok := pending[next]
			if !ok {
				return
			}
			delete(pending, next)
			next++
			callback(ready)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				deliver(Result[In, Out]{Index: i, Input: input, Err: err})
				return err
			}

			value, err := runItem(gctx, fn, input)
			if err != nil {
				p.logger.Debug("batch item failed", "index", i, "error", err)
			}
			deliver(Result[In, Out]{Index: i, Input: input, Value: value, Err: err})
			return nil
		})
	}

	err := g.Wait()

	p.logger.Debug("batch complete",
		"total", len(inputs),
		"failed", len(Failed(results)),
		"elapsed", time.Since(start),
	)

	if err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// runItem converts a panic in fn into an error so that one bad input cannot
// take down the whole batch.
func runItem[In, Out any](ctx context.Context, fn Func[In, Out], input In) (value Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, input)
}

// Failed returns the results that carry an error.
func Failed[In, Out any](results []Result[In, Out]) []Result[In, Out] {
	var failed []Result[In, Out]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Join combines the errors of failed results, or returns nil.
func Join[In, Out any](results []Result[In, Out]) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}
