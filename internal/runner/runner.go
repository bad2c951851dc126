package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crawlprobe/internal/probe"
)

// Result captures execution summary.
type Result struct {
	RequestsMade int64           // attempts submitted, always <= budget
	Batches      []int           // size of every dispatched batch, in order
	Outcomes     []probe.Outcome // one per submitted attempt, in submission order
	Interrupted  bool            // the context was cancelled before the budget was spent
	Duration     time.Duration
}

// Runner dispatches attempts in batches of at most Concurrency, waiting for
// each batch to drain before submitting the next one.
type Runner struct {
	opt Options
}

func New(opt Options) (*Runner, error) {
	if err := opt.validate(); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	opt.normalize()
	return &Runner{opt: opt}, nil
}

// Run spends the budget and returns once every submitted attempt completed.
// Cancelling ctx stops new batches from being submitted; attempts already
// in flight run to completion and are still counted.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	budget := int64(r.opt.Budget)
	concurrency := int64(r.opt.Concurrency)

	// In-flight attempts are never aborted by cancellation.
	attemptCtx := context.WithoutCancel(ctx)

	res := Result{
		Outcomes: make([]probe.Outcome, 0, r.opt.Budget),
	}

	r.opt.Logger.Infof("Starting load test with %d concurrent users", r.opt.Concurrency)
	r.opt.Logger.Infof("Maximum requests: %d", r.opt.Budget)

	for res.RequestsMade < budget {
		if ctx.Err() != nil {
			res.Interrupted = true
			r.opt.Logger.WithField("requests_made", res.RequestsMade).Warn("Interrupted, no further batches will be submitted")
			break
		}

		size := int(min(concurrency, budget-res.RequestsMade))
		batch := make([]probe.Outcome, size)

		var g errgroup.Group
		g.SetLimit(r.opt.Concurrency)
		for i := 0; i < size; i++ {
			path := r.opt.Paths.Pick()
			res.RequestsMade++
			i := i
			g.Go(func() error {
				batch[i] = r.opt.Executor.Execute(attemptCtx, path)
				return nil
			})
		}
		_ = g.Wait()

		res.Outcomes = append(res.Outcomes, batch...)
		res.Batches = append(res.Batches, size)
		r.opt.Logger.WithFields(logrus.Fields{
			"batch":         len(res.Batches),
			"requests_made": res.RequestsMade,
		}).Infof("Completed %d requests", res.RequestsMade)
	}

	res.Duration = time.Since(start)
	return res
}
