// Package runner provides the dispatch loop for crawlprobe.
//
// The runner spends a fixed request budget in batches. Each batch holds
// min(concurrency, remaining budget) attempts, runs them on a bounded
// errgroup and is fully drained before the next batch is submitted, so at
// most Concurrency attempts are ever in flight and the pacing between batches
// is set by the slowest attempt plus its post-request delay.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Budget:      100,
//		Concurrency: 5,
//		Paths:       pathPicker,
//		Executor:    executor,
//		Logger:      logger,
//	})
//	if err != nil {
//		return err
//	}
//	result := r.Run(ctx)
//
// # Executor Interface
//
// The [Executor] interface defines what a runner dispatches:
//
//	type Executor interface {
//		Execute(ctx context.Context, path string) probe.Outcome
//	}
//
// Executors never fail; success and failure are carried in the Outcome and
// recorded by the executor itself.
package runner
