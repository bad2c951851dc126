package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crawlprobe/internal/config"
	"github.com/torosent/crawlprobe/internal/httpclient"
	"github.com/torosent/crawlprobe/internal/logging"
	"github.com/torosent/crawlprobe/internal/metrics"
	"github.com/torosent/crawlprobe/internal/output"
	"github.com/torosent/crawlprobe/internal/pick"
	"github.com/torosent/crawlprobe/internal/probe"
	"github.com/torosent/crawlprobe/internal/promexport"
	"github.com/torosent/crawlprobe/internal/runner"
	"github.com/torosent/crawlprobe/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads the configuration, executes one load test and writes the report.
// Request failures do not make it return an error; only configuration and
// setup problems do.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	base, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	runID := ulid.Make().String()
	logger := base.WithField("run_id", runID)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	tp, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	// Separate streams keep the path sequence for a seed independent of how
	// many user agents are drawn.
	streams := pick.Streams(cfg.Seed, 2)
	paths, err := pick.New(cfg.Paths, streams[0])
	if err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	agents, err := pick.New(cfg.UserAgents, streams[1])
	if err != nil {
		return fmt.Errorf("user agents: %w", err)
	}

	builder, err := httpclient.NewRequestBuilder(cfg.TargetURL, agents)
	if err != nil {
		return err
	}
	client := httpclient.NewClient(cfg.Timeout)
	collector := metrics.NewCollector()

	observers, stopMetrics, err := startMetrics(cfg, runID, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	executor, err := probe.New(probe.Options{
		Client:    client,
		Builder:   builder,
		Collector: collector,
		Delay:     cfg.RequestDelay,
		Logger:    logger,
		Observers: observers,
		Tracer:    tp.Tracer(),
		Propagate: tp.ShouldPropagate(),
	})
	if err != nil {
		return err
	}

	r, err := runner.New(runner.Options{
		Budget:      cfg.MaxRequests,
		Concurrency: cfg.ConcurrentUsers,
		Paths:       paths,
		Executor:    executor,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if cfg.ProgressInterval > 0 {
		progress = output.NewProgressReporter(collector, cfg.ProgressInterval, logger)
		progress.Start()
	}

	// Mark the actual start so requests/sec ignores setup time.
	collector.Start()
	result := r.Run(ctx)
	if progress != nil {
		progress.Stop()
	}

	stats := collector.Stats(result.Duration)
	report := output.NewReport(runID, cfg.TargetURL, result, stats)
	return output.Write(stdout, logger, cfg.ReportFormat, report)
}

// startMetrics serves the Prometheus exporter when an address is configured.
// The returned stop function is always safe to call and returns only once the
// endpoint has shut down.
func startMetrics(cfg *config.Config, runID string, logger logrus.FieldLogger) ([]probe.Observer, func(), error) {
	if cfg.MetricsAddr == "" {
		return nil, func() {}, nil
	}

	exporter := promexport.New(runID)
	// The endpoint outlives the run so the final counters can still be scraped
	// while the report is written.
	server, err := exporter.Serve(context.Background(), cfg.MetricsAddr, logger)
	if err != nil {
		return nil, nil, err
	}
	stop := func() { _ = server.Close() }
	return []probe.Observer{exporter}, stop, nil
}
