package output

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/crawlprobe/internal/logging"
	"github.com/torosent/crawlprobe/internal/metrics"
)

// ProgressReporter logs a live snapshot of the run counters at a fixed interval.
type ProgressReporter struct {
	collector *metrics.Collector
	logger    logrus.FieldLogger
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, logger logrus.FieldLogger) *ProgressReporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ProgressReporter{
		collector: collector,
		logger:    logger,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		start:     time.Now(),
	}
}

// Start begins logging progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and waits for the reporter goroutine to exit.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.logSnapshot()
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) logSnapshot() {
	stats := p.collector.Stats(time.Since(p.start))
	fields := logrus.Fields{
		"total":     stats.Total,
		"successes": stats.Successes,
		"failures":  stats.Failures,
		"rps":       stats.RequestsPerSec,
	}
	if rows := metrics.FlattenStatusBuckets(stats.StatusCodes); len(rows) > 0 {
		fields["top_status"] = rows[0].Code
	}
	p.logger.WithFields(fields).Infof("Progress: %d attempts finished (%d ok, %d failed, %.1f req/s)",
		stats.Total, stats.Successes, stats.Failures, stats.RequestsPerSec)
}
