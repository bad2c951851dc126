package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// RequestMetadata annotates a recorded attempt. All fields are optional.
type RequestMetadata struct {
	Path       string
	StatusCode string // literal HTTP status, or a failure kind when no response arrived
}

// Collector holds the run counters. Every mutation happens under one mutex,
// so Successes+Failures always equals the number of recorded attempts.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	successes   int64
	failures    int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	statusCodes map[string]int64
	paths       map[string]*pathCounters
	start       time.Time
}

type pathCounters struct {
	successes int64
	failures  int64
}

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64              `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64              `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64              `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64              `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64              `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs  float64              `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64              `json:"duration_ms" yaml:"duration_ms"`
	StatusCodes   map[string]int       `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	Paths         map[string]PathStats `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// PathStats is the per-path share of the run counters.
type PathStats struct {
	Total     int64 `json:"total" yaml:"total"`
	Successes int64 `json:"successes" yaml:"successes"`
	Failures  int64 `json:"failures" yaml:"failures"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:        h,
		statusCodes: make(map[string]int64),
		paths:       make(map[string]*pathCounters),
		start:       time.Now(),
	}
}

// Start resets the reference time used for requests/sec.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Elapsed reports time since Start (or construction).
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records a single attempt. success selects which of the two
// run counters is incremented; exactly one of them moves per call.
func (c *Collector) RecordRequest(latency time.Duration, success bool, meta *RequestMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if success {
		c.successes++
	} else {
		c.failures++
	}

	if meta == nil {
		return
	}
	if meta.StatusCode != "" {
		c.statusCodes[meta.StatusCode]++
	}
	if meta.Path != "" {
		pc, ok := c.paths[meta.Path]
		if !ok {
			pc = &pathCounters{}
			c.paths[meta.Path] = pc
		}
		if success {
			pc.successes++
		} else {
			pc.failures++
		}
	}
}

// Counts returns the two run counters.
func (c *Collector) Counts() (successes, failures int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successes, c.failures
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P90LatencyMs = float64(stats.P90Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for k, v := range c.statusCodes {
			stats.StatusCodes[k] = int(v)
		}
	}

	if len(c.paths) > 0 {
		stats.Paths = make(map[string]PathStats, len(c.paths))
		for path, pc := range c.paths {
			stats.Paths[path] = PathStats{
				Total:     pc.successes + pc.failures,
				Successes: pc.successes,
				Failures:  pc.failures,
			}
		}
	}

	return stats
}
