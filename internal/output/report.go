package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/torosent/crawlprobe/internal/config"
	"github.com/torosent/crawlprobe/internal/metrics"
	"github.com/torosent/crawlprobe/internal/runner"
)

// Report is the end-of-run summary.
type Report struct {
	RunID        string   `json:"run_id" yaml:"run_id"`
	Target       string   `json:"target" yaml:"target"`
	RequestsMade int64    `json:"requests_made" yaml:"requests_made"`
	Successes    int64    `json:"successes" yaml:"successes"`
	Failures     int64    `json:"failures" yaml:"failures"`
	SuccessRate  *float64 `json:"success_rate,omitempty" yaml:"success_rate,omitempty"` // percent of requests made; nil when nothing succeeded
	Batches      int      `json:"batches" yaml:"batches"`
	Interrupted  bool     `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`

	Stats metrics.Stats `json:"stats" yaml:"stats"`
}

// NewReport combines the dispatch result with the collector snapshot.
func NewReport(runID, target string, res runner.Result, stats metrics.Stats) Report {
	r := Report{
		RunID:        runID,
		Target:       target,
		RequestsMade: res.RequestsMade,
		Successes:    stats.Successes,
		Failures:     stats.Failures,
		Batches:      len(res.Batches),
		Interrupted:  res.Interrupted,
		Stats:        stats,
	}
	if r.Successes > 0 && r.RequestsMade > 0 {
		rate := float64(r.Successes) / float64(r.RequestsMade) * 100
		r.SuccessRate = &rate
	}
	return r
}

// Write emits the report in the requested format. Text reports go to the log
// sink; JSON and YAML reports go to w.
func Write(w io.Writer, logger logrus.FieldLogger, format config.ReportFormat, r Report) error {
	switch format {
	case config.ReportFormatJSON:
		return PrintJSONReport(w, r)
	case config.ReportFormatYAML:
		return PrintYAMLReport(w, r)
	case config.ReportFormatText, "":
		LogReport(logger, r)
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// LogReport writes the human-readable summary to the log sink, one line per entry.
func LogReport(logger logrus.FieldLogger, r Report) {
	logger.Info("Test Results:")
	logger.Infof("Total Requests: %d", r.RequestsMade)
	logger.Infof("Successful Requests: %d", r.Successes)
	logger.Infof("Failed Requests: %d", r.Failures)
	if r.SuccessRate != nil {
		logger.Infof("Success Rate: %.2f%%", *r.SuccessRate)
	}
	if r.Interrupted {
		logger.Warn("Run was interrupted before the request budget was spent")
	}

	s := r.Stats
	logger.Infof("Duration: %s", s.Duration)
	logger.Infof("Requests/sec: %.2f", s.RequestsPerSec)
	if s.Total > 0 {
		logger.Infof("Latency: min=%s mean=%s p50=%s p90=%s p99=%s max=%s",
			s.MinLatency, s.MeanLatency, s.P50Latency, s.P90Latency, s.P99Latency, s.MaxLatency)
	}

	for _, row := range metrics.FlattenStatusBuckets(s.StatusCodes) {
		logger.WithField("status", row.Code).Infof("Status %s: %d", row.Code, row.Count)
	}

	if len(s.Paths) > 0 {
		paths := make([]string, 0, len(s.Paths))
		for p := range s.Paths {
			paths = append(paths, p)
		}
		sort.Slice(paths, func(i, j int) bool {
			a, b := s.Paths[paths[i]], s.Paths[paths[j]]
			if a.Total == b.Total {
				return paths[i] < paths[j]
			}
			return a.Total > b.Total
		})
		for _, p := range paths {
			ps := s.Paths[p]
			logger.WithField("path", p).Infof("Path %s: total=%d, successes=%d, failures=%d",
				p, ps.Total, ps.Successes, ps.Failures)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
