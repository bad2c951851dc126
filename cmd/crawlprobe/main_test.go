package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torosent/crawlprobe/internal/config"
)

func newTarget(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, logs bytes.Buffer
	err = run(ctx, args, &out, &logs)
	return out.String(), logs.String(), err
}

func TestRunReportsAllSuccesses(t *testing.T) {
	srv, hits := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})

	_, logs, err := runCLI(t, context.Background(), srv.URL,
		"--max-requests=6", "--concurrent-users=2", "--request-delay=0", "--seed=1")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if hits.Load() != 6 {
		t.Fatalf("expected 6 requests at the target, got %d", hits.Load())
	}
	for _, want := range []string{
		"Starting load test with 2 concurrent users",
		"Completed 2 requests",
		"Completed 6 requests",
		"Test Results:",
		"Total Requests: 6",
		"Successful Requests: 6",
		"Failed Requests: 0",
		"Success Rate: 100.00%",
		"run_id=",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("expected %q in logs:\n%s", want, logs)
		}
	}
}

func TestRunAllNotFoundOmitsSuccessRate(t *testing.T) {
	srv, _ := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, logs, err := runCLI(t, context.Background(), srv.URL,
		"--max-requests=4", "--concurrent-users=4", "--request-delay=0")
	if err != nil {
		t.Fatalf("failed requests must not fail the run: %v", err)
	}
	if !strings.Contains(logs, "Failed Requests: 4") {
		t.Errorf("expected 4 failures in logs:\n%s", logs)
	}
	if !strings.Contains(logs, "Status: 404") {
		t.Errorf("expected per-request status lines in logs:\n%s", logs)
	}
	if strings.Contains(logs, "Success Rate") {
		t.Errorf("success rate must be omitted without successes:\n%s", logs)
	}
}

func TestRunUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	_, logs, err := runCLI(t, context.Background(), target,
		"--max-requests=3", "--concurrent-users=5", "--request-delay=0", "--path=/")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(logs, "Error making request to /") {
		t.Errorf("expected transport error lines:\n%s", logs)
	}
	if !strings.Contains(logs, "Total Requests: 3") || !strings.Contains(logs, "Failed Requests: 3") {
		t.Errorf("expected 3 failed requests:\n%s", logs)
	}
}

func TestRunJSONReport(t *testing.T) {
	srv, _ := newTarget(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
		}
	})

	stdout, _, err := runCLI(t, context.Background(), srv.URL,
		"--max-requests=5", "--concurrent-users=3", "--request-delay=0",
		"--path=/", "--report-format=json", "--log-format=json")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var report struct {
		RunID        string   `json:"run_id"`
		Target       string   `json:"target"`
		RequestsMade int64    `json:"requests_made"`
		Successes    int64    `json:"successes"`
		Failures     int64    `json:"failures"`
		SuccessRate  *float64 `json:"success_rate"`
		Batches      int      `json:"batches"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
	}
	if report.RequestsMade != 5 || report.Successes != 5 || report.Failures != 0 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.Batches != 2 {
		t.Fatalf("expected batches of 3 and 2, got %d batches", report.Batches)
	}
	if report.SuccessRate == nil || *report.SuccessRate != 100 {
		t.Fatalf("expected success rate 100, got %v", report.SuccessRate)
	}
	if report.RunID == "" || report.Target != srv.URL {
		t.Fatalf("unexpected identity fields %+v", report)
	}
}

func TestRunRejectsInvalidConfigBeforeRequests(t *testing.T) {
	srv, hits := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})

	tests := [][]string{
		{srv.URL, "--max-requests=0"},
		{srv.URL, "--concurrent-users=0"},
		{srv.URL, "--request-delay=-1"},
		{"ftp://example.com"},
		{srv.URL, "--max-requests=abc"},
	}
	for _, args := range tests {
		if _, _, err := runCLI(t, context.Background(), args...); err == nil {
			t.Errorf("run(%v) expected error", args)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("no request may be sent on configuration errors, got %d", hits.Load())
	}
}

func TestRunWithoutTargetFails(t *testing.T) {
	_, _, err := runCLI(t, context.Background())
	if err == nil {
		t.Fatal("run() without a target must fail")
	}
	if !strings.Contains(err.Error(), "target URL is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunTargetFromEnvironment(t *testing.T) {
	srv, hits := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})
	t.Setenv("CRAWLPROBE_TARGET", srv.URL)
	t.Setenv("CRAWLPROBE_MAX_REQUESTS", "3")
	t.Setenv("CRAWLPROBE_REQUEST_DELAY", "0")

	_, logs, err := runCLI(t, context.Background())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 requests at the env target, got %d", hits.Load())
	}
	if !strings.Contains(logs, "Total Requests: 3") {
		t.Errorf("expected report for env target:\n%s", logs)
	}
}

func TestStartMetricsStopWaitsForShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.MetricsAddr = "127.0.0.1:0"

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	observers, stop, err := startMetrics(cfg, "run-x", logger)
	if err != nil {
		t.Fatalf("startMetrics() error = %v", err)
	}
	if len(observers) != 1 {
		t.Fatalf("expected the exporter as the only observer, got %d", len(observers))
	}
	addr := listenAddr(t, logs.String())

	stop()
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Fatalf("metrics endpoint %s still accepting after stop", addr)
	}
}

func listenAddr(t *testing.T, logs string) string {
	t.Helper()
	const marker = "addr="
	i := strings.Index(logs, marker)
	if i < 0 {
		t.Fatalf("no listen address in logs:\n%s", logs)
	}
	rest := logs[i+len(marker):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.Trim(rest, `"`)
}

func TestRunHelp(t *testing.T) {
	if _, _, err := runCLI(t, context.Background(), "--help"); err != nil {
		t.Fatalf("--help should not be an error: %v", err)
	}
}

func TestRunCancelledContextStillReports(t *testing.T) {
	srv, hits := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, logs, err := runCLI(t, ctx, srv.URL, "--max-requests=10", "--request-delay=0")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no batches after cancellation, got %d requests", hits.Load())
	}
	if !strings.Contains(logs, "Total Requests: 0") {
		t.Errorf("expected an empty report:\n%s", logs)
	}
}

func TestRunServesMetrics(t *testing.T) {
	srv, _ := newTarget(t, func(w http.ResponseWriter, r *http.Request) {})

	_, logs, err := runCLI(t, context.Background(), srv.URL,
		"--max-requests=2", "--request-delay=0", "--metrics-addr=127.0.0.1:0")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(logs, "Serving Prometheus metrics") {
		t.Errorf("expected metrics endpoint log line:\n%s", logs)
	}
}
