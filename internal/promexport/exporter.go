// Package promexport exposes the live run counters in Prometheus text format.
package promexport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/torosent/crawlprobe/internal/probe"
)

const namespace = "crawlprobe"

// Exporter mirrors every request outcome into a private Prometheus registry.
// It implements probe.Observer.
type Exporter struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates an Exporter with its own registry so repeated runs in one
// process never collide on the default one.
func New(runID string) *Exporter {
	constLabels := prometheus.Labels{}
	if runID != "" {
		constLabels["run_id"] = runID
	}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Probes finished, by outcome and status (HTTP code or failure kind).",
			ConstLabels: constLabels,
		}, []string{"outcome", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "Request latency, excluding the post-request delay.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"outcome"}),
	}
	e.registry.MustRegister(e.requests, e.latency)
	return e
}

// Observe records one outcome.
func (e *Exporter) Observe(_ string, out probe.Outcome) {
	outcome := "failure"
	if out.Success() {
		outcome = "success"
	}
	status := string(out.Kind)
	if out.Completed() {
		status = fmt.Sprintf("%d", out.StatusCode)
	}
	e.requests.WithLabelValues(outcome, status).Inc()
	e.latency.WithLabelValues(outcome).Observe(out.Latency.Seconds())
}

// Registry returns the registry backing the exporter.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Server is a running /metrics endpoint.
type Server struct {
	addr   net.Addr
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Addr is the bound listen address.
func (s *Server) Addr() net.Addr { return s.addr }

// Close stops the endpoint and blocks until the HTTP server has finished
// shutting down. It returns the server's terminal error, if any.
func (s *Server) Close() error {
	s.cancel()
	<-s.done
	return s.err
}

// Serve listens on addr and serves /metrics until ctx is cancelled or Close
// is called. The listener is bound before Serve returns so bind errors
// surface immediately.
func (e *Exporter) Serve(ctx context.Context, addr string, logger logrus.FieldLogger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{addr: ln.Addr(), cancel: cancel, done: make(chan struct{})}

	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()
	go func() {
		defer close(s.done)
		var err error
		select {
		case <-ctx.Done():
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			err = srv.Shutdown(shutdownCtx)
			stop()
			if serr := <-serveErr; serr != nil {
				err = serr
			}
		case err = <-serveErr:
			cancel()
		}
		if err != nil && logger != nil {
			logger.WithError(err).Error("metrics server stopped")
		}
		s.err = err
	}()

	if logger != nil {
		logger.WithField("addr", s.addr.String()).Info("Serving Prometheus metrics on /metrics")
	}
	return s, nil
}
