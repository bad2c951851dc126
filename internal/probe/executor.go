package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/crawlprobe/internal/httpclient"
	"github.com/torosent/crawlprobe/internal/logging"
	"github.com/torosent/crawlprobe/internal/metrics"
	"github.com/torosent/crawlprobe/internal/tracing"
)

// maxDrainBytes bounds how much of a response body is read back so the
// connection can be reused.
const maxDrainBytes = 1 << 20

// Observer receives every outcome after it has been recorded.
type Observer interface {
	Observe(path string, out Outcome)
}

// Options configures an Executor.
type Options struct {
	Client    *http.Client
	Builder   *httpclient.RequestBuilder
	Collector *metrics.Collector
	// Delay is the pause applied after every attempt, whatever its outcome.
	Delay     time.Duration
	Logger    logrus.FieldLogger
	Observers []Observer

	// Tracer wraps each attempt in a client span. Nil disables tracing.
	Tracer trace.Tracer
	// Propagate injects W3C trace context into outgoing requests.
	Propagate bool

	// Sleep overrides time.Sleep for tests.
	Sleep func(time.Duration)
}

// Executor performs one probe of one path and records its outcome.
type Executor struct {
	client    *http.Client
	builder   *httpclient.RequestBuilder
	collector *metrics.Collector
	delay     time.Duration
	logger    logrus.FieldLogger
	tracer    trace.Tracer
	propagate bool
	observers []Observer
	sleep     func(time.Duration)
}

// New validates opts and returns an Executor.
func New(opts Options) (*Executor, error) {
	if opts.Client == nil {
		return nil, errors.New("probe: http client is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("probe: request builder is required")
	}
	if opts.Collector == nil {
		return nil, errors.New("probe: collector is required")
	}
	if opts.Delay < 0 {
		return nil, errors.New("probe: delay must be >= 0")
	}

	e := &Executor{
		client:    opts.Client,
		builder:   opts.Builder,
		collector: opts.Collector,
		delay:     opts.Delay,
		logger:    opts.Logger,
		observers: append([]Observer(nil), opts.Observers...),
		sleep:     opts.Sleep,
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.sleep == nil {
		e.sleep = time.Sleep
	}
	if opts.Tracer != nil {
		e.tracer = opts.Tracer
		e.propagate = opts.Propagate
	} else {
		e.tracer = noop.NewTracerProvider().Tracer("crawlprobe")
	}
	return e, nil
}

// Execute issues a GET for path against the target, records the outcome in
// the collector and then pauses for the configured delay. It never fails:
// transport errors are reported through the returned Outcome.
func (e *Executor) Execute(ctx context.Context, path string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	defer e.pause()

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, path)
	start := time.Now()
	out := e.do(ctx, path)
	out.Latency = time.Since(start)

	e.record(path, out)
	e.endSpan(span, out)
	for _, obs := range e.observers {
		obs.Observe(path, out)
	}
	return out
}

func (e *Executor) do(ctx context.Context, path string) Outcome {
	req, err := e.builder.Build(ctx, path)
	if err != nil {
		return Failure(err)
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Failure(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return Response(resp.StatusCode, req.URL.String())
}

func (e *Executor) record(path string, out Outcome) {
	meta := &metrics.RequestMetadata{Path: path, StatusCode: statusLabel(out)}
	e.collector.RecordRequest(out.Latency, out.Success(), meta)

	if out.Completed() {
		e.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": out.StatusCode,
		}).Infof("Request to %s - Status: %d", out.URL, out.StatusCode)
		return
	}
	e.logger.WithFields(logrus.Fields{
		"path": path,
		"kind": string(out.Kind),
	}).Errorf("Error making request to %s: %v", path, out.Err)
}

func (e *Executor) endSpan(span trace.Span, out Outcome) {
	if out.Completed() {
		tracing.EndSpan(span, nil,
			attribute.Int("http.response.status_code", out.StatusCode),
			attribute.String("url.full", out.URL),
			attribute.Bool("crawlprobe.success", out.Success()),
		)
		return
	}
	tracing.EndSpan(span, out.Err, attribute.String("error.type", string(out.Kind)))
}

func (e *Executor) pause() {
	if e.delay > 0 {
		e.sleep(e.delay)
	}
}

// statusLabel is the status bucket an outcome is counted under: the literal
// HTTP status, or the failure kind when no response arrived.
func statusLabel(out Outcome) string {
	if out.Completed() {
		return strconv.Itoa(out.StatusCode)
	}
	return string(out.Kind)
}
