package runner

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/torosent/crawlprobe/internal/logging"
	"github.com/torosent/crawlprobe/internal/probe"
)

// Executor performs a single attempt against one path.
type Executor interface {
	Execute(ctx context.Context, path string) probe.Outcome
}

// PathSource picks the path for each submitted attempt.
type PathSource interface {
	Pick() string
}

// Options configure the Runner.
type Options struct {
	Budget      int                // total attempts to submit (required, > 0)
	Concurrency int                // batch size and worker pool bound (required, > 0)
	Paths       PathSource         // candidate path selection (required)
	Executor    Executor           // attempt executor (required)
	Logger      logrus.FieldLogger // progress sink; nil discards
}

func (o *Options) validate() error {
	var errs []error
	if o.Budget < 1 {
		errs = append(errs, errors.New("budget must be >= 1"))
	}
	if o.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be >= 1"))
	}
	if o.Paths == nil {
		errs = append(errs, errors.New("path source is required"))
	}
	if o.Executor == nil {
		errs = append(errs, errors.New("executor is required"))
	}
	return errors.Join(errs...)
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
}
