package textgen

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/metrics"
)

type Options struct {
	Timeout         time.Duration // per attempt
	MaxAttempts     int
	InitialInterval time.Duration
}

// Resilient bounds every call to the wrapped generator with a per-attempt
// timeout and a capped exponential retry.
type Resilient struct {
	next    Generator
	opts    Options
	logger  *logging.Logger
	metrics *metrics.AssistantMetrics
}

func NewResilient(next Generator, opts Options, logger *logging.Logger, m *metrics.AssistantMetrics) *Resilient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resilient{next: next, opts: opts, logger: logger, metrics: m}
}

func (r *Resilient) Generate(ctx context.Context, systemRole, userInput string) (string, error) {
	op := func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()

		out, err := r.next.Generate(callCtx, systemRole, userInput)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", ErrEmptyOutput
		}
		return out, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn("text generation attempt failed", "error", err, "retry_in", wait)
		}),
	)
	if err != nil {
		r.logger.Error("text generation failed, using fallback", "error", err)
		r.metrics.ObserveFallback("error")
		return "", err
	}
	return out, nil
}
