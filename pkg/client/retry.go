package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tagpages/pkg/tags"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagpages_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagpages_retry_exhausted_total",
		Help: "Total number of pages that failed again after their retry, by error kind",
	}, []string{"kind"})
)

// DefaultRetryDelay is the fixed pause before the single retry.
const DefaultRetryDelay = 1 * time.Second

// State is the position of a page fetch in the retry state machine.
type State string

const (
	StateFresh           State = "fresh"
	StateRetrying        State = "retrying"
	StateSuccess         State = "success"
	StateTerminalFailure State = "terminal_failure"
)

// Attempt is the outcome of RetryPolicy.Fetch.
type Attempt struct {
	Page   int
	Calls  int // fetch calls made, 1 or 2
	State  State
	Result *tags.PageResult
	Body   []byte
}

// RetryPolicy wraps a PageFetcher with exactly one retry after a fixed delay.
type RetryPolicy struct {
	fetcher PageFetcher
	delay   time.Duration
	logger  zerolog.Logger

	// wait is swapped out by tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a retry policy. A non-positive delay falls back to
// DefaultRetryDelay.
func NewRetryPolicy(fetcher PageFetcher, delay time.Duration, logger zerolog.Logger) *RetryPolicy {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &RetryPolicy{
		fetcher: fetcher,
		delay:   delay,
		logger:  logger,
		wait:    sleepContext,
	}
}

// Fetch runs the page through the state machine:
//
//	Fresh -> fetch -> Success
//	Fresh -> fetch -> (transport|deserialization) -> Retrying -> fetch -> Success | TerminalFailure
//	Fresh -> fetch -> (empty|other) -> TerminalFailure
func (p *RetryPolicy) Fetch(ctx context.Context, page int) (Attempt, error) {
	attempt := Attempt{Page: page, State: StateFresh}

	for {
		result, body, err := p.fetcher.FetchPage(ctx, page)
		attempt.Calls++

		if err == nil {
			if attempt.State == StateRetrying {
				p.logger.Info().
					Int("page", page).
					Int("attempt", attempt.Calls).
					Msg("Page succeeded after retry")
			}
			attempt.State = StateSuccess
			attempt.Result = result
			attempt.Body = body
			return attempt, nil
		}

		kind := Classify(err)

		if attempt.State == StateRetrying {
			attempt.State = StateTerminalFailure
			if ShouldRetry(kind) {
				retryExhaustedTotal.WithLabelValues(string(kind)).Inc()
				p.logger.Warn().
					Err(err).
					Int("page", page).
					Str("kind", string(kind)).
					Msg("Failed again")
				return attempt, fmt.Errorf("%w: %w", ErrRetryExhausted, err)
			}
			return attempt, err
		}

		if !ShouldRetry(kind) {
			attempt.State = StateTerminalFailure
			return attempt, err
		}

		retriesTotal.WithLabelValues(string(kind)).Inc()
		p.logger.Warn().
			Err(err).
			Int("page", page).
			Str("kind", string(kind)).
			Dur("delay", p.delay).
			Msg("Failed to get tags, retrying")

		if werr := p.wait(ctx, p.delay); werr != nil {
			attempt.State = StateTerminalFailure
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, werr)
		}
		attempt.State = StateRetrying
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
