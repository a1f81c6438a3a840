package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Handler processes one page. A non-nil error marks the page failed.
type Handler interface {
	HandlePage(ctx context.Context, page int) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, page int) error

// HandlePage calls f(ctx, page).
func (f HandlerFunc) HandlePage(ctx context.Context, page int) error {
	return f(ctx, page)
}

// Completed answers whether a page is already done.
type Completed interface {
	Contains(page int) bool
}

// Recorder receives per-page outcomes. Implementations must be safe for
// concurrent use by all workers.
type Recorder interface {
	RecordSuccess(page int)
	RecordFailure(page int, err error)
	RecordSkip(page int)
}

// Pool runs one worker per shard.
type Pool struct {
	Shards    []Shard
	Completed Completed
	Recorder  Recorder

	// NewHandler is called once per worker, before the worker starts.
	NewHandler func(worker int) (Handler, error)

	Logger *zerolog.Logger
}

// Run starts all workers and blocks until every one of them has drained its
// shard. Page failures are recorded, never returned; Run only fails when a
// handler cannot be created or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	logger := log.Logger
	if p.Logger != nil {
		logger = *p.Logger
	}

	if p.NewHandler == nil || p.Recorder == nil {
		return fmt.Errorf("pool requires NewHandler and Recorder")
	}

	handlers := make([]Handler, len(p.Shards))
	for i, shard := range p.Shards {
		h, err := p.NewHandler(shard.Worker)
		if err != nil {
			return fmt.Errorf("create handler for worker %d: %w", shard.Worker, err)
		}
		handlers[i] = h
	}

	start := time.Now()

	var g errgroup.Group
	for i, shard := range p.Shards {
		handler := handlers[i]
		g.Go(func() error {
			return p.worker(ctx, shard, handler, logger)
		})
	}

	err := g.Wait()

	logger.Info().
		Int("workers", len(p.Shards)).
		Dur("duration", time.Since(start)).
		Msg("All workers joined")

	return err
}

// worker drains one shard in ascending order.
func (p *Pool) worker(ctx context.Context, shard Shard, handler Handler, logger zerolog.Logger) error {
	pagesProcessed := 0

	for page := shard.Start; page < shard.End; page++ {
		if err := ctx.Err(); err != nil {
			logger.Debug().
				Int("worker", shard.Worker).
				Int("pages_processed", pagesProcessed).
				Int("next_page", page).
				Msg("Worker stopping (context cancelled)")
			return err
		}

		if p.Completed != nil && p.Completed.Contains(page) {
			p.Recorder.RecordSkip(page)
			continue
		}

		if err := handler.HandlePage(ctx, page); err != nil {
			if ctx.Err() != nil {
				// Abandoned, not failed: the page stays outstanding for the next run.
				logger.Debug().
					Int("worker", shard.Worker).
					Int("page", page).
					Msg("Page abandoned (context cancelled)")
				return ctx.Err()
			}
			p.Recorder.RecordFailure(page, err)
		} else {
			p.Recorder.RecordSuccess(page)
		}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		logger.Debug().
			Int("worker", shard.Worker).
			Int("shard_start", shard.Start).
			Int("shard_end", shard.End).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}

	return nil
}
