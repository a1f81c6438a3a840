package harvest

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/tagpages/pkg/client"
	"github.com/Sternrassler/tagpages/pkg/config"
	"github.com/Sternrassler/tagpages/pkg/logging"
	"github.com/Sternrassler/tagpages/pkg/pagination"
	"github.com/Sternrassler/tagpages/pkg/progress"
	"github.com/Sternrassler/tagpages/pkg/store"
)

// FetcherFactory builds the fetcher used by one worker.
type FetcherFactory func(worker int) (client.PageFetcher, error)

// Option configures an Engine.
type Option func(*Engine)

// WithFetcherFactory replaces the HTTP client construction.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(e *Engine) { e.newFetcher = f }
}

// WithOutput sets where progress is rendered (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.output = w }
}

// WithObserver registers an observer for every progress sample.
func WithObserver(o progress.Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Summary is the result of a run.
type Summary struct {
	Stats       progress.Stats
	FailedPages []int
	Failures    map[int]error
	Duration    time.Duration
}

// Partial reports whether any page failed.
func (s *Summary) Partial() bool {
	return s.Stats.Failed > 0
}

// Engine executes runs for one configuration.
type Engine struct {
	cfg        config.Config
	newFetcher FetcherFactory
	output     io.Writer
	observers  []progress.Observer
	logger     zerolog.Logger
}

// New validates cfg and creates an engine.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		output: os.Stdout,
		logger: logging.NewLogger("harvest"),
	}
	e.newFetcher = e.httpFetcher
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) httpFetcher(int) (client.PageFetcher, error) {
	return client.New(client.Config{
		BaseURL:   e.cfg.BaseURL,
		APIKey:    e.cfg.APIKey,
		UserID:    e.cfg.UserID,
		UserAgent: e.cfg.UserAgent,
		Timeout:   e.cfg.RequestTimeout,
	})
}

// Run performs one download pass. The returned summary is valid whenever
// workers were started, including when ctx was cancelled mid-run.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	st, err := store.Open(e.cfg.OutputDir, e.logger)
	if err != nil {
		return nil, err
	}

	completed, err := st.ScanCompleted()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", st.Dir(), err)
	}

	shards, err := pagination.Partition(e.cfg.TotalPages, e.cfg.Workers)
	if err != nil {
		return nil, err
	}

	// Fetchers are built up front so that a construction failure aborts the
	// run before any request or progress output.
	handlers := make([]*pageHandler, len(shards))
	for i, shard := range shards {
		fetcher, err := e.newFetcher(shard.Worker)
		if err != nil {
			closeHandlers(handlers[:i])
			return nil, fmt.Errorf("create fetcher for worker %d: %w", shard.Worker, err)
		}
		logger := logging.WorkerLogger(e.logger, shard.Worker)
		handlers[i] = &pageHandler{
			worker:  shard.Worker,
			fetcher: fetcher,
			retry:   client.NewRetryPolicy(fetcher, e.cfg.RetryDelay, logger),
			store:   st,
			logger:  logger,
		}
	}
	defer closeHandlers(handlers)

	onDisk := completed.CountBelow(e.cfg.TotalPages)
	agg := progress.NewAggregator(e.cfg.TotalPages, e.cfg.TotalPages-onDisk)

	e.logger.Info().
		Str("dir", st.Dir()).
		Int("total", e.cfg.TotalPages).
		Int("on_disk", onDisk).
		Int("outstanding", e.cfg.TotalPages-onDisk).
		Int("workers", len(shards)).
		Msg("Run starting")

	reporter := progress.NewReporter(agg, progress.Options{
		Workers:   len(shards),
		Output:    e.output,
		Interval:  e.cfg.ProgressInterval,
		NoColor:   e.cfg.NoColor,
		Observers: e.observers,
	})

	pool := &pagination.Pool{
		Shards:    shards,
		Completed: completed,
		Recorder:  agg,
		NewHandler: func(worker int) (pagination.Handler, error) {
			return handlers[worker], nil
		},
		Logger: &e.logger,
	}

	reporter.Start()
	runErr := pool.Run(ctx)
	reporter.Stop()

	summary := &Summary{
		Stats:       agg.Snapshot(),
		FailedPages: agg.FailedPages(),
		Failures:    make(map[int]error),
	}
	summary.Duration = summary.Stats.Elapsed
	for _, page := range summary.FailedPages {
		summary.Failures[page] = agg.FailureReason(page)
	}

	e.logger.Info().
		Int("succeeded", summary.Stats.Succeeded).
		Int("failed", summary.Stats.Failed).
		Int("skipped", summary.Stats.Skipped).
		Dur("duration", summary.Duration).
		Msg("Run finished")

	if runErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", runErr)
	}
	return summary, nil
}

func closeHandlers(handlers []*pageHandler) {
	for _, h := range handlers {
		if h == nil {
			continue
		}
		if c, ok := h.fetcher.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
