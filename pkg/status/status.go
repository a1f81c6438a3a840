// Package status publishes live run counters to Redis so that other
// processes can watch a long download without parsing its console output.
package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tagpages/pkg/progress"
)

// KeyPrefix prefixes every status key.
const KeyPrefix = "tagpages:status:"

// Hash fields of a status key.
const (
	FieldTotal       = "total"
	FieldOutstanding = "outstanding"
	FieldSucceeded   = "succeeded"
	FieldFailed      = "failed"
	FieldSkipped     = "skipped"
	FieldUpdatedAt   = "updated_at"
)

// DefaultTTL expires a status key when its run stops publishing.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNoStatus is returned by Get when nothing was published under the key.
	ErrNoStatus = errors.New("no status published")

	publishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tagpages_status_publish_errors_total",
		Help: "Total number of failed status publishes to Redis",
	})
)

// Snapshot is the published state of a run.
type Snapshot struct {
	Total       int
	Outstanding int
	Succeeded   int
	Failed      int
	Skipped     int
	UpdatedAt   time.Time
}

// IsStale returns true if the snapshot is older than maxAge.
func (s *Snapshot) IsStale(maxAge time.Duration) bool {
	return time.Since(s.UpdatedAt) > maxAge
}

// Publisher writes progress snapshots to a Redis hash.
type Publisher struct {
	redis   *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPublisher creates a publisher writing under KeyPrefix+name.
func NewPublisher(redisClient *redis.Client, name string, logger zerolog.Logger) *Publisher {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Publisher{
		redis:   redisClient,
		key:     KeyPrefix + name,
		ttl:     DefaultTTL,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Key returns the Redis key the publisher writes to.
func (p *Publisher) Key() string {
	return p.key
}

// Publish stores the stats atomically.
func (p *Publisher) Publish(ctx context.Context, s progress.Stats) error {
	pipe := p.redis.TxPipeline()
	pipe.HSet(ctx, p.key,
		FieldTotal, s.Total,
		FieldOutstanding, s.Outstanding,
		FieldSucceeded, s.Succeeded,
		FieldFailed, s.Failed,
		FieldSkipped, s.Skipped,
		FieldUpdatedAt, time.Now().UnixMilli(),
	)
	pipe.Expire(ctx, p.key, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store status in redis: %w", err)
	}
	return nil
}

// Observe implements progress.Observer. Failures are logged and counted,
// never propagated to the run.
func (p *Publisher) Observe(s progress.Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.Publish(ctx, s); err != nil {
		publishErrorsTotal.Inc()
		p.logger.Warn().Err(err).Str("key", p.key).Msg("Failed to publish run status")
	}
}

// Get reads the snapshot stored under the publisher's key.
func (p *Publisher) Get(ctx context.Context) (*Snapshot, error) {
	return Get(ctx, p.redis, p.key)
}

// Get reads the snapshot stored under key.
func Get(ctx context.Context, redisClient *redis.Client, key string) (*Snapshot, error) {
	fields, err := redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoStatus
	}

	var snap Snapshot
	ints := []struct {
		field string
		dst   *int
	}{
		{FieldTotal, &snap.Total},
		{FieldOutstanding, &snap.Outstanding},
		{FieldSucceeded, &snap.Succeeded},
		{FieldFailed, &snap.Failed},
		{FieldSkipped, &snap.Skipped},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(fields[f.field])
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.field, err)
		}
		*f.dst = n
	}

	ms, err := strconv.ParseInt(fields[FieldUpdatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", FieldUpdatedAt, err)
	}
	snap.UpdatedAt = time.UnixMilli(ms)

	return &snap, nil
}
