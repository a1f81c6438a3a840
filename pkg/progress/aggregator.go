package progress

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PagesTotal counts page outcomes.
var PagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tagpages_pages_total",
		Help: "Total number of pages by outcome",
	},
	[]string{"outcome"}, // "succeeded", "failed", "skipped"
)

// Stats is a point-in-time snapshot of a run.
type Stats struct {
	Total       int // size of the page-index space
	Outstanding int // pages not on disk when the run started
	Succeeded   int
	Failed      int
	Skipped     int
	Elapsed     time.Duration
}

// Done returns the number of outstanding pages that reached an outcome.
func (s Stats) Done() int {
	return s.Succeeded + s.Failed
}

// Percent returns succeeded / outstanding as a percentage.
func (s Stats) Percent() float64 {
	if s.Outstanding <= 0 {
		return 100
	}
	return float64(s.Succeeded) / float64(s.Outstanding) * 100
}

// OnDisk returns the number of pages persisted after this run.
func (s Stats) OnDisk() int {
	return s.Total - s.Outstanding + s.Succeeded
}

// Rate returns succeeded pages per second.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Succeeded) / s.Elapsed.Seconds()
}

// Observer receives sampled stats from the Reporter.
type Observer interface {
	Observe(Stats)
}

// Aggregator holds the run statistics shared by all workers.
//
// Page sets are guarded by a mutex; the counters are atomics so readers never
// block writers. A page is recorded at most once: later records for the same
// page are ignored, which keeps succeeded and failed disjoint.
type Aggregator struct {
	total       int
	outstanding int
	start       time.Time

	mu        sync.Mutex
	succeeded map[int]struct{}
	failed    map[int]error
	skipped   map[int]struct{}

	succeededN atomic.Int64
	failedN    atomic.Int64
	skippedN   atomic.Int64
}

// NewAggregator creates an aggregator for a run over total pages of which
// outstanding are not on disk yet.
func NewAggregator(total, outstanding int) *Aggregator {
	return &Aggregator{
		total:       total,
		outstanding: outstanding,
		start:       time.Now(),
		succeeded:   make(map[int]struct{}),
		failed:      make(map[int]error),
		skipped:     make(map[int]struct{}),
	}
}

// recordedLocked reports whether page already has an outcome.
func (a *Aggregator) recordedLocked(page int) bool {
	if _, ok := a.succeeded[page]; ok {
		return true
	}
	if _, ok := a.failed[page]; ok {
		return true
	}
	_, ok := a.skipped[page]
	return ok
}

// RecordSuccess marks page as succeeded.
func (a *Aggregator) RecordSuccess(page int) {
	a.mu.Lock()
	if a.recordedLocked(page) {
		a.mu.Unlock()
		return
	}
	a.succeeded[page] = struct{}{}
	a.mu.Unlock()

	a.succeededN.Add(1)
	PagesTotal.WithLabelValues("succeeded").Inc()
}

// RecordFailure marks page as failed with err.
func (a *Aggregator) RecordFailure(page int, err error) {
	a.mu.Lock()
	if a.recordedLocked(page) {
		a.mu.Unlock()
		return
	}
	a.failed[page] = err
	a.mu.Unlock()

	a.failedN.Add(1)
	PagesTotal.WithLabelValues("failed").Inc()
}

// RecordSkip marks page as already completed before the run.
func (a *Aggregator) RecordSkip(page int) {
	a.mu.Lock()
	if a.recordedLocked(page) {
		a.mu.Unlock()
		return
	}
	a.skipped[page] = struct{}{}
	a.mu.Unlock()

	a.skippedN.Add(1)
	PagesTotal.WithLabelValues("skipped").Inc()
}

// Succeeded returns the succeeded count without locking.
func (a *Aggregator) Succeeded() int {
	return int(a.succeededN.Load())
}

// Failed returns the failed count without locking.
func (a *Aggregator) Failed() int {
	return int(a.failedN.Load())
}

// Snapshot returns the current stats without locking.
func (a *Aggregator) Snapshot() Stats {
	return Stats{
		Total:       a.total,
		Outstanding: a.outstanding,
		Succeeded:   int(a.succeededN.Load()),
		Failed:      int(a.failedN.Load()),
		Skipped:     int(a.skippedN.Load()),
		Elapsed:     time.Since(a.start),
	}
}

// SucceededPages returns the succeeded pages in ascending order.
func (a *Aggregator) SucceededPages() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.succeeded)
}

// FailedPages returns the failed pages in ascending order.
func (a *Aggregator) FailedPages() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	pages := make([]int, 0, len(a.failed))
	for page := range a.failed {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// FailureReason returns the error recorded for a failed page, or nil.
func (a *Aggregator) FailureReason(page int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed[page]
}

func sortedKeys(m map[int]struct{}) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
