package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
)

const barWidth = 30

// Options configures the progress reporter.
type Options struct {
	// Workers is the number of parallel workers (for display).
	Workers int

	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// Interval is how often to sample the aggregator.
	// Default: 100ms
	Interval time.Duration

	// NoColor renders plain text and an ASCII bar.
	NoColor bool

	// Observers receive every sampled snapshot, including the final one.
	Observers []Observer
}

// Reporter samples an Aggregator at a fixed cadence and renders progress.
type Reporter struct {
	agg    *Aggregator
	opts   Options
	styles styles
	bar    bprogress.Model

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReporter creates a new progress reporter.
func NewReporter(agg *Aggregator, opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}

	return &Reporter{
		agg:    agg,
		opts:   opts,
		styles: newStyles(opts.Output, opts.NoColor),
		bar: bprogress.New(
			bprogress.WithDefaultGradient(),
			bprogress.WithWidth(barWidth),
			bprogress.WithoutPercentage(),
		),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins the sampling loop.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	s := r.agg.Snapshot()
	fmt.Fprintf(r.opts.Output, "[tagpages] Pages: %d total | %d on disk | %d outstanding | Workers: %d\n",
		s.Total,
		s.Total-s.Outstanding,
		s.Outstanding,
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop ends the sampling loop and prints the final statistics. It blocks
// until the final output is written and is safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	if !started {
		close(r.doneCh)
		r.printFinalStatus()
		return
	}

	close(r.stopCh)
	<-r.doneCh
}

// updateLoop periodically redraws the progress line.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress redraws the single progress line.
func (r *Reporter) printProgress() {
	s := r.agg.Snapshot()
	r.notify(s)

	fmt.Fprintf(r.opts.Output, "\r[tagpages] %s %5.1f%% | %s ok | %s failed | %.1f pages/s    ",
		r.renderBar(s.Percent()/100),
		s.Percent(),
		r.styles.success.Render(fmt.Sprint(s.Succeeded)),
		r.styles.err.Render(fmt.Sprint(s.Failed)),
		s.Rate(),
	)
}

// printFinalStatus prints the statistics block once the pool has joined.
func (r *Reporter) printFinalStatus() {
	s := r.agg.Snapshot()
	r.notify(s)

	out := r.opts.Output
	fmt.Fprintf(out, "\r%s\n", strings.Repeat(" ", barWidth+60))
	fmt.Fprintln(out, r.styles.header.Render("Statistics:"))
	fmt.Fprintln(out, r.styles.success.Render(fmt.Sprintf("Completed tasks: %d", s.Succeeded)))
	fmt.Fprintln(out, r.styles.err.Render(fmt.Sprintf("Failed tasks: %d", s.Failed)))
	fmt.Fprintf(out, "Total: %s/%s (%s) | on disk: %d/%d | took %s\n",
		r.styles.success.Render(fmt.Sprint(s.Succeeded)),
		r.styles.err.Render(fmt.Sprint(s.Outstanding)),
		r.styles.highlight.Render(fmt.Sprintf("%.1f%%", s.Percent())),
		s.OnDisk(),
		s.Total,
		r.styles.muted.Render(s.Elapsed.Round(time.Millisecond).String()),
	)
}

// renderBar draws the completion bar for percent in [0, 1].
func (r *Reporter) renderBar(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}

	if r.opts.NoColor {
		filled := int(percent * barWidth)
		return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
	}
	return r.bar.ViewAs(percent)
}

func (r *Reporter) notify(s Stats) {
	for _, o := range r.opts.Observers {
		o.Observe(s)
	}
}
