package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the reporter goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type countingObserver struct {
	mu   sync.Mutex
	seen []Stats
}

func (o *countingObserver) Observe(s Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, s)
}

func (o *countingObserver) last() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seen[len(o.seen)-1]
}

func TestNewReporter_Defaults(t *testing.T) {
	r := NewReporter(NewAggregator(1, 1), Options{})
	if r.opts.Output == nil {
		t.Error("Output should default to stdout")
	}
	if r.opts.Interval != 100*time.Millisecond {
		t.Errorf("Interval = %v, want 100ms", r.opts.Interval)
	}
}

func TestReporter_StartStop(t *testing.T) {
	out := &syncBuffer{}
	obs := &countingObserver{}
	agg := NewAggregator(10, 8)

	r := NewReporter(agg, Options{
		Workers:   2,
		Output:    out,
		Interval:  10 * time.Millisecond,
		NoColor:   true,
		Observers: []Observer{obs},
	})
	r.Start()

	agg.RecordSkip(0)
	agg.RecordSkip(1)
	for page := 2; page < 8; page++ {
		agg.RecordSuccess(page)
	}
	agg.RecordFailure(8, nil)

	time.Sleep(50 * time.Millisecond)
	r.Stop()
	r.Stop()

	got := out.String()
	for _, want := range []string{
		"[tagpages] Pages: 10 total | 2 on disk | 8 outstanding | Workers: 2",
		"Statistics:",
		"Completed tasks: 6",
		"Failed tasks: 1",
		"Total: 6/8 (75.0%) | on disk: 8/10",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "Statistics:") != 1 {
		t.Errorf("final statistics printed %d times", strings.Count(got, "Statistics:"))
	}
	if !strings.Contains(got, "[#") {
		t.Errorf("expected an ASCII progress bar in output:\n%s", got)
	}

	final := obs.last()
	if final.Succeeded != 6 || final.Failed != 1 || final.Skipped != 2 {
		t.Errorf("final observed stats = %+v", final)
	}
}

func TestReporter_StopWithoutStart(t *testing.T) {
	out := &syncBuffer{}
	r := NewReporter(NewAggregator(1, 1), Options{Output: out, NoColor: true})

	r.Stop()

	if !strings.Contains(out.String(), "Completed tasks: 0") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestReporter_RenderBar(t *testing.T) {
	r := NewReporter(NewAggregator(1, 1), Options{Output: &syncBuffer{}, NoColor: true})

	tests := []struct {
		percent float64
		want    string
	}{
		{0, "[" + strings.Repeat("-", barWidth) + "]"},
		{1, "[" + strings.Repeat("#", barWidth) + "]"},
		{1.5, "[" + strings.Repeat("#", barWidth) + "]"},
		{0.5, "[" + strings.Repeat("#", barWidth/2) + strings.Repeat("-", barWidth/2) + "]"},
	}

	for _, tt := range tests {
		if got := r.renderBar(tt.percent); got != tt.want {
			t.Errorf("renderBar(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}
