package client

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/tagpages/internal/testutil"
	"github.com/Sternrassler/tagpages/pkg/tags"
)

// scriptedFetcher returns one scripted error per call; nil means success.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (f *scriptedFetcher) FetchPage(_ context.Context, page int) (*tags.PageResult, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.script) && f.script[i] != nil {
		return nil, nil, f.script[i]
	}
	body := []byte(testutil.PageBody(page, 1))
	result, err := tags.Decode(body)
	return result, body, err
}

func newTestPolicy(f PageFetcher) (*RetryPolicy, *[]time.Duration) {
	var waits []time.Duration
	p := NewRetryPolicy(f, time.Second, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	p.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func TestNewRetryPolicy_DefaultDelay(t *testing.T) {
	p := NewRetryPolicy(&scriptedFetcher{}, 0, zerolog.Nop())
	if p.delay != DefaultRetryDelay {
		t.Errorf("delay = %v, want %v", p.delay, DefaultRetryDelay)
	}
}

func TestRetryPolicy_Fetch(t *testing.T) {
	transportErr := &TransportError{Page: 1, Err: errors.New("connection reset")}
	decodeErr := &DeserializationError{Page: 1, Body: []byte("<html>"), Err: errors.New("invalid character")}
	emptyErr := &EmptyResultError{Page: 1}

	tests := []struct {
		name          string
		script        []error
		wantErr       bool
		wantExhausted bool
		wantCalls     int
		wantWaits     int
		wantState     State
		wantKind      ErrorKind
	}{
		{
			name:      "success first try",
			script:    nil,
			wantCalls: 1,
			wantState: StateSuccess,
		},
		{
			name:      "transport then success",
			script:    []error{transportErr},
			wantCalls: 2,
			wantWaits: 1,
			wantState: StateSuccess,
		},
		{
			name:      "deserialization then success",
			script:    []error{decodeErr},
			wantCalls: 2,
			wantWaits: 1,
			wantState: StateSuccess,
		},
		{
			name:          "transport twice",
			script:        []error{transportErr, transportErr},
			wantErr:       true,
			wantExhausted: true,
			wantCalls:     2,
			wantWaits:     1,
			wantState:     StateTerminalFailure,
			wantKind:      KindTransport,
		},
		{
			name:          "transport then deserialization",
			script:        []error{transportErr, decodeErr},
			wantErr:       true,
			wantExhausted: true,
			wantCalls:     2,
			wantWaits:     1,
			wantState:     StateTerminalFailure,
			wantKind:      KindDeserialization,
		},
		{
			name:      "empty is not retried",
			script:    []error{emptyErr},
			wantErr:   true,
			wantCalls: 1,
			wantState: StateTerminalFailure,
			wantKind:  KindEmpty,
		},
		{
			name:      "empty on retry is terminal",
			script:    []error{transportErr, emptyErr},
			wantErr:   true,
			wantCalls: 2,
			wantWaits: 1,
			wantState: StateTerminalFailure,
			wantKind:  KindEmpty,
		},
		{
			name:      "unknown error is not retried",
			script:    []error{errors.New("create request: bad url")},
			wantErr:   true,
			wantCalls: 1,
			wantState: StateTerminalFailure,
			wantKind:  KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{script: tt.script}
			policy, waits := newTestPolicy(fetcher)

			attempt, err := policy.Fetch(context.Background(), 1)

			if tt.wantErr != (err != nil) {
				t.Fatalf("Fetch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempt.Calls != tt.wantCalls || fetcher.calls != tt.wantCalls {
				t.Errorf("Calls = %d (fetcher saw %d), want %d", attempt.Calls, fetcher.calls, tt.wantCalls)
			}
			if len(*waits) != tt.wantWaits {
				t.Errorf("waits = %d, want %d", len(*waits), tt.wantWaits)
			}
			for _, w := range *waits {
				if w != time.Second {
					t.Errorf("wait = %v, want 1s", w)
				}
			}
			if attempt.State != tt.wantState {
				t.Errorf("State = %q, want %q", attempt.State, tt.wantState)
			}
			if errors.Is(err, ErrRetryExhausted) != tt.wantExhausted {
				t.Errorf("errors.Is(ErrRetryExhausted) = %v, want %v", !tt.wantExhausted, tt.wantExhausted)
			}
			if err != nil && Classify(err) != tt.wantKind {
				t.Errorf("Classify() = %q, want %q", Classify(err), tt.wantKind)
			}
			if err == nil && (attempt.Result == nil || len(attempt.Body) == 0) {
				t.Error("successful attempt should carry result and body")
			}
		})
	}
}

func TestRetryPolicy_ContextCancelledDuringDelay(t *testing.T) {
	fetcher := &scriptedFetcher{script: []error{&TransportError{Page: 4, Err: errors.New("timeout")}}}
	policy := NewRetryPolicy(fetcher, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	attempt, err := policy.Fetch(ctx, 4)
	if time.Since(start) > 5*time.Second {
		t.Fatal("Fetch() did not honour cancellation")
	}

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("expected ErrContextCancelled, got %v", err)
	}
	if attempt.Calls != 1 {
		t.Errorf("Calls = %d, want 1", attempt.Calls)
	}
	if attempt.State != StateTerminalFailure {
		t.Errorf("State = %q, want %q", attempt.State, StateTerminalFailure)
	}
}

func TestRetryPolicy_RealDelay(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Script(8, testutil.NewServerErrorResponse(), testutil.NewPageResponse(8))

	c := newTestClient(t, mock.URL())
	policy := NewRetryPolicy(c, 200*time.Millisecond, zerolog.Nop())

	start := time.Now()
	attempt, err := policy.Fetch(context.Background(), 8)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if attempt.Calls != 2 || mock.RequestCount(8) != 2 {
		t.Errorf("Calls = %d, server saw %d, want 2", attempt.Calls, mock.RequestCount(8))
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("expected the fixed delay before retry, took %v", elapsed)
	}
}
