package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fluxbatch/internal/infra"
	"fluxbatch/internal/providers/replicate"
)

type scriptedFetcher struct {
	updates []JobUpdate
	errs    []error
	calls   int
	onFetch func(call int)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, token, jobID string) (JobUpdate, error) {
	i := f.calls
	f.calls++
	if f.onFetch != nil {
		f.onFetch(f.calls)
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return JobUpdate{}, f.errs[i]
	}
	if i < len(f.updates) {
		return f.updates[i], nil
	}
	return JobUpdate{Status: replicate.StatusProcessing}, nil
}

func testLogger() infra.Logger {
	return infra.Logger(zerolog.New(io.Discard))
}

func TestPollReturnsOutputsOnSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []JobUpdate{
		{Status: replicate.StatusStarting},
		{Status: replicate.StatusProcessing},
		{Status: replicate.StatusSucceeded, Output: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}},
	}}
	p := NewPoller(fetcher, time.Millisecond, 10, testLogger())

	outputs, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, NewSignal())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(outputs))
	}
	if fetcher.calls != 3 {
		t.Fatalf("fetch calls = %d, want 3", fetcher.calls)
	}
}

func TestPollSurfacesRemoteFailure(t *testing.T) {
	fetcher := &scriptedFetcher{updates: []JobUpdate{
		{Status: replicate.StatusFailed, Error: "NSFW content detected"},
	}}
	p := NewPoller(fetcher, time.Millisecond, 10, testLogger())

	_, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, NewSignal())
	if !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("err = %v, want ErrRemoteFailed", err)
	}
	if want := "NSFW content detected"; !strings.Contains(err.Error(), want) {
		t.Fatalf("err = %v, want provider message %q", err, want)
	}
}

func TestPollFetchErrorIsFatal(t *testing.T) {
	fetcher := &scriptedFetcher{errs: []error{errors.New("connection reset")}}
	p := NewPoller(fetcher, time.Millisecond, 10, testLogger())

	_, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, NewSignal())
	if err == nil {
		t.Fatalf("expected error")
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (no retry after fetch error)", fetcher.calls)
	}
}

func TestPollExhaustsAttemptBudget(t *testing.T) {
	fetcher := &scriptedFetcher{}
	p := NewPoller(fetcher, time.Microsecond, 4, testLogger())

	_, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, NewSignal())
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if fetcher.calls != 4 {
		t.Fatalf("fetch calls = %d, want exactly 4", fetcher.calls)
	}
}

func TestPollObservesCancelBeforeFetch(t *testing.T) {
	sig := NewSignal()
	sig.Cancel()
	fetcher := &scriptedFetcher{}
	p := NewPoller(fetcher, time.Millisecond, 10, testLogger())

	_, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, sig)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetch calls = %d, want 0", fetcher.calls)
	}
}

func TestPollCancelDuringWaitDoesNotWaitForTimer(t *testing.T) {
	sig := NewSignal()
	fetcher := &scriptedFetcher{onFetch: func(call int) {
		if call == 1 {
			sig.Cancel()
		}
	}}
	// A long interval proves cancellation short-circuits the wait.
	p := NewPoller(fetcher, time.Hour, 10, testLogger())

	start := time.Now()
	_, err := p.Poll(context.Background(), "tok", JobHandle{ID: "job-1"}, sig)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("poll blocked %v waiting for the timer", elapsed)
	}
}

func TestPollContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &scriptedFetcher{onFetch: func(call int) {
		if call == 1 {
			cancel()
		}
	}}
	p := NewPoller(fetcher, time.Hour, 10, testLogger())

	_, err := p.Poll(ctx, "tok", JobHandle{ID: "job-1"}, NewSignal())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
