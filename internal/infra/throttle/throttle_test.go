package throttle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-userbot/internal/infra/throttle"
)

type stopError struct{ msg string }

func (e *stopError) Error() string   { return e.msg }
func (e *stopError) StopRetry() bool { return true }

func TestDoBeforeStartReturnsErrNotStarted(t *testing.T) {
	t.Parallel()

	thr := throttle.New(10)
	err := thr.Do(context.Background(), func() error { return nil })
	if !errors.Is(err, throttle.ErrNotStarted) {
		t.Fatalf("Do() before Start error = %v, want ErrNotStarted", err)
	}
}

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	t.Parallel()

	thr := throttle.New(1000)
	thr.Start(context.Background())
	defer thr.Stop()

	calls := 0
	err := thr.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Fatalf("Do() invoked fn %d times, want exactly 1", calls)
	}
}

func TestDoStopsImmediatelyOnStopRetryError(t *testing.T) {
	t.Parallel()

	thr := throttle.New(1000)
	thr.Start(context.Background())
	defer thr.Stop()

	wantErr := &stopError{msg: "permanent"}
	calls := 0
	err := thr.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want the stop error returned unwrapped", err)
	}
	if calls != 1 {
		t.Fatalf("Do() invoked fn %d times, want exactly 1 (no retries on StopRetry)", calls)
	}
}

func TestDoHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	// Use a slow refill rate and drain the prefilled burst first, so the
	// token channel is genuinely empty and the only ready case in the
	// takeToken select is the already-cancelled context.
	thr := throttle.New(1, throttle.WithBurst(1))
	thr.Start(context.Background())
	defer thr.Stop()

	if err := thr.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Do() draining the burst token error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := thr.Do(ctx, func() error {
		t.Fatalf("fn invoked after context already cancelled")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDoWaitExtractorHonorsServerHintThenSucceeds(t *testing.T) {
	t.Parallel()

	recognized := errors.New("rate limited")
	extractor := func(err error) (time.Duration, bool) {
		if errors.Is(err, recognized) {
			return time.Millisecond, true
		}
		return 0, false
	}

	thr := throttle.New(1000, throttle.WithWaitExtractors(extractor))
	thr.Start(context.Background())
	defer thr.Stop()

	calls := 0
	err := thr.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return recognized
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil after the hinted waits elapse", err)
	}
	if calls != 3 {
		t.Fatalf("Do() invoked fn %d times, want 3", calls)
	}
}

func TestDoMaxRetriesReachedWrapsLastError(t *testing.T) {
	t.Parallel()

	persistent := errors.New("still failing")
	thr := throttle.New(1000, throttle.WithMaxRetries(1), throttle.WithRandom(func() float64 { return 0 }))
	thr.Start(context.Background())
	defer thr.Stop()

	calls := 0
	err := thr.Do(context.Background(), func() error {
		calls++
		return persistent
	})
	if err == nil {
		t.Fatalf("Do() error = nil, want max-retries error")
	}
	if !errors.Is(err, persistent) {
		t.Fatalf("Do() error = %v, want it to wrap the persistent error", err)
	}
	if calls != 2 {
		t.Fatalf("Do() invoked fn %d times, want 2 (initial attempt plus 1 retry)", calls)
	}
}

func TestStopIsIdempotentAndSafeWithoutStart(t *testing.T) {
	t.Parallel()

	thr := throttle.New(5)
	thr.Stop()
	thr.Stop()

	thr.Start(context.Background())
	thr.Stop()
	thr.Stop()
}
