package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopSkipsTicksWhileInflight(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		maxSeen int
		calls   atomic.Int32
	)

	// Each call outlasts several ticks; the guard must keep concurrency
	// at one.
	process := func(ctx context.Context) (bool, error) {
		mu.Lock()
		running++
		if running > maxSeen {
			maxSeen = running
		}
		mu.Unlock()

		calls.Add(1)
		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return false, nil
	}

	loop := NewLoop(5*time.Millisecond, process)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_ = loop.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Errorf("max concurrent processing calls = %d; want 1", maxSeen)
	}
	if n := calls.Load(); n < 2 || n > 6 {
		t.Errorf("calls = %d; want a handful (ticks skipped, not queued)", n)
	}
}

func TestLoopPausesAfterMatch(t *testing.T) {
	var calls atomic.Int32
	process := func(ctx context.Context) (bool, error) {
		calls.Add(1)
		return true, nil // every frame matches
	}

	loop := NewLoop(5*time.Millisecond, process)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = loop.Run(ctx)

	if n := calls.Load(); n != 1 {
		t.Errorf("calls after match = %d; want exactly 1 (loop must pause)", n)
	}
	if !loop.Paused() {
		t.Error("loop must report paused after a match")
	}
}

func TestLoopResumeRestartsScanning(t *testing.T) {
	var calls atomic.Int32
	process := func(ctx context.Context) (bool, error) {
		return calls.Add(1) == 1, nil // only the first frame matches
	}

	loop := NewLoop(5*time.Millisecond, process)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return loop.Paused() })
	loop.Resume()
	waitFor(t, func() bool { return calls.Load() >= 3 })

	cancel()
	<-done
}

func TestLoopStopsOnCancel(t *testing.T) {
	started := make(chan struct{})
	process := func(ctx context.Context) (bool, error) {
		close(started)
		<-ctx.Done() // simulate a long extraction
		return false, ctx.Err()
	}

	loop := NewLoop(5*time.Millisecond, process)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v; want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestLoopKeepsScanningThroughErrors(t *testing.T) {
	var calls atomic.Int32
	process := func(ctx context.Context) (bool, error) {
		calls.Add(1)
		return false, errors.New("no face this tick")
	}

	loop := NewLoop(5*time.Millisecond, process)
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_ = loop.Run(ctx)

	if calls.Load() < 3 {
		t.Errorf("calls = %d; errors must not halt the loop", calls.Load())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
