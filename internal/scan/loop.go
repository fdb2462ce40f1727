package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/timeclock/internal/observability"
)

// ProcessFunc captures and processes one frame. It reports matched=true
// when the frame produced an accepted punch, which pauses the loop until
// Resume is called.
type ProcessFunc func(ctx context.Context) (matched bool, err error)

// Loop drives the kiosk scanning cadence. One frame is processed per tick
// with at most one processing call in flight: a tick that arrives while
// the previous call is still running is skipped rather than queued, so a
// slow extractor never builds a backlog. After a match the loop pauses
// (no further frames are issued) until the kiosk returns to its idle
// screen and calls Resume; this prevents two near-simultaneous frames
// from both firing before the persistence-level cooldown would catch the
// duplicate.
type Loop struct {
	interval time.Duration
	process  ProcessFunc

	mu       sync.Mutex
	inflight bool
	paused   bool
}

func NewLoop(interval time.Duration, process ProcessFunc) *Loop {
	return &Loop{interval: interval, process: process}
}

// Run blocks until ctx is cancelled, issuing one processing call per tick
// subject to the inflight and pause guards. In-flight work observes the
// same ctx, so cancellation also abandons the current frame.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !l.tryAcquire() {
			observability.ScanTicksSkipped.Inc()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.release()

			matched, err := l.process(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("scan tick failed", "error", err)
				}
				return
			}
			if matched {
				l.Pause()
			}
		}()
	}
}

// Pause holds scanning off. The loop also pauses itself when a tick
// reports a match; external callers use Pause when the match is learned
// asynchronously.
func (l *Loop) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume re-enables scanning after a match has been handled.
func (l *Loop) Resume() {
	l.mu.Lock()
	l.paused = false
	l.mu.Unlock()
}

// Paused reports whether the loop is holding off after a match.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

func (l *Loop) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight || l.paused {
		return false
	}
	l.inflight = true
	return true
}

func (l *Loop) release() {
	l.mu.Lock()
	l.inflight = false
	l.mu.Unlock()
}
