package poll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiwari-pos/monitor/internal/poll"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollerRunsImmediatelyAndOnInterval(t *testing.T) {
	var cycles atomic.Int32
	p := poll.New("test", 20*time.Millisecond, func(ctx context.Context) error {
		cycles.Add(1)
		return nil
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(110 * time.Millisecond)
	cancel()
	<-done

	if got := cycles.Load(); got < 3 {
		t.Errorf("cycles: got %d, want at least 3", got)
	}
}

func TestPollerNeverOverlaps(t *testing.T) {
	var mu sync.Mutex
	running := 0
	maxRunning := 0

	p := poll.New("slow", 10*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()

		// Slower than the interval.
		time.Sleep(35 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if maxRunning != 1 {
		t.Errorf("max concurrent cycles: got %d, want 1", maxRunning)
	}
}

func TestPollerSurvivesErrors(t *testing.T) {
	var cycles atomic.Int32
	p := poll.New("flaky", 15*time.Millisecond, func(ctx context.Context) error {
		cycles.Add(1)
		return errors.New("fetch failed")
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if got := cycles.Load(); got < 2 {
		t.Errorf("cycles: got %d, want at least 2 despite errors", got)
	}
}
