package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/queue"
)

type fakeLog struct {
	queue.Log
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakeLog) Trim(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 3, f.err
}

func (f *fakeLog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestTrimOnceUsesRetention(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	log := &fakeLog{}
	r := New(Options{Log: log, Retention: time.Hour, Now: func() time.Time { return now }, Logger: logutil.New(&bytes.Buffer{})})

	if n := r.TrimOnce(context.Background()); n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	if want := now.Add(-time.Hour); !log.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, log.cutoffs[0])
	}
}

func TestTrimOnceLogsErrors(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	r := New(Options{Log: &fakeLog{err: errors.New("redis down")}, Logger: logutil.New(&logs)})
	r.TrimOnce(context.Background())
	if !strings.Contains(logs.String(), "event log trim failed") || !strings.Contains(logs.String(), "redis down") {
		t.Fatalf("expected error log, got %s", logs.String())
	}
}

func TestRunTrimsMemoryLogUntilCancelled(t *testing.T) {
	t.Parallel()

	mem := queue.NewMemoryLog(0)
	if _, err := mem.Append(context.Background(), "old"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	later := time.Now().Add(48 * time.Hour)
	r := New(Options{Log: mem, Interval: 10 * time.Millisecond, Now: func() time.Time { return later }, Logger: logutil.New(&bytes.Buffer{})})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _ := mem.After(context.Background(), "", 0)
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("entry was not trimmed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunTicks(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	r := New(Options{Log: log, Interval: 5 * time.Millisecond, Logger: logutil.New(&bytes.Buffer{})})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for log.calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated trims, got %d", log.calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
