package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"listing_scrooper/config"
	"listing_scrooper/workers"
)

type countingDrainer struct {
	mu      sync.Mutex
	calls   int
	batches []int
	started chan struct{}
	block   chan struct{}
	done    chan struct{}
}

func newCountingDrainer() *countingDrainer {
	return &countingDrainer{done: make(chan struct{}, 16)}
}

func (d *countingDrainer) ProcessPending(ctx context.Context, batch int) (workers.BatchResult, error) {
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.calls++
	d.batches = append(d.batches, batch)
	d.mu.Unlock()
	d.done <- struct{}{}
	return workers.BatchResult{}, nil
}

func (d *countingDrainer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDrainer) firstBatch() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batches[0]
}

func waitForRun(t *testing.T, d *countingDrainer) {
	t.Helper()
	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a drain")
	}
}

func TestScheduler_Trigger(t *testing.T) {
	d := newCountingDrainer()
	s := New(config.SchedulerConfig{Batch: 7}, d)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	s.Trigger()
	waitForRun(t, d)

	if d.count() != 1 || d.firstBatch() != 7 {
		t.Fatalf("expected one drain with batch 7, got %d calls", d.count())
	}
}

func TestScheduler_Interval(t *testing.T) {
	d := newCountingDrainer()
	s := New(config.SchedulerConfig{Interval: 10 * time.Millisecond}, d)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	waitForRun(t, d)
	waitForRun(t, d)

	if got := d.firstBatch(); got != 5 {
		t.Fatalf("expected default batch 5, got %d", got)
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	s := New(config.SchedulerConfig{Cron: "not a cron"}, newCountingDrainer())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	s.Stop()
}

func TestScheduler_RunOnceSkipsOverlap(t *testing.T) {
	d := newCountingDrainer()
	d.started = make(chan struct{}, 1)
	d.block = make(chan struct{})
	s := New(config.SchedulerConfig{}, d)

	go s.RunOnce(context.Background())
	<-d.started

	s.RunOnce(context.Background())
	close(d.block)
	waitForRun(t, d)

	if d.count() != 1 {
		t.Fatalf("expected overlapping run to be skipped, got %d calls", d.count())
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := New(config.SchedulerConfig{}, newCountingDrainer())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Stop()
	s.Stop()
}
