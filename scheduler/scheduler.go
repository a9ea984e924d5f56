package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"listing_scrooper/config"
	"listing_scrooper/workers"
)

// Drainer processes one batch of queued intake requests.
type Drainer interface {
	ProcessPending(ctx context.Context, batch int) (workers.BatchResult, error)
}

// Scheduler drains the intake queue on a cron expression or fixed interval,
// and on demand through Trigger.
type Scheduler struct {
	cfg     config.SchedulerConfig
	drainer Drainer
	cron    *cron.Cron
	ticker  *time.Ticker
	trigger chan struct{}
	stopCh  chan struct{}
	stopped sync.Once
	mu      sync.Mutex
}

func New(cfg config.SchedulerConfig, drainer Drainer) *Scheduler {
	if cfg.Batch <= 0 {
		cfg.Batch = 5
	}
	return &Scheduler{
		cfg:     cfg,
		drainer: drainer,
		cron:    cron.New(),
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollTriggers(ctx)

	if s.cfg.Cron != "" {
		log.Printf("Starting intake scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.RunOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting intake scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No intake schedule configured, queue drains only on trigger")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.stopped.Do(func() {
		ctx := s.cron.Stop()
		<-ctx.Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// Trigger asks for a drain as soon as possible. Triggers that arrive while
// one is already waiting are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunOnce drains one batch. Overlapping runs are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Println("Intake drain already running, skipping")
		return
	}
	defer s.mu.Unlock()

	res, err := s.drainer.ProcessPending(ctx, s.cfg.Batch)
	if err != nil {
		log.Printf("Scheduled intake error: %v", err)
		return
	}
	if res.Processed > 0 {
		log.Printf("Intake batch: %d processed, %d completed, %d failed", res.Processed, res.Completed, res.Failed)
	}
}

func (s *Scheduler) pollTriggers(ctx context.Context) {
	for {
		select {
		case <-s.trigger:
			s.RunOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
