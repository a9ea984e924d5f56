package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"listing_scrooper/models"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
)

// IntakeExtractor is the part of services.IntakeService the worker needs.
type IntakeExtractor interface {
	Extract(ctx context.Context, rawURL string) (*services.Result, error)
}

// IntakeWorker drains the intake queue through the extraction service.
type IntakeWorker struct {
	queue     services.Queue
	extractor IntakeExtractor
	logger    LogFunc
}

func NewIntakeWorker(queue services.Queue, extractor IntakeExtractor) *IntakeWorker {
	return &IntakeWorker{
		queue:     queue,
		extractor: extractor,
		logger:    NoOpLogger,
	}
}

func (w *IntakeWorker) SetLogger(fn LogFunc) {
	if fn == nil {
		fn = NoOpLogger
	}
	w.logger = fn
}

// BatchResult counts what one ProcessPending call did.
type BatchResult struct {
	Processed int
	Completed int
	Failed    int
}

// ProcessPending extracts up to batch queued URLs. A request whose
// extraction errors or yields nothing is retried on later batches until it
// has used up models.MaxIntakeAttempts.
func (w *IntakeWorker) ProcessPending(ctx context.Context, batch int) (BatchResult, error) {
	var res BatchResult

	pending, err := w.queue.PendingIntake(batch)
	if err != nil {
		return res, fmt.Errorf("load pending intake: %w", err)
	}
	if len(pending) == 0 {
		return res, nil
	}
	log.Printf("Processing %d queued intake requests", len(pending))

	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		if err := w.process(ctx, req); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			w.logger(models.LogLevelWarn, "intake", fmt.Sprintf("request %d (%s): %v", req.ID, req.URL, err))
			if ferr := w.queue.FailIntake(req.ID, err.Error()); ferr != nil {
				log.Printf("Failed to mark intake %d failed: %v", req.ID, ferr)
			}
			continue
		}
		res.Completed++
	}

	w.logger(models.LogLevelInfo, "intake", fmt.Sprintf("batch done: %d processed, %d completed, %d failed",
		res.Processed, res.Completed, res.Failed))
	return res, nil
}

func (w *IntakeWorker) process(ctx context.Context, req models.IntakeRequest) error {
	result, err := w.extractor.Extract(ctx, req.URL)
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidInput) {
			return fmt.Errorf("invalid url: %w", err)
		}
		return err
	}
	if result.Miss {
		return errors.New("url recently produced no listing data")
	}
	if result.Report != nil && result.Report.State == models.StateFailed {
		return fmt.Errorf("extraction failed: %s", strings.Join(result.Report.Errors, "; "))
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := w.queue.CompleteIntake(req.ID, data); err != nil {
		return fmt.Errorf("complete intake: %w", err)
	}
	log.Printf("Completed intake %d for %s", req.ID, req.URL)
	return nil
}
