package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"listing_scrooper/identity"
	"listing_scrooper/logging"
	"listing_scrooper/models"
	"listing_scrooper/scraper"
)

var ErrQueueUnavailable = errors.New("intake queue not configured")

// Extractor turns a listing URL into a record.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*models.PropertyListingRecord, *scraper.Report, error)
}

// RunStore persists one row per extraction plus its per-layer log lines.
type RunStore interface {
	CreateRun(run *models.ExtractionRun) (int64, error)
	FinishRun(run *models.ExtractionRun) error
	Log(runID *int64, level models.LogLevel, layer, message string) error
}

// Queue holds URLs waiting for background extraction.
type Queue interface {
	EnqueueIntake(url string) (int64, error)
	GetIntake(id int64) (*models.IntakeRequest, error)
	PendingIntake(limit int) ([]models.IntakeRequest, error)
	CompleteIntake(id int64, result json.RawMessage) error
	FailIntake(id int64, message string) error
}

// Cache short-circuits repeat extractions of the same URL.
type Cache interface {
	Get(ctx context.Context, url string) (*models.PropertyListingRecord, error)
	Set(ctx context.Context, url string, rec *models.PropertyListingRecord) error
	SetMiss(ctx context.Context, url string) error
	IsMiss(ctx context.Context, url string) (bool, error)
}

// Archive stores the raw HTML each record was extracted from.
type Archive interface {
	Key(urlKey, requestID string, at time.Time) string
	Put(ctx context.Context, key, html string) error
}

// DraftStore receives finished records for the property-creation flow.
type DraftStore interface {
	GetDraftByFingerprint(ctx context.Context, fingerprint string) (*models.IntakeDraft, error)
	UpsertDraft(ctx context.Context, d *models.IntakeDraft) error
}

// Deps are the optional collaborators of an IntakeService. Leave a field nil
// to run without it.
type Deps struct {
	Runs    RunStore
	Queue   Queue
	Cache   Cache
	Archive Archive
	Drafts  DraftStore
}

// IntakeService wraps the extraction pipeline with caching, run logging,
// snapshot archiving and draft persistence.
type IntakeService struct {
	extractor Extractor
	deps      Deps
}

func NewIntakeService(extractor Extractor, deps Deps) *IntakeService {
	return &IntakeService{extractor: extractor, deps: deps}
}

// Result is what one Extract call produced.
type Result struct {
	Record      *models.PropertyListingRecord `json:"record"`
	Report      *scraper.Report               `json:"report,omitempty"`
	Cached      bool                          `json:"cached"`
	Miss        bool                          `json:"miss,omitempty"`
	DraftID     string                        `json:"draft_id,omitempty"`
	SnapshotKey string                        `json:"snapshot_key,omitempty"`
}

// Extract returns the record for rawURL, from cache when possible. Storage
// failures are logged and never fail the extraction.
func (s *IntakeService) Extract(ctx context.Context, rawURL string) (*Result, error) {
	if err := scraper.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	if res := s.fromCache(ctx, rawURL); res != nil {
		return res, nil
	}

	run := &models.ExtractionRun{URL: rawURL, StartedAt: time.Now(), Status: models.RunStatusRunning}
	var runID *int64
	if s.deps.Runs != nil {
		id, err := s.deps.Runs.CreateRun(run)
		if err != nil {
			logging.Warnf("Failed to create run for %s: %v", rawURL, err)
		} else {
			run.ID = id
			runID = &id
		}
	}

	rec, report, err := s.extractor.Extract(ctx, rawURL)
	res := &Result{Record: rec, Report: report}
	if report != nil {
		s.logAttempts(runID, report)
	}

	if err == nil && report != nil {
		res.SnapshotKey = s.archive(ctx, rawURL, report)
		if report.State == models.StateDone {
			res.DraftID = s.saveDraft(ctx, rec, res.SnapshotKey)
		}
		s.cache(ctx, rawURL, rec, report)
	}

	s.finishRun(run, runID, rec, report, err)
	return res, err
}

// Enqueue queues rawURL for the background worker.
func (s *IntakeService) Enqueue(ctx context.Context, rawURL string) (int64, error) {
	if err := scraper.ValidateURL(rawURL); err != nil {
		return 0, err
	}
	if s.deps.Queue == nil {
		return 0, ErrQueueUnavailable
	}
	id, err := s.deps.Queue.EnqueueIntake(rawURL)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	log.Printf("Queued intake %d for %s", id, rawURL)
	return id, nil
}

// Get returns a queued request, or nil if it does not exist.
func (s *IntakeService) Get(ctx context.Context, id int64) (*models.IntakeRequest, error) {
	if s.deps.Queue == nil {
		return nil, ErrQueueUnavailable
	}
	return s.deps.Queue.GetIntake(id)
}

func (s *IntakeService) Queue() Queue {
	return s.deps.Queue
}

func (s *IntakeService) fromCache(ctx context.Context, rawURL string) *Result {
	if s.deps.Cache == nil {
		return nil
	}

	rec, err := s.deps.Cache.Get(ctx, rawURL)
	if err != nil {
		logging.Warnf("Cache lookup failed for %s: %v", rawURL, err)
		return nil
	}
	if rec != nil {
		rec.SourceURL = rawURL
		logging.Debugf("Cache hit for %s", rawURL)
		return &Result{Record: rec, Cached: true}
	}

	miss, err := s.deps.Cache.IsMiss(ctx, rawURL)
	if err != nil {
		logging.Warnf("Cache lookup failed for %s: %v", rawURL, err)
		return nil
	}
	if miss {
		rec := models.NewRecord(rawURL)
		rec.Address = models.AddressUnavailable
		logging.Debugf("Negative cache hit for %s", rawURL)
		return &Result{Record: rec, Cached: true, Miss: true}
	}
	return nil
}

func (s *IntakeService) archive(ctx context.Context, rawURL string, report *scraper.Report) string {
	if s.deps.Archive == nil || report.HTML == "" {
		return ""
	}
	key := s.deps.Archive.Key(identity.URLKey(rawURL), report.RequestID, report.StartedAt)
	if err := s.deps.Archive.Put(ctx, key, report.HTML); err != nil {
		logging.Warnf("Failed to archive snapshot for %s: %v", rawURL, err)
		return ""
	}
	return key
}

func (s *IntakeService) saveDraft(ctx context.Context, rec *models.PropertyListingRecord, snapshotKey string) string {
	if s.deps.Drafts == nil || rec.Address == models.AddressUnavailable {
		return ""
	}

	fingerprint := identity.Fingerprint(rec)
	rec = s.withPreviousDraft(ctx, fingerprint, rec)

	data, err := json.Marshal(rec)
	if err != nil {
		logging.Warnf("Failed to encode draft for %s: %v", rec.SourceURL, err)
		return ""
	}

	draft := &models.IntakeDraft{
		Fingerprint: fingerprint,
		SourceURL:   rec.SourceURL,
		Address:     rec.Address,
		City:        rec.City,
		State:       rec.State,
		Zip:         rec.Zip,
		Price:       rec.Price.String(),
		AgentName:   rec.ListingAgentName,
		AgentEmail:  rec.ListingAgentEmail,
		Record:      data,
		SnapshotKey: snapshotKey,
	}
	if err := s.deps.Drafts.UpsertDraft(ctx, draft); err != nil {
		logging.Warnf("Failed to save draft for %s: %v", rec.SourceURL, err)
		return ""
	}
	return draft.ID
}

// withPreviousDraft fills fields this extraction missed from the draft an
// earlier extraction of the same property saved. rec itself is not modified.
func (s *IntakeService) withPreviousDraft(ctx context.Context, fingerprint string, rec *models.PropertyListingRecord) *models.PropertyListingRecord {
	prev, err := s.deps.Drafts.GetDraftByFingerprint(ctx, fingerprint)
	if err != nil {
		logging.Warnf("Failed to load previous draft for %s: %v", rec.SourceURL, err)
		return rec
	}
	if prev == nil || len(prev.Record) == 0 {
		return rec
	}

	var old models.PropertyListingRecord
	if err := json.Unmarshal(prev.Record, &old); err != nil {
		logging.Warnf("Ignoring unreadable draft %s: %v", prev.ID, err)
		return rec
	}

	merged := *rec
	merged.Features = append([]string(nil), rec.Features...)
	merged.ImageURLs = append([]string(nil), rec.ImageURLs...)
	merged.Merge(&old)
	logging.Debugf("Merged previous draft %s into %s", prev.ID, rec.SourceURL)
	return &merged
}

func (s *IntakeService) cache(ctx context.Context, rawURL string, rec *models.PropertyListingRecord, report *scraper.Report) {
	if s.deps.Cache == nil {
		return
	}
	var err error
	if report.State == models.StateFailed {
		err = s.deps.Cache.SetMiss(ctx, rawURL)
	} else {
		err = s.deps.Cache.Set(ctx, rawURL, rec)
	}
	if err != nil {
		logging.Warnf("Failed to cache result for %s: %v", rawURL, err)
	}
}

func (s *IntakeService) logAttempts(runID *int64, report *scraper.Report) {
	if s.deps.Runs == nil || runID == nil {
		return
	}
	for _, a := range report.Attempts {
		level := models.LogLevelInfo
		msg := fmt.Sprintf("%s in %s: %d fields", a.Status, a.Duration.Round(time.Millisecond), len(a.Fields))
		switch a.Status {
		case models.AttemptFailed:
			level = models.LogLevelWarn
			msg = fmt.Sprintf("failed in %s: %s", a.Duration.Round(time.Millisecond), a.Error)
		case models.AttemptSkipped:
			level = models.LogLevelDebug
			msg = "skipped: " + a.Error
		}
		if err := s.deps.Runs.Log(runID, level, a.Layer, msg); err != nil {
			logging.Warnf("Failed to write run log: %v", err)
			return
		}
	}
}

func (s *IntakeService) finishRun(run *models.ExtractionRun, runID *int64, rec *models.PropertyListingRecord, report *scraper.Report, extractErr error) {
	if s.deps.Runs == nil || runID == nil {
		return
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if report != nil {
		run.RequestID = report.RequestID
		run.FinalState = report.State
		if report.State == models.StateFailed {
			run.Status = models.RunStatusFailed
		}
		if len(report.Errors) > 0 {
			run.Error = report.Errors[len(report.Errors)-1]
		}
	}
	if rec != nil {
		run.FieldsFound = len(rec.Fields())
	}
	if extractErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = extractErr.Error()
	}

	if err := s.deps.Runs.FinishRun(run); err != nil {
		logging.Warnf("Failed to finish run %d: %v", run.ID, err)
	}
}
