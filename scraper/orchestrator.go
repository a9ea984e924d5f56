package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"listing_scrooper/fetcher"
	"listing_scrooper/models"
	"listing_scrooper/normalize"
	"listing_scrooper/search"
)

// Resolver is the search-backed enrichment the orchestrator falls back on.
type Resolver interface {
	ResolveCanonicalListingURL(ctx context.Context, originalURL string) string
	ResolveAgentEmail(ctx context.Context, agent search.AgentQuery) string
	SearchContext(ctx context.Context, rawURL string) string
}

// Report describes how one extraction call went, layer by layer.
type Report struct {
	RequestID   string                     `json:"request_id"`
	URL         string                     `json:"url"`
	FetchedURL  string                     `json:"fetched_url,omitempty"`
	State       models.ExtractionState     `json:"state"`
	Transitions []models.ExtractionState   `json:"transitions"`
	Attempts    []models.ExtractionAttempt `json:"attempts"`
	Errors      []string                   `json:"errors,omitempty"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`

	// HTML is the page the fields were extracted from, if any.
	HTML string `json:"-"`
}

func (r *Report) enter(state models.ExtractionState) {
	r.State = state
	r.Transitions = append(r.Transitions, state)
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Orchestrator runs one listing URL through fetch, field extraction and
// enrichment, merging whatever each layer finds.
type Orchestrator struct {
	fetcher    fetcher.Fetcher
	strategies []Strategy
	resolver   Resolver
}

func NewOrchestrator(f fetcher.Fetcher, strategies []Strategy, resolver Resolver) *Orchestrator {
	return &Orchestrator{
		fetcher:    f,
		strategies: strategies,
		resolver:   resolver,
	}
}

// ValidateURL accepts absolute http(s) URLs with a host. The URL is used
// verbatim as sourceUrl, so surrounding whitespace is rejected rather than
// trimmed.
func ValidateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if trimmed != rawURL {
		return fmt.Errorf("%w: url has surrounding whitespace", ErrInvalidInput)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidInput)
	}
	return nil
}

// Extract always returns a record for valid input. The only errors are
// ErrInvalidInput and the context's error when ctx ends mid-call; in the
// latter case the partial record is returned alongside it.
func (o *Orchestrator) Extract(ctx context.Context, rawURL string) (*models.PropertyListingRecord, *Report, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, nil, err
	}

	report := &Report{
		RequestID: uuid.NewString(),
		URL:       rawURL,
		StartedAt: time.Now(),
	}
	rec := models.NewRecord(rawURL)

	report.enter(models.StateFetching)
	html, fetchedURL := o.fetch(ctx, rawURL, report)
	if err := ctx.Err(); err != nil {
		return o.abort(rec, report, err)
	}
	report.HTML = html
	report.FetchedURL = fetchedURL

	if html != "" {
		report.enter(models.StateFieldExtraction)
		o.runStrategies(ctx, Source{URL: fetchedURL, HTML: html}, rec, report)
		if err := ctx.Err(); err != nil {
			return o.abort(rec, report, err)
		}
		report.enter(models.StateEnrichment)
	} else {
		report.enter(models.StateEnrichment)
		if text := o.searchContext(ctx, rawURL, report); text != "" {
			o.runStrategies(ctx, Source{URL: rawURL, Text: text}, rec, report)
		}
		if err := ctx.Err(); err != nil {
			return o.abort(rec, report, err)
		}
	}

	o.enrichEmail(ctx, rec, report)
	if err := ctx.Err(); err != nil {
		return o.abort(rec, report, err)
	}

	o.finish(rec, report)
	return rec, report, nil
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL string, report *Report) (string, string) {
	if o.fetcher == nil {
		report.fail("no fetcher configured")
		return "", rawURL
	}

	html := o.fetchOnce(ctx, "fetch", rawURL, report)
	if html != "" || ctx.Err() != nil || o.resolver == nil {
		return html, rawURL
	}

	var canonical string
	o.runLayer(report, "canonical_url", func() ([]string, error) {
		canonical = o.resolver.ResolveCanonicalListingURL(ctx, rawURL)
		if canonical == "" {
			return nil, nil
		}
		return []string{"canonicalUrl"}, nil
	})
	if canonical == "" || canonical == rawURL || ctx.Err() != nil {
		return "", rawURL
	}

	log.Printf("[info] fetch: retrying with canonical listing %s", canonical)
	return o.fetchOnce(ctx, "fetch_canonical", canonical, report), canonical
}

func (o *Orchestrator) fetchOnce(ctx context.Context, layer, target string, report *Report) string {
	var html string
	o.runLayer(report, layer, func() ([]string, error) {
		h, err := o.fetcher.Fetch(ctx, target)
		if err != nil {
			return nil, err
		}
		html = h
		return []string{"html"}, nil
	})
	return html
}

func (o *Orchestrator) searchContext(ctx context.Context, rawURL string, report *Report) string {
	if o.resolver == nil {
		return ""
	}
	var text string
	o.runLayer(report, "search_context", func() ([]string, error) {
		text = o.resolver.SearchContext(ctx, rawURL)
		if text == "" {
			return nil, nil
		}
		return []string{"searchContext"}, nil
	})
	return text
}

// runStrategies runs the configured strategies in order. A later strategy
// only runs while some field is still empty.
func (o *Orchestrator) runStrategies(ctx context.Context, src Source, rec *models.PropertyListingRecord, report *Report) {
	for i, s := range o.strategies {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && len(rec.Missing()) == 0 {
			o.skip(report, s.Name(), "all fields filled")
			continue
		}
		if !s.Supports(src) {
			o.skip(report, s.Name(), "source not supported")
			continue
		}

		var partial *models.PropertyListingRecord
		o.runLayer(report, s.Name(), func() ([]string, error) {
			p, err := s.Extract(ctx, src)
			if err != nil {
				return nil, err
			}
			partial = p
			if p == nil {
				return nil, nil
			}
			return p.Fields(), nil
		})
		rec.Merge(partial)
	}
}

func (o *Orchestrator) enrichEmail(ctx context.Context, rec *models.PropertyListingRecord, report *Report) {
	if o.resolver == nil || rec.ListingAgentName == "" || rec.ListingAgentEmail != "" {
		o.skip(report, "agent_email", "not needed")
		return
	}

	o.runLayer(report, "agent_email", func() ([]string, error) {
		email := o.resolver.ResolveAgentEmail(ctx, search.AgentQuery{
			Name:    rec.ListingAgentName,
			Company: rec.ListingAgentCompany,
			Phone:   rec.ListingAgentPhone,
			License: normalize.CleanLicenseNumber(rec.ListingAgentLicenseNumber),
		})
		if email == "" {
			return nil, nil
		}
		rec.ListingAgentEmail = email
		return []string{"listingAgentEmail"}, nil
	})
}

func (o *Orchestrator) finish(rec *models.PropertyListingRecord, report *Report) {
	empty := rec.IsEmpty()

	rec.ListingAgentLicenseNumber = normalize.CleanLicenseNumber(rec.ListingAgentLicenseNumber)
	if strings.TrimSpace(rec.Address) == "" {
		rec.Address = models.AddressUnavailable
	}
	rec.SourceURL = report.URL

	if report.HTML == "" && empty {
		report.fail("no page content and no fallback produced any field")
		report.enter(models.StateFailed)
	} else {
		report.enter(models.StateDone)
	}
	report.FinishedAt = time.Now()

	log.Printf("[info] extraction %s: %s with %d fields in %s",
		report.RequestID, report.State, len(rec.Fields()), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func (o *Orchestrator) abort(rec *models.PropertyListingRecord, report *Report, err error) (*models.PropertyListingRecord, *Report, error) {
	o.finish(rec, report)
	if report.State != models.StateFailed {
		report.enter(models.StateFailed)
	}
	report.fail("aborted: %v", err)
	return rec, report, err
}

func (o *Orchestrator) skip(report *Report, layer, reason string) {
	report.Attempts = append(report.Attempts, models.ExtractionAttempt{
		Layer:  layer,
		Status: models.AttemptSkipped,
		Error:  reason,
	})
}

// runLayer runs one layer, turning errors and panics into a recorded
// attempt so no single layer can abort the call.
func (o *Orchestrator) runLayer(report *Report, layer string, fn func() ([]string, error)) {
	attempt := models.ExtractionAttempt{Layer: layer, Ran: true}
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				attempt.Status = models.AttemptFailed
				attempt.Error = fmt.Sprintf("panic: %v", r)
			}
		}()

		found, err := fn()
		switch {
		case err != nil:
			attempt.Status = models.AttemptFailed
			attempt.Error = err.Error()
		case len(found) == 0:
			attempt.Status = models.AttemptEmpty
		default:
			attempt.Status = models.AttemptOK
			attempt.Fields = found
		}
	}()

	attempt.Duration = time.Since(start)
	report.Attempts = append(report.Attempts, attempt)

	switch attempt.Status {
	case models.AttemptFailed:
		report.fail("%s: %s", layer, attempt.Error)
		log.Printf("[warn] %s: failed after %s: %s", layer, attempt.Duration.Round(time.Millisecond), attempt.Error)
	case models.AttemptEmpty:
		log.Printf("[info] %s: nothing found", layer)
	default:
		log.Printf("[info] %s: %d values", layer, len(attempt.Fields))
	}
}
