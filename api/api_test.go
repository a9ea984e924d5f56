package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"listing_scrooper/models"
	"listing_scrooper/scraper"
	"listing_scrooper/services"
)

type fakeIntake struct {
	result   *services.Result
	err      error
	queueErr error
	queued   []string
	requests map[int64]*models.IntakeRequest
}

func (f *fakeIntake) Extract(ctx context.Context, rawURL string) (*services.Result, error) {
	if err := scraper.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func (f *fakeIntake) Enqueue(ctx context.Context, rawURL string) (int64, error) {
	if f.queueErr != nil {
		return 0, f.queueErr
	}
	if err := scraper.ValidateURL(rawURL); err != nil {
		return 0, err
	}
	f.queued = append(f.queued, rawURL)
	return int64(len(f.queued)), nil
}

func (f *fakeIntake) Get(ctx context.Context, id int64) (*models.IntakeRequest, error) {
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	return f.requests[id], nil
}

type triggerCounter struct{ n int }

func (t *triggerCounter) Trigger() { t.n++ }

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	if resp.Success {
		t.Fatal("expected success=false")
	}
	return resp
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, NewRouter(Deps{Intake: &fakeIntake{}}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestExtract_ReturnsRecord(t *testing.T) {
	intake := &fakeIntake{result: &services.Result{
		Record: &models.PropertyListingRecord{Address: "123 Main St", Bedrooms: "3", SourceURL: "https://example.com/l/1"},
		Report: &scraper.Report{State: models.StateDone},
	}}
	h := NewRouter(Deps{Intake: intake})

	rec := doRequest(t, h, http.MethodPost, "/extract", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["address"] != "123 Main St" || got["bedrooms"] != "3" || got["sourceUrl"] != "https://example.com/l/1" {
		t.Fatalf("unexpected record %v", got)
	}
	if _, ok := got["report"]; ok {
		t.Fatal("expected bare record without report")
	}
}

func TestExtract_WithReport(t *testing.T) {
	intake := &fakeIntake{result: &services.Result{
		Record: &models.PropertyListingRecord{Address: "123 Main St"},
		Report: &scraper.Report{State: models.StateDone},
	}}

	rec := doRequest(t, NewRouter(Deps{Intake: intake}), http.MethodPost, "/extract?report=true", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"done"`) {
		t.Fatalf("expected report in body, got %s", rec.Body.String())
	}
}

func TestExtract_BadInput(t *testing.T) {
	h := NewRouter(Deps{Intake: &fakeIntake{}})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{}`},
		{"unsupported scheme", `{"url":"ftp://example.com/x"}`},
		{"surrounding whitespace", `{"url":" https://example.com/l/1 "}`},
	}
	for _, tt := range tests {
		rec := doRequest(t, h, http.MethodPost, "/extract", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tt.name, rec.Code)
		}
		if resp := decodeError(t, rec); resp.Error == "" {
			t.Fatalf("%s: expected error message", tt.name)
		}
	}
}

func TestExtract_TimeoutReturnsPartialRecord(t *testing.T) {
	intake := &fakeIntake{
		err: fmt.Errorf("extract: %w", context.DeadlineExceeded),
		result: &services.Result{
			Record: &models.PropertyListingRecord{Address: models.AddressUnavailable, Price: "$500,000", SourceURL: "https://example.com/l/1"},
			Report: &scraper.Report{State: models.StateFailed, Errors: []string{"aborted: context deadline exceeded"}},
		},
	}
	h := NewRouter(Deps{Intake: intake})

	rec := doRequest(t, h, http.MethodPost, "/extract", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["address"] != models.AddressUnavailable || got["price"] != "$500,000" || got["sourceUrl"] != "https://example.com/l/1" {
		t.Fatalf("unexpected record %v", got)
	}
	if _, ok := got["success"]; ok {
		t.Fatalf("expected a record, not an error payload: %v", got)
	}

	rec = doRequest(t, h, http.MethodPost, "/extract?report=true", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"failed"`) {
		t.Fatalf("expected failed report with 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExtract_TimeoutWithoutRecord(t *testing.T) {
	intake := &fakeIntake{err: context.DeadlineExceeded}

	rec := doRequest(t, NewRouter(Deps{Intake: intake}), http.MethodPost, "/extract", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.PropertyListingRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Address != models.AddressUnavailable || got.SourceURL != "https://example.com/l/1" {
		t.Fatalf("expected placeholder record, got %+v", got)
	}
}

func TestEnqueue(t *testing.T) {
	intake := &fakeIntake{}
	trigger := &triggerCounter{}
	h := NewRouter(Deps{Intake: intake, Trigger: trigger})

	rec := doRequest(t, h, http.MethodPost, "/intake", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp enqueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.ID != 1 || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if trigger.n != 1 {
		t.Fatalf("expected scheduler trigger, got %d", trigger.n)
	}
}

func TestEnqueue_QueueUnavailable(t *testing.T) {
	intake := &fakeIntake{queueErr: services.ErrQueueUnavailable}

	rec := doRequest(t, NewRouter(Deps{Intake: intake}), http.MethodPost, "/intake", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGetIntake(t *testing.T) {
	intake := &fakeIntake{requests: map[int64]*models.IntakeRequest{
		3: {ID: 3, URL: "https://example.com/l/1", Status: models.IntakeDone, Result: json.RawMessage(`{"cached":false}`)},
	}}
	h := NewRouter(Deps{Intake: intake})

	rec := doRequest(t, h, http.MethodGet, "/intake/3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.IntakeRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Status != models.IntakeDone || string(got.Result) != `{"cached":false}` {
		t.Fatalf("unexpected request %+v", got)
	}

	if rec := doRequest(t, h, http.MethodGet, "/intake/99", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/intake/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(Deps{Intake: &fakeIntake{}, RateLimit: 2})

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	if rec := doRequest(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestExtract_InternalError(t *testing.T) {
	intake := &fakeIntake{err: errors.New("boom"), result: &services.Result{}}

	rec := doRequest(t, NewRouter(Deps{Intake: intake}), http.MethodPost, "/extract", `{"url":"https://example.com/l/1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	decodeError(t, rec)
}
