package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrQuotaExceeded         = errors.New("search quota exceeded")
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
)

type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

type Results struct {
	Organic        []OrganicResult `json:"organic_results"`
	KnowledgeGraph json.RawMessage `json:"knowledge_graph,omitempty"`
	AnswerBox      json.RawMessage `json:"answer_box,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Client runs a single web search.
type Client interface {
	Search(ctx context.Context, query string) (*Results, error)
}

// SerpAPIClient queries a SerpAPI-compatible engine=google endpoint.
type SerpAPIClient struct {
	apiKey   string
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewSerpAPIClient(apiKey, endpoint string, timeout time.Duration, rps float64) *SerpAPIClient {
	if endpoint == "" {
		endpoint = "https://serpapi.com/search.json"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &SerpAPIClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (c *SerpAPIClient) Search(ctx context.Context, query string) (*Results, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: no search API key", ErrEnrichmentUnavailable)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	q.Set("num", "10")
	q.Set("hl", "en")
	q.Set("gl", "us")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var results Results
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if results.Error != "" {
		if strings.Contains(strings.ToLower(results.Error), "run out of searches") {
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("search error: %s", results.Error)
	}
	return &results, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
