package fetcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

const maxBodyBytes = 8 << 20

// DirectFetcher issues a plain GET dressed up as a desktop browser.
type DirectFetcher struct {
	client   *retryablehttp.Client
	detector *Detector
}

func NewDirectFetcher(client *retryablehttp.Client, detector *Detector) *DirectFetcher {
	if detector == nil {
		detector = NewDetector(0)
	}
	return &DirectFetcher{client: client, detector: detector}
}

func (f *DirectFetcher) Name() string {
	return "direct"
}

func (f *DirectFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", randomUserAgent())
	for k, v := range browserHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	html := string(body)
	if d := f.detector.Detect(resp.StatusCode, html); d.Blocked {
		log.Printf("Direct fetch blocked (%s: %s) for %s", d.Signal, d.Trigger, url)
		return "", fmt.Errorf("%w: %s (%s)", ErrInsufficientContent, d.Signal, d.Trigger)
	}

	log.Printf("Direct fetch OK: %d bytes from %s", len(body), url)
	return html, nil
}
