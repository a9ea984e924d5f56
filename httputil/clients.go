package httputil

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"listing_scrooper/config"
)

type Clients struct {
	Scraping *retryablehttp.Client // proxied, for listing sites
	API      *http.Client          // direct, for search and model APIs
}

func NewClients(proxyCfg *config.ProxyConfig, fetchCfg *config.FetchConfig) *Clients {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg != nil && proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Printf("Ignoring invalid proxy URL: %v", err)
		}
	}

	timeout := 30 * time.Second
	retries := 1
	if fetchCfg != nil {
		if fetchCfg.Timeout > 0 {
			timeout = fetchCfg.Timeout
		}
		retries = fetchCfg.Retries
	}

	scraping := NewRetryClient(retries, timeout)
	scraping.HTTPClient.Transport = transport

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}

// NewRetryClient builds a quiet retrying client that never retries 429s and
// hands the final response back instead of an error once retries run out.
func NewRetryClient(retries int, timeout time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
