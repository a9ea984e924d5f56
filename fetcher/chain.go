package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ChainFetcher tries each fetcher in order and returns the first page that
// gets through. ErrFetchFailed is returned only when every fetcher fails.
type ChainFetcher struct {
	fetchers []Fetcher
}

func NewChainFetcher(fetchers ...Fetcher) *ChainFetcher {
	var fs []Fetcher
	for _, f := range fetchers {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return &ChainFetcher{fetchers: fs}
}

func (c *ChainFetcher) Name() string {
	return "chain"
}

func (c *ChainFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var errs []error
	for _, f := range c.fetchers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		html, err := c.try(ctx, f, url)
		if err == nil {
			return html, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("Fetcher %s failed for %s: %v", f.Name(), url, err)
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no fetchers configured", ErrFetchFailed)
	}
	return "", fmt.Errorf("%w: %w", ErrFetchFailed, errors.Join(errs...))
}

func (c *ChainFetcher) try(ctx context.Context, f Fetcher, url string) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f.Fetch(ctx, url)
}
