package scraper

import (
	"context"
	"errors"

	"listing_scrooper/models"
)

var (
	ErrParseFailed  = errors.New("parse failed")
	ErrInvalidInput = errors.New("invalid input")
)

// Source is what an extraction strategy works from. HTML is empty when the
// page could not be fetched; Text then carries search-result context.
type Source struct {
	URL  string
	HTML string
	Text string
}

// Strategy is one interchangeable field-extraction layer.
type Strategy interface {
	Name() string
	Supports(src Source) bool
	Extract(ctx context.Context, src Source) (*models.PropertyListingRecord, error)
}

// NewStrategies orders the available strategies by name. Unknown or
// unavailable names are skipped.
func NewStrategies(order []string, available ...Strategy) []Strategy {
	byName := make(map[string]Strategy, len(available))
	for _, s := range available {
		if s != nil {
			byName[s.Name()] = s
		}
	}

	var out []Strategy
	seen := make(map[string]bool)
	for _, name := range order {
		if s, ok := byName[name]; ok && !seen[name] {
			out = append(out, s)
			seen[name] = true
		}
	}
	return out
}
