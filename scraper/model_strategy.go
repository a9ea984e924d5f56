package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"listing_scrooper/llm"
	"listing_scrooper/models"
	"listing_scrooper/normalize"
)

const defaultMaxChars = 12000

const extractionPrompt = `You extract real-estate listing data. Reply with ONE JSON object and nothing else, using exactly these keys:
{
  "address": string, "city": string, "state": string, "zip": string,
  "propertyType": string, "bedrooms": string, "bathrooms": string,
  "squareFeet": string, "price": string, "yearBuilt": string,
  "description": string, "features": [string], "imageUrls": [string],
  "listingAgentName": string, "listingAgentPhone": string,
  "listingAgentCompany": string, "listingAgentLicenseNumber": string,
  "listingAgentEmail": string
}
Use "" or [] for anything the source does not state. Do not guess.`

// ModelStrategy asks a language model to fill the record from page HTML or
// search snippets. It is the most tolerant layer and runs last.
type ModelStrategy struct {
	client   llm.Client
	maxChars int
}

func NewModelStrategy(client llm.Client, maxChars int) *ModelStrategy {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &ModelStrategy{client: client, maxChars: maxChars}
}

func (s *ModelStrategy) Name() string {
	return "ai"
}

func (s *ModelStrategy) Supports(src Source) bool {
	return src.HTML != "" || src.Text != ""
}

func (s *ModelStrategy) Extract(ctx context.Context, src Source) (*models.PropertyListingRecord, error) {
	text := src.Text
	if src.HTML != "" {
		text = TrimHTML(src.HTML)
	}
	text = truncateRunes(text, s.maxChars)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no source text", ErrParseFailed)
	}

	user := fmt.Sprintf("Listing URL: %s\n\nSource:\n%s", src.URL, text)
	out, err := s.client.Complete(ctx, llm.Request{
		System:    extractionPrompt,
		User:      user,
		JSON:      true,
		MaxTokens: 1500,
	})
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}

	rec, err := ParseModelRecord(out)
	if err != nil {
		return nil, err
	}
	rec.SourceURL = src.URL
	return rec, nil
}

// ParseModelRecord decodes a model reply, tolerating code fences and prose
// around the JSON object.
func ParseModelRecord(out string) (*models.PropertyListingRecord, error) {
	body := strings.TrimSpace(out)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var rec models.PropertyListingRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if rec.ListingAgentEmail != "" {
		rec.ListingAgentEmail = normalize.ExtractEmail(rec.ListingAgentEmail)
	}
	return &rec, nil
}

// TrimHTML drops scripts, styles and markup noise and returns the visible
// text plus image sources, whitespace collapsed.
func TrimHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalize.CleanText(html)
	}
	doc.Find("script, style, noscript, svg, iframe, link, meta").Remove()

	var b strings.Builder
	b.WriteString(normalize.CleanText(doc.Find("title").Text()))
	b.WriteString("\n")
	b.WriteString(normalize.CleanText(doc.Find("body").Text()))

	var images []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); strings.HasPrefix(src, "http") && len(images) < 20 {
			images = append(images, src)
		}
	})
	if len(images) > 0 {
		b.WriteString("\nImages: ")
		b.WriteString(strings.Join(images, " "))
	}
	return strings.TrimSpace(b.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
