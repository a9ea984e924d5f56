package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"listing_scrooper/config"
	"listing_scrooper/models"
	"listing_scrooper/normalize"
)

var (
	priceRegex  = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?(?:\s?[KkMm])?`)
	numberRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// SiteStrategy pulls fields from recognized listing sites using the
// selectors in each site's config.
type SiteStrategy struct {
	sites []*config.SiteConfig
}

func NewSiteStrategy(sites []*config.SiteConfig) *SiteStrategy {
	return &SiteStrategy{sites: sites}
}

func (s *SiteStrategy) Name() string {
	return "site"
}

func (s *SiteStrategy) Supports(src Source) bool {
	return src.HTML != "" && config.SiteForURL(s.sites, src.URL) != nil
}

func (s *SiteStrategy) Extract(ctx context.Context, src Source) (rec *models.PropertyListingRecord, err error) {
	site := config.SiteForURL(s.sites, src.URL)
	if site == nil {
		return nil, fmt.Errorf("%w: no site config for %s", ErrParseFailed, src.URL)
	}

	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("%w: %s selectors panicked: %v", ErrParseFailed, site.ID, r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return extractWithSelectors(doc, site, src.URL), nil
}

func extractWithSelectors(doc *goquery.Document, site *config.SiteConfig, pageURL string) *models.PropertyListingRecord {
	sel := site.Selectors
	rec := models.NewRecord(pageURL)

	rec.Address = firstText(doc, sel.Address)
	rec.Price = models.FlexString(parsePrice(firstText(doc, sel.Price)))
	rec.PropertyType = firstText(doc, sel.PropertyType)
	rec.YearBuilt = models.FlexString(parseYear(firstText(doc, sel.YearBuilt)))
	rec.Description = firstText(doc, sel.Description)

	facts := parseFacts(firstText(doc, sel.Facts))
	if v := firstNumber(firstText(doc, sel.Beds)); v != "" && facts.Beds == "" {
		facts.Beds = v
	}
	if v := firstNumber(firstText(doc, sel.Baths)); v != "" && facts.Baths == "" {
		facts.Baths = v
	}
	if v := firstNumber(firstText(doc, sel.SqFt)); v != "" && facts.SqFt == "" {
		facts.SqFt = v
	}
	rec.Bedrooms = models.FlexString(facts.Beds)
	rec.Bathrooms = models.FlexString(facts.Baths)
	rec.SquareFeet = models.FlexString(facts.SqFt)

	rec.Features = allText(doc, sel.Features)
	rec.ImageURLs = imageURLs(doc, sel.Images, sel.ImageAttr, pageURL)

	attribution := parseAttribution(firstText(doc, sel.Attribution))
	rec.ListingAgentName = attribution.Name
	rec.ListingAgentPhone = attribution.Phone
	rec.ListingAgentLicenseNumber = attribution.License
	rec.ListingAgentCompany = attribution.Company
	if company := firstText(doc, sel.Company); company != "" {
		rec.ListingAgentCompany = parseCompany(company)
	}

	loc := resolveLocation(pageURL, rec.Address)
	rec.City, rec.State, rec.Zip = loc.City, loc.State, loc.Zip

	log.Printf("[%s] site extraction: %d fields", site.ID, len(rec.Fields()))
	return rec
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = normalize.CleanText(s.Text())
		return out == ""
	})
	return out
}

func allText(doc *goquery.Document, selector string) []string {
	if selector == "" {
		return nil
	}
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := normalize.CleanText(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func imageURLs(doc *goquery.Document, selector, attr, pageURL string) []string {
	if selector == "" {
		return nil
	}
	if attr == "" {
		attr = "src"
	}
	base, _ := url.Parse(pageURL)

	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr(attr, ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}
		out = append(out, src)
	})
	return out
}

func parsePrice(s string) string {
	if m := priceRegex.FindString(s); m != "" {
		return strings.ReplaceAll(m, " ", "")
	}
	return firstNumber(s)
}

func firstNumber(s string) string {
	m := numberRegex.FindString(s)
	return strings.ReplaceAll(m, ",", "")
}
