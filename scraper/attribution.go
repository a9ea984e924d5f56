package scraper

import (
	"regexp"
	"strings"

	"listing_scrooper/normalize"
)

var (
	bedsRegex  = regexp.MustCompile(`(?i)(\d+)\s*(?:bd|bds|beds?|bedrooms?|br)\b`)
	bathsRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ba|bas|baths?|bathrooms?)\b`)
	sqftRegex  = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+|\d+)\s*(?:sq\.?\s*ft\.?|sqft|square\s+feet)`)
	yearRegex  = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

	listedByRegex     = regexp.MustCompile(`(?i)listed\s+by\s*:?\s*([^,\n|]+)`)
	licenseLabelRegex = regexp.MustCompile(`(?i)(?:cal\s*dre|dre|bre|calbre|lic(?:ense)?\.?|#)\s*[:#]?\s*#?\s*[A-Za-z]?\.?\d{5,}(?:-\d+)?`)
	providedByRegex   = regexp.MustCompile(`(?i)(?:listing\s+provided\s+by|broker(?:age)?)\s*:\s*([^\n|]+)`)
)

// Facts are the counts parsed out of a beds/baths/sqft blob.
type Facts struct {
	Beds  string
	Baths string
	SqFt  string
}

func parseFacts(blob string) Facts {
	var f Facts
	if m := bedsRegex.FindStringSubmatch(blob); m != nil {
		f.Beds = m[1]
	}
	if m := bathsRegex.FindStringSubmatch(blob); m != nil {
		f.Baths = m[1]
	}
	if m := sqftRegex.FindStringSubmatch(blob); m != nil {
		f.SqFt = strings.ReplaceAll(m[1], ",", "")
	}
	return f
}

func parseYear(s string) string {
	return yearRegex.FindString(s)
}

// Attribution is the agent contact parsed from a "listed by" blob.
type Attribution struct {
	Name    string
	Phone   string
	License string
	Company string
}

// parseAttribution splits an attribution blob such as
// "Listed by: Jane Doe, Broker, (415) 555-0100, DRE #01234567".
func parseAttribution(blob string) Attribution {
	blob = normalize.CleanText(blob)
	if blob == "" {
		return Attribution{}
	}

	var a Attribution
	if m := listedByRegex.FindStringSubmatch(blob); m != nil {
		a.Name = strings.TrimSpace(m[1])
	} else {
		lead := strings.TrimSpace(strings.SplitN(blob, ",", 2)[0])
		if !looksLikeContact(lead) {
			a.Name = lead
		}
	}

	a.Phone = normalize.ExtractPhone(blob)

	if m := licenseLabelRegex.FindString(blob); m != "" {
		a.License = normalize.CleanLicenseNumber(m)
	}

	if m := providedByRegex.FindStringSubmatch(blob); m != nil {
		a.Company = strings.TrimSpace(m[1])
	}

	return a
}

// parseCompany reads a brokerage blob, falling back to the blob itself.
func parseCompany(blob string) string {
	blob = normalize.CleanText(blob)
	if m := providedByRegex.FindStringSubmatch(blob); m != nil {
		return strings.TrimSpace(m[1])
	}
	return blob
}

func looksLikeContact(s string) bool {
	return normalize.ExtractPhone(s) != "" || normalize.ExtractEmail(s) != "" || licenseLabelRegex.MatchString(s)
}
