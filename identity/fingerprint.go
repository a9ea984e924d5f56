package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"listing_scrooper/models"
)

var (
	trackingParams = map[string]bool{
		"gclid": true, "fbclid": true, "msclkid": true, "dclid": true,
		"mc_cid": true, "mc_eid": true, "ref_src": true,
	}

	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
		"apartment": "apt",
		"suite":     "ste",
		"floor":     "fl",
		"building":  "bldg",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies a property across listing sites so repeated
// extractions of the same home land on the same draft.
func Fingerprint(rec *models.PropertyListingRecord) string {
	address := rec.Address
	if address == models.AddressUnavailable {
		address = ""
	}
	input := fmt.Sprintf("%s|%s|%s|%s|%s",
		NormalizeAddress(address),
		strings.TrimSpace(rec.Zip),
		strings.TrimSpace(rec.Bedrooms.String()),
		strings.TrimSpace(rec.Bathrooms.String()),
		strings.TrimSpace(rec.SquareFeet.String()),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates street
// words so "123 Main Street" and "123 main st." compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")

	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	return multiSpaceRegex.ReplaceAllString(strings.Join(words, " "), " ")
}

// URLKey is a stable cache key for a listing URL. Scheme, "www.", the
// fragment, a trailing slash, query parameter order and tracking parameters
// do not change the key; every other query parameter does.
func URLKey(rawURL string) string {
	canonical := strings.TrimSpace(rawURL)
	if u, err := url.Parse(canonical); err == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		canonical = host + strings.TrimSuffix(u.EscapedPath(), "/")
		if q := listingQuery(u.Query()); q != "" {
			canonical += "?" + q
		}
	}
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:16])
}

// listingQuery drops tracking parameters and encodes the rest sorted by key.
func listingQuery(q url.Values) string {
	for key := range q {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(key)
		}
	}
	return q.Encode()
}
