package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	stateRegex         = regexp.MustCompile(`^[A-Z]{2}$`)
	zipRegex           = regexp.MustCompile(`^\d{5}$`)
	addressCityRegex   = regexp.MustCompile(`,\s*([A-Za-z][A-Za-z .'\-]*?)\s*,\s*([A-Z]{2})\s+(\d{5})(?:-\d{4})?\b`)
	addressNoCityRegex = regexp.MustCompile(`\b([A-Z]{2})\s+(\d{5})(?:-\d{4})?\b`)
)

// Location is the city/state/zip triple.
type Location struct {
	City  string
	State string
	Zip   string
}

func (l Location) complete() bool {
	return l.City != "" && l.State != "" && l.Zip != ""
}

// locationFromURL reads the City-STATE-ZIP convention from a listing URL
// path, e.g. /homedetails/123-Main-St-SanFrancisco-CA-94103/.
func locationFromURL(rawURL string) Location {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}
	}

	for _, segment := range strings.Split(u.Path, "/") {
		if loc := locationFromSegment(segment, "-"); loc.complete() {
			return loc
		}
		// realtor.com style: 123-Main-St_San-Francisco_CA_94103_M12345-67890
		if loc := locationFromSegment(segment, "_"); loc.complete() {
			loc.City = strings.ReplaceAll(loc.City, "-", " ")
			return loc
		}
	}
	return Location{}
}

func locationFromSegment(segment, sep string) Location {
	tokens := strings.Split(segment, sep)
	for i := 1; i+1 < len(tokens); i++ {
		if stateRegex.MatchString(tokens[i]) && zipRegex.MatchString(tokens[i+1]) {
			return Location{
				City:  strings.ReplaceAll(tokens[i-1], "_", " "),
				State: tokens[i],
				Zip:   tokens[i+1],
			}
		}
	}
	return Location{}
}

// locationFromAddress reads "..., City, ST 12345" from a displayed address.
func locationFromAddress(address string) Location {
	if m := addressCityRegex.FindStringSubmatch(address); m != nil {
		return Location{City: strings.TrimSpace(m[1]), State: m[2], Zip: m[3]}
	}
	if m := addressNoCityRegex.FindStringSubmatch(address); m != nil {
		return Location{State: m[1], Zip: m[2]}
	}
	return Location{}
}

// resolveLocation prefers the URL and fills any gaps from the address.
func resolveLocation(rawURL, address string) Location {
	loc := locationFromURL(rawURL)
	if loc.complete() {
		return loc
	}
	fallback := locationFromAddress(address)
	if loc.City == "" {
		loc.City = fallback.City
	}
	if loc.State == "" {
		loc.State = fallback.State
	}
	if loc.Zip == "" {
		loc.Zip = fallback.Zip
	}
	return loc
}
