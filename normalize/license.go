package normalize

import (
	"regexp"
	"strings"
)

var (
	labeledLicenseRegex  = regexp.MustCompile(`[:#]\s*#?\s*([A-Za-z]\.?\d{5,}|\d{5,})(-\d+)?`)
	stateDotLicenseRegex = regexp.MustCompile(`(?:^|[^A-Za-z])([A-Za-z])\.(\d{5,})`)
	parenLicenseRegex    = regexp.MustCompile(`\(([^()]*\d[^()]*)\)`)
	parenTokenRegex      = regexp.MustCompile(`([A-Za-z]\.?\d{5,}|\d{5,})(-\d+)?`)
	trailingLicenseRegex = regexp.MustCompile(`,\s*([A-Za-z]?\d{5,}(?:-\d+)?)\s*$`)
	plainLicenseRegex    = regexp.MustCompile(`^#?\s*([A-Z]?\d{5,}(?:-\d+)?)\s*(?:\(Active\))?$`)
	anyLicenseRegex      = regexp.MustCompile(`(?:^|[^A-Za-z0-9])([A-Za-z]?\d{5,})`)
	licenseCharsRegex    = regexp.MustCompile(`[^A-Za-z0-9.\-]`)
	numberTokenRegex     = regexp.MustCompile(`[A-Za-z]?\d{5,}(?:-\d+)?`)
)

// CleanLicenseNumber reduces a free-text license fragment such as
// "CalDRE #01234567" or "S.0123456" to its bare token. The patterns are
// tried in order and the first match wins; when none match, the input is
// stripped of everything but letters, digits, dots and hyphens.
func CleanLicenseNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}

	if m := labeledLicenseRegex.FindStringSubmatch(s); m != nil {
		return strings.ReplaceAll(m[1], ".", "") + m[2]
	}

	if m := stateDotLicenseRegex.FindStringSubmatch(s); m != nil {
		return m[1] + m[2]
	}

	for _, m := range parenLicenseRegex.FindAllStringSubmatch(s, -1) {
		if t := parenTokenRegex.FindStringSubmatch(m[1]); t != nil {
			return strings.ReplaceAll(t[1], ".", "") + t[2]
		}
	}

	if m := trailingLicenseRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	if m := plainLicenseRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	if m := anyLicenseRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	cleaned := licenseCharsRegex.ReplaceAllString(s, "")
	if len(cleaned) > 10 {
		if t := numberTokenRegex.FindString(cleaned); t != "" {
			return t
		}
	}
	return cleaned
}

// CleanLicenseNumberPtr is CleanLicenseNumber for optional values; nil stays nil.
func CleanLicenseNumberPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := CleanLicenseNumber(*raw)
	return &cleaned
}
