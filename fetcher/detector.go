package fetcher

import (
	"net/http"
	"strings"
)

type Signal string

const (
	SignalNone          Signal = ""
	SignalAccessDenied  Signal = "access_denied"
	SignalRateLimited   Signal = "rate_limited"
	SignalChallenge     Signal = "challenge"
	SignalCaptcha       Signal = "captcha"
	SignalEmptyContent  Signal = "empty_content"
	SignalUnexpectedErr Signal = "http_error"
)

// Detection is the verdict on one fetched page.
type Detection struct {
	Blocked bool
	Signal  Signal
	Trigger string
}

// Detector decides whether a response is a real listing page or a bot wall.
type Detector struct {
	MinContentLength int
}

func NewDetector(minContentLength int) *Detector {
	if minContentLength <= 0 {
		minContentLength = 500
	}
	return &Detector{MinContentLength: minContentLength}
}

var (
	challengeMarkers = []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"_Incapsula_Resource",
		"cf-browser-verification",
		"challenge-platform",
		"cf_chl_opt",
		"Checking your browser",
		"Just a moment...",
		"Attention Required! | Cloudflare",
		"px-captcha",
		"Press & Hold to confirm",
	}
	captchaMarkers = []string{
		"g-recaptcha",
		"h-captcha",
		"cf-turnstile",
		"captcha-container",
		"Please verify you are human",
		"are you a robot",
	}
	deniedMarkers = []string{
		"Access Denied",
		"Access to this page has been denied",
		"This request was blocked",
		"Request blocked",
	}
)

// Detect inspects a status code and body. A zero status means the body came
// from a rendered page rather than an HTTP response.
func (d *Detector) Detect(status int, body string) Detection {
	switch {
	case status == http.StatusForbidden:
		return Detection{Blocked: true, Signal: SignalAccessDenied, Trigger: "HTTP 403"}
	case status == http.StatusTooManyRequests:
		return Detection{Blocked: true, Signal: SignalRateLimited, Trigger: "HTTP 429"}
	case status == http.StatusServiceUnavailable:
		return Detection{Blocked: true, Signal: SignalChallenge, Trigger: "HTTP 503"}
	case status >= 400:
		return Detection{Blocked: true, Signal: SignalUnexpectedErr, Trigger: http.StatusText(status)}
	}

	if m := firstMarker(body, challengeMarkers); m != "" {
		return Detection{Blocked: true, Signal: SignalChallenge, Trigger: m}
	}
	if m := firstMarker(body, captchaMarkers); m != "" {
		return Detection{Blocked: true, Signal: SignalCaptcha, Trigger: m}
	}

	// Short pages saying "access denied" are walls; long ones may just mention it.
	if len(body) < d.MinContentLength*4 {
		if m := firstMarker(body, deniedMarkers); m != "" {
			return Detection{Blocked: true, Signal: SignalAccessDenied, Trigger: m}
		}
	}

	if len(strings.TrimSpace(body)) < d.MinContentLength {
		return Detection{Blocked: true, Signal: SignalEmptyContent, Trigger: "short body"}
	}

	return Detection{}
}

func firstMarker(body string, markers []string) string {
	for _, m := range markers {
		if strings.Contains(body, m) {
			return m
		}
	}
	return ""
}
