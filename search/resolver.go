package search

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"listing_scrooper/config"
	"listing_scrooper/logging"
	"listing_scrooper/normalize"
)

var (
	pathSplitRegex = regexp.MustCompile(`[/\-_.+]+`)
	pathNoise      = map[string]bool{
		"html": true, "htm": true, "php": true, "aspx": true,
		"www": true, "com": true, "listing": true, "listings": true,
		"property": true, "details": true, "detail": true,
	}
)

// AgentQuery holds whatever identifies the listing agent.
type AgentQuery struct {
	Name    string
	Company string
	Phone   string
	License string
}

// Resolver mines search results for values the page itself did not give us.
// None of its methods return errors: failures are logged and come back empty.
type Resolver struct {
	client Client
	sites  []*config.SiteConfig
}

func NewResolver(client Client, sites []*config.SiteConfig) *Resolver {
	return &Resolver{client: client, sites: sites}
}

// ResolveCanonicalListingURL finds the supported-site listing for the same
// property. URLs already on a supported site come back unchanged.
func (r *Resolver) ResolveCanonicalListingURL(ctx context.Context, originalURL string) string {
	if config.SiteForURL(r.sites, originalURL) != nil {
		return originalURL
	}
	if r.client == nil {
		return ""
	}

	terms := queryTerms(originalURL)
	if terms == "" {
		return ""
	}

	for _, site := range r.sites {
		if ctx.Err() != nil {
			return ""
		}
		query := strings.TrimSpace(terms + " " + site.SearchQualifier)
		results, err := r.client.Search(ctx, query)
		if err != nil {
			r.logFailure("canonical url", err)
			if errors.Is(err, ErrQuotaExceeded) {
				return ""
			}
			continue
		}
		for _, res := range results.Organic {
			if site.IsListingURL(res.Link) {
				logging.Infof("Resolved %s to %s listing %s", originalURL, site.Name, res.Link)
				return res.Link
			}
		}
	}
	return ""
}

// ResolveAgentEmail searches for the agent's contact details and returns the
// first e-mail address found in result titles and snippets.
func (r *Resolver) ResolveAgentEmail(ctx context.Context, agent AgentQuery) string {
	if r.client == nil || strings.TrimSpace(agent.Name) == "" {
		return ""
	}

	parts := []string{`"` + strings.TrimSpace(agent.Name) + `"`}
	for _, p := range []string{agent.Company, agent.Phone, agent.License} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, "email contact")

	results, err := r.client.Search(ctx, strings.Join(parts, " "))
	if err != nil {
		r.logFailure("agent email", err)
		return ""
	}

	for _, res := range results.Organic {
		if email := normalize.ExtractEmail(res.Title + " " + res.Snippet); email != "" {
			return email
		}
	}
	return ""
}

// SearchContext gathers snippets and knowledge panels about rawURL as plain
// text for model extraction when the page itself could not be fetched.
func (r *Resolver) SearchContext(ctx context.Context, rawURL string) string {
	if r.client == nil {
		return ""
	}

	query := rawURL
	if terms := queryTerms(rawURL); terms != "" {
		query = terms
	}
	results, err := r.client.Search(ctx, query)
	if err != nil {
		r.logFailure("search context", err)
		return ""
	}

	var b strings.Builder
	for _, res := range results.Organic {
		b.WriteString(res.Title)
		b.WriteString("\n")
		b.WriteString(res.Link)
		b.WriteString("\n")
		b.WriteString(res.Snippet)
		b.WriteString("\n\n")
	}
	if raw := compact(results.KnowledgeGraph); raw != "" {
		b.WriteString("Knowledge panel: ")
		b.WriteString(raw)
		b.WriteString("\n")
	}
	if raw := compact(results.AnswerBox); raw != "" {
		b.WriteString("Answer box: ")
		b.WriteString(raw)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (r *Resolver) logFailure(what string, err error) {
	if errors.Is(err, ErrQuotaExceeded) {
		logging.Warnf("Search %s skipped: %v", what, err)
		return
	}
	logging.Warnf("Search %s failed: %v", what, err)
}

// queryTerms turns a URL into search words: the path words when there are
// any, otherwise the domain.
func queryTerms(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	var words []string
	for _, w := range pathSplitRegex.Split(u.Path, -1) {
		lw := strings.ToLower(w)
		if w == "" || pathNoise[lw] {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return strings.Join(words, " ")
}

func compact(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}
