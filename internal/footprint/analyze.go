package footprint

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
)

// negativeKeywords are words buyers use when warning each other, in English
// and Urdu/Hindi transliteration
var negativeKeywords = []string{
	"scam", "scammer", "fraud", "fake", "complaint", "ripoff", "cheat", "cheater",
	"phishing", "spammer", "blacklist", "beware", "not delivered", "non delivery",
	"non-delivery", "advance payment", "advance-pay", "chargeback",
	"dhoka", "fraudiya", "chor", "farib", "thug", "dhokebaaz",
}

// negativePattern matches whole words with an optional plural s, so "scams"
// matches and "scampi" does not
var negativePattern = buildKeywordPattern(negativeKeywords)

func buildKeywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	// Longest first so alternation prefers "scammer" over "scam"
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)s?\b`)
}

// maxTopDomains caps SearchAnalysis.TopDomains
const maxTopDomains = 8

// SearchAnalysis summarizes results without keeping snippets
type SearchAnalysis struct {
	Query          string         `json:"query"`
	Total          int            `json:"total"`
	NegativeHits   int            `json:"negative_hits"`
	TopDomains     []string       `json:"top_domains"`
	DomainCounts   map[string]int `json:"-"`
	ListingDomains int            `json:"listing_domains"`
	ComplaintSites int            `json:"complaint_sites"`
}

// BuildQuery turns an entity value into a stable search query: scheme
// stripped, single tokens quoted, and a platform hint appended for social and
// marketplace platforms
func BuildQuery(entityType model.EntityType, value string) string {
	q := strings.TrimSpace(value)
	lower := strings.ToLower(q)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		q = q[strings.Index(q, "//")+2:]
	}
	q = strings.TrimSuffix(q, "/")
	if q == "" {
		return ""
	}

	if entityType.Social() || entityType.Marketplace() {
		q = fmt.Sprintf("%s %s", q, entityType)
	}
	if !strings.Contains(q, " ") {
		return `"` + q + `"`
	}
	return q
}

// AnalyzeResults counts negative-keyword hits and result domains
func AnalyzeResults(result *SearchResult, classifier *AuthorityClassifier) SearchAnalysis {
	analysis := SearchAnalysis{DomainCounts: make(map[string]int)}
	if result == nil {
		return analysis
	}
	analysis.Query = result.Query
	analysis.Total = result.Total

	for _, it := range result.Items {
		if negativePattern.MatchString(it.Title + " " + it.Snippet) {
			analysis.NegativeHits++
		}
		if dom := domainOf(it.Link); dom != "" {
			analysis.DomainCounts[dom]++
		}
	}

	domains := make([]string, 0, len(analysis.DomainCounts))
	for dom := range analysis.DomainCounts {
		domains = append(domains, dom)
	}
	sort.Slice(domains, func(i, j int) bool {
		ci, cj := analysis.DomainCounts[domains[i]], analysis.DomainCounts[domains[j]]
		if ci != cj {
			return ci > cj
		}
		return domains[i] < domains[j]
	})

	for _, dom := range domains {
		if classifier == nil {
			continue
		}
		switch classifier.Classify(dom) {
		case model.AuthorityListing:
			analysis.ListingDomains++
		case model.AuthorityComplaint:
			analysis.ComplaintSites++
		}
	}
	if len(domains) > maxTopDomains {
		domains = domains[:maxTopDomains]
	}
	analysis.TopDomains = domains
	return analysis
}

// ClassifySearch maps an analysis to a footprint signal. A negative-keyword
// hit outranks any volume of results.
func ClassifySearch(a SearchAnalysis, strongMin int) model.Signal {
	sig := model.Signal{
		Name:   "Internet footprint",
		Source: model.SourceFootprint,
		Weight: 1,
		Meta: map[string]interface{}{
			"query":         a.Query,
			"total":         a.Total,
			"negative_hits": a.NegativeHits,
			"top_domains":   a.TopDomains,
		},
	}

	distinct := len(a.DomainCounts)
	switch {
	case a.NegativeHits > 0:
		sig.Status = model.TierHigh
		sig.Note = "Search results mention complaints or warnings about this seller"
	case a.Total == 0 && distinct == 0:
		sig.Status = model.TierUnknown
		sig.Note = "No search results found"
	case (a.Total >= strongMin && distinct >= 2) || a.ListingDomains > 0:
		sig.Status = model.TierLow
		sig.Note = fmt.Sprintf("Found on %d sites with no warning signs", distinct)
	default:
		sig.Status = model.TierMedium
		sig.Note = "Limited internet footprint"
	}
	return sig
}

// UnavailableSearch is the signal when search could not run
func UnavailableSearch(reason string) model.Signal {
	return model.Signal{
		Name:   "Internet footprint",
		Status: model.TierUnknown,
		Note:   "Search unavailable: " + reason,
		Source: model.SourceFootprint,
		Weight: 1,
	}
}

// domainOf returns the lowercased host of link without "www."
func domainOf(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}
