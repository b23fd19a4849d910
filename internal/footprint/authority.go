package footprint

import (
	"net/url"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
)

// Default domain lists. Listings are places a real business usually shows up;
// complaint sites are where buyers post warnings.
var (
	defaultListingDomains = []string{
		"google.com", "maps.google.com", "yelp.com", "yellowpages.com", "linkedin.com",
		"trustpilot.com", "bbb.org", "olx.com.pk", "daraz.pk", "pakwheels.com",
		"amazon.com", "ebay.com", "aliexpress.com", "carousell.com", "gumtree.com",
		"zameen.com", "rozee.pk", "secp.gov.pk",
	}
	defaultSocialDomains = []string{
		"facebook.com", "instagram.com", "tiktok.com", "twitter.com", "x.com",
		"youtube.com", "reddit.com", "pinterest.com", "t.me", "wa.me",
	}
	defaultComplaintDomains = []string{
		"scamadviser.com", "scam-detector.com", "complaintsboard.com", "ripoffreport.com",
		"pissedconsumer.com", "consumercomplaints.pk", "scamwatcher.com",
	}
)

// AuthorityClassifier classifies search-result domains into tiers
type AuthorityClassifier struct {
	domainMap map[string]model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier from the default lists plus
// overrides (domain -> "listing" | "social" | "complaint" | "other")
func NewAuthorityClassifier(overrides map[string]string) *AuthorityClassifier {
	classifier := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier),
	}

	for _, d := range defaultListingDomains {
		classifier.domainMap[d] = model.AuthorityListing
	}
	for _, d := range defaultSocialDomains {
		classifier.domainMap[d] = model.AuthoritySocial
	}
	for _, d := range defaultComplaintDomains {
		classifier.domainMap[d] = model.AuthorityComplaint
	}
	for d, tier := range overrides {
		classifier.domainMap[strings.ToLower(d)] = parseTierString(tier)
	}

	return classifier
}

// Classify classifies a URL or bare host into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	host := rawURL
	if strings.Contains(rawURL, "://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return model.AuthorityUnknown
		}
		host = parsed.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return model.AuthorityUnknown
	}

	// Walk up the labels so m.facebook.com matches facebook.com
	for candidate := host; candidate != ""; {
		if tier, ok := a.domainMap[candidate]; ok {
			return tier
		}
		idx := strings.Index(candidate, ".")
		if idx < 0 {
			break
		}
		candidate = candidate[idx+1:]
	}

	// Government and academic hosts behave like listings
	if strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov.") ||
		strings.HasSuffix(host, ".edu") || strings.Contains(host, ".edu.") {
		return model.AuthorityListing
	}

	return model.AuthorityOther
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "listing", "1":
		return model.AuthorityListing
	case "social", "2":
		return model.AuthoritySocial
	case "complaint", "3":
		return model.AuthorityComplaint
	default:
		return model.AuthorityOther
	}
}
