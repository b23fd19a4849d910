package footprint

import (
	"testing"

	"github.com/ppiankov/riskcheck/internal/model"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		entityType model.EntityType
		value      string
		want       string
	}{
		{model.EntityWebsite, "https://shop.example/", `"shop.example"`},
		{model.EntityWebsite, "http://shop.example/deals", `"shop.example/deals"`},
		{model.EntityFacebook, "https://facebook.com/bestshop", "facebook.com/bestshop facebook"},
		{model.EntityOLX, "https://www.olx.com.pk/item/123", "www.olx.com.pk/item/123 olx"},
		{model.EntityPhone, "+923001234567", `"+923001234567"`},
		{model.EntityEmail, "seller@shop.example", `"seller@shop.example"`},
		{model.EntityWebsite, "  ", ""},
	}

	for _, tt := range tests {
		if got := BuildQuery(tt.entityType, tt.value); got != tt.want {
			t.Errorf("BuildQuery(%s, %q) = %q, want %q", tt.entityType, tt.value, got, tt.want)
		}
	}
}

func TestNegativePattern(t *testing.T) {
	matches := []string{
		"Beware of this seller",
		"Total SCAM do not buy",
		"Many scams reported",
		"Product was not delivered after payment",
		"asked for advance payment",
		"bara dhoka hua",
	}
	for _, s := range matches {
		if !negativePattern.MatchString(s) {
			t.Errorf("expected %q to match", s)
		}
	}

	nonMatches := []string{
		"Scampi and chips delivered fresh",
		"Fakeeh hospital directory",
		"Official store, fast delivery",
	}
	for _, s := range nonMatches {
		if negativePattern.MatchString(s) {
			t.Errorf("expected %q not to match", s)
		}
	}
}

func items(links ...string) []SearchItem {
	out := make([]SearchItem, 0, len(links))
	for _, l := range links {
		out = append(out, SearchItem{Title: "Result", Link: l, Snippet: "A shop page"})
	}
	return out
}

func TestClassifySearch(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	tests := []struct {
		name   string
		result *SearchResult
		want   model.Tier
	}{
		{
			name:   "no results",
			result: &SearchResult{},
			want:   model.TierUnknown,
		},
		{
			name:   "strong footprint",
			result: &SearchResult{Total: 12, Items: items("https://a.example/1", "https://b.example/2", "https://c.example/")},
			want:   model.TierLow,
		},
		{
			name:   "listing domain",
			result: &SearchResult{Total: 1, Items: items("https://www.yelp.com/biz/shop")},
			want:   model.TierLow,
		},
		{
			name:   "weak footprint",
			result: &SearchResult{Total: 2, Items: items("https://a.example/1", "https://a.example/2")},
			want:   model.TierMedium,
		},
		{
			name: "negative keyword beats volume",
			result: &SearchResult{Total: 500, Items: append(items("https://www.yelp.com/biz/shop", "https://b.example/"),
				SearchItem{Title: "Shop scam warning", Link: "https://c.example/", Snippet: "buyers lost money"})},
			want: model.TierHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := ClassifySearch(AnalyzeResults(tt.result, classifier), 5)
			if sig.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, sig.Status, sig.Note)
			}
			if sig.Name != "Internet footprint" {
				t.Errorf("unexpected signal name %q", sig.Name)
			}
		})
	}
}

func TestAnalyzeResults_TopDomains(t *testing.T) {
	res := &SearchResult{Total: 4, Items: items(
		"https://b.example/1", "https://www.a.example/1", "https://a.example/2", "not a url %%",
	)}
	analysis := AnalyzeResults(res, nil)

	if len(analysis.TopDomains) != 2 || analysis.TopDomains[0] != "a.example" || analysis.TopDomains[1] != "b.example" {
		t.Errorf("unexpected top domains %v", analysis.TopDomains)
	}
}

func TestAuthorityClassifier(t *testing.T) {
	classifier := NewAuthorityClassifier(map[string]string{"myshop-reviews.example": "complaint"})

	tests := []struct {
		url  string
		want model.AuthorityTier
	}{
		{"https://www.yelp.com/biz/x", model.AuthorityListing},
		{"https://m.facebook.com/shop", model.AuthoritySocial},
		{"https://www.ripoffreport.com/r/1", model.AuthorityComplaint},
		{"https://myshop-reviews.example/", model.AuthorityComplaint},
		{"https://fbr.gov.pk/", model.AuthorityListing},
		{"https://random.example/", model.AuthorityOther},
		{"olx.com.pk", model.AuthorityListing},
		{"", model.AuthorityUnknown},
	}

	for _, tt := range tests {
		if got := classifier.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}
