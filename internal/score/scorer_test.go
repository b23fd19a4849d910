package score

import (
	"strings"
	"testing"

	"github.com/ppiankov/riskcheck/internal/model"
)

func unknownProbe(name string) model.Signal {
	return model.Signal{Name: name, Status: model.TierUnknown, Note: "lookup unavailable", Source: model.SourceFootprint}
}

func findSignal(sigs []model.Signal, name string) (model.Signal, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return model.Signal{}, false
}

func TestScorer_Score_AllUnknownIsUnknown(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityPhone,
		Primary:    []model.Signal{unknownProbe("Internet footprint"), unknownProbe("Phone number format")},
	})

	if result.RiskLevel != model.TierUnknown {
		t.Errorf("Expected Unknown risk level, got %s", result.RiskLevel)
	}
	if result.Confidence != 0 {
		t.Errorf("Expected confidence 0 with nothing resolved, got %d", result.Confidence)
	}
	if result.Grade != "D" {
		t.Errorf("Expected grade D, got %s", result.Grade)
	}
}

func TestScorer_Score_EmptyInput(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{EntityType: model.EntityEmail})

	if result.RiskLevel != model.TierUnknown {
		t.Errorf("Expected Unknown risk level, got %s", result.RiskLevel)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		t.Errorf("Confidence out of range: %d", result.Confidence)
	}
	if !strings.HasSuffix(result.Rationale, Disclaimer) {
		t.Errorf("Expected rationale to end with the disclaimer, got %q", result.Rationale)
	}
}

func TestScorer_Score_ApprovedAdvancePaymentIsAtLeastMedium(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence:   map[string]model.TriState{"has_about": model.Yes, "has_reviews": model.Yes},
		Primary: []model.Signal{
			{Name: "Internet footprint", Status: model.TierLow, Source: model.SourceFootprint},
			{Name: "Website reachability", Status: model.TierLow, Source: model.SourceFootprint},
		},
		Community: model.CommunityAggregate{
			ApprovedCount:      1,
			ApprovedByCategory: map[model.Category]int{model.CategoryAdvancePayment: 1},
		},
		HasContactEvidence: true,
	})

	if result.RiskLevel < model.TierMedium {
		t.Errorf("Expected at least Medium with an approved report, got %s", result.RiskLevel)
	}
	sig, ok := findSignal(result.Signals, "Community reports (approved)")
	if !ok || sig.Status != model.TierMedium {
		t.Errorf("Expected Medium community signal for severity 3, got %+v", sig)
	}
	if result.Community.ApprovedCount != 1 {
		t.Errorf("Expected community snapshot on result, got %+v", result.Community)
	}
}

func TestScorer_Score_SevereReportsAreHigh(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityFacebook,
		Community: model.CommunityAggregate{
			ApprovedCount: 2,
			ApprovedByCategory: map[model.Category]int{
				model.CategoryAdvancePayment: 1,
				model.CategoryOther:          1,
			},
		},
	})

	if result.RiskLevel != model.TierHigh {
		t.Errorf("Expected High for severity 4, got %s", result.RiskLevel)
	}
}

func TestScorer_Score_PendingNeverChangesRisk(t *testing.T) {
	scorer := NewScorer()

	base := Input{
		EntityType: model.EntityInstagram,
		Primary:    []model.Signal{{Name: "Internet footprint", Status: model.TierLow}},
	}
	withPending := base
	withPending.Community = model.CommunityAggregate{PendingCount: 7}

	a := scorer.Score(base)
	b := scorer.Score(withPending)

	if a.RiskLevel != b.RiskLevel {
		t.Errorf("Pending reports changed risk: %s -> %s", a.RiskLevel, b.RiskLevel)
	}
	if a.Confidence != b.Confidence {
		t.Errorf("Pending reports changed confidence: %d -> %d", a.Confidence, b.Confidence)
	}
	sig, ok := findSignal(b.Signals, "Community reports (pending)")
	if !ok || sig.Status != model.TierUnknown {
		t.Errorf("Expected pending count surfaced as Unknown signal, got %+v", sig)
	}
}

func TestScorer_Score_ReusedImageryForcesHigh(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence:   map[string]model.TriState{"has_about": model.Yes, "https_present": model.Yes},
		Primary:    []model.Signal{{Name: "Internet footprint", Status: model.TierLow}},
		Reuse:      &ReuseFinding{Attachments: 1, OtherEntities: 2},
	})

	if result.RiskLevel != model.TierHigh {
		t.Errorf("Expected High with reused imagery, got %s", result.RiskLevel)
	}
	if result.Signals[0].Name != "Reused scam imagery" {
		t.Errorf("Expected reused imagery signal first, got %q", result.Signals[0].Name)
	}
}

func TestScorer_ReuseTiers(t *testing.T) {
	tests := []struct {
		name     string
		finding  *ReuseFinding
		wantName string
		want     model.Tier
		wantNone bool
	}{
		{name: "no attachments", finding: nil, wantNone: true},
		{name: "unavailable", finding: &ReuseFinding{Attachments: 1, Unavailable: true}, wantName: "Screenshot reuse", want: model.TierUnknown},
		{name: "one other seller", finding: &ReuseFinding{Attachments: 2, OtherEntities: 1}, wantName: "Image seen with another seller", want: model.TierMedium},
		{name: "unique", finding: &ReuseFinding{Attachments: 1}, wantName: "Screenshot reuse", want: model.TierLow},
	}

	scorer := NewScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := scorer.reuseSignal(tt.finding)
			if tt.wantNone {
				if ok {
					t.Errorf("Expected no signal, got %+v", sig)
				}
				return
			}
			if sig.Name != tt.wantName || sig.Status != tt.want {
				t.Errorf("Expected %s/%s, got %s/%s", tt.wantName, tt.want, sig.Name, sig.Status)
			}
		})
	}
}

func TestScorer_Score_LinkedAccountsAreDemoted(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Linked: []LinkedSignals{{
			Account: model.LinkedAccount{Platform: model.EntityFacebook, Value: "facebook.com/shop"},
			Signals: []model.Signal{{Name: "Internet footprint", Status: model.TierHigh}},
		}},
	})

	sig, ok := findSignal(result.Signals, "Linked facebook: Internet footprint")
	if !ok {
		t.Fatalf("Expected linked signal, got %+v", result.Signals)
	}
	if sig.Status != model.TierMedium {
		t.Errorf("Expected High demoted to Medium, got %s", sig.Status)
	}
	if sig.Weight != 0.5 {
		t.Errorf("Expected half weight, got %v", sig.Weight)
	}
	if result.RiskLevel != model.TierMedium {
		t.Errorf("Expected Medium overall, got %s", result.RiskLevel)
	}
}

func TestScorer_Score_HTTPSAbsentScenario(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence:   map[string]model.TriState{"https_present": model.No},
		Primary: []model.Signal{
			unknownProbe("Internet footprint"),
			unknownProbe("Website reachability"),
			unknownProbe("Domain age"),
		},
	})

	sig, ok := findSignal(result.Signals, "HTTPS absent")
	if !ok || sig.Status != model.TierMedium {
		t.Fatalf("Expected Medium HTTPS absent signal, got %+v", result.Signals)
	}
	if result.RiskLevel != model.TierMedium && result.RiskLevel != model.TierUnknown {
		t.Errorf("Expected Medium or Unknown, got %s", result.RiskLevel)
	}

	withContact := scorer.Score(Input{
		EntityType:         model.EntityWebsite,
		Evidence:           map[string]model.TriState{"https_present": model.No},
		Primary:            []model.Signal{unknownProbe("Internet footprint")},
		HasContactEvidence: true,
	})
	without := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence:   map[string]model.TriState{"https_present": model.No},
		Primary:    []model.Signal{unknownProbe("Internet footprint")},
	})
	if without.Confidence >= withContact.Confidence {
		t.Errorf("Expected lower confidence without contact info: %d vs %d", without.Confidence, withContact.Confidence)
	}
}

func TestScorer_Evidence_Applicability(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityPhone,
		Evidence: map[string]model.TriState{
			"https_present":                 model.No,
			"has_posts_older_than_6_months": model.No,
		},
	})

	if _, ok := findSignal(result.Signals, "HTTPS absent"); ok {
		t.Error("HTTPS fact must not apply to phone numbers")
	}
	if _, ok := findSignal(result.Signals, "Posts history"); ok {
		t.Error("Posts fact must not apply to phone numbers")
	}
}

func TestScorer_Evidence_UnsureNeverRaisesRisk(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence: map[string]model.TriState{
			"has_about":             model.Unknown,
			"asked_advance_payment": model.Unknown,
		},
	})

	if result.RiskLevel != model.TierUnknown {
		t.Errorf("Expected unsure answers to leave risk Unknown, got %s", result.RiskLevel)
	}
	for _, s := range result.Signals {
		if s.Source == model.SourceEvidence && s.Status != model.TierUnknown {
			t.Errorf("Unexpected definitive evidence signal %+v", s)
		}
	}
}

func TestScorer_Confidence(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name       string
		signals    []model.Signal
		unanswered float64
		hasContact bool
		want       int
	}{
		{name: "empty", want: 0},
		{
			name:       "all definitive",
			signals:    []model.Signal{{Status: model.TierLow, Weight: 1}, {Status: model.TierHigh, Weight: 1}},
			hasContact: true,
			want:       100,
		},
		{
			name:       "half resolved",
			signals:    []model.Signal{{Status: model.TierLow, Weight: 1}, {Status: model.TierUnknown, Weight: 1}},
			hasContact: true,
			want:       50,
		},
		{
			name:    "penalty without contact",
			signals: []model.Signal{{Status: model.TierLow, Weight: 1}},
			want:    70,
		},
		{
			name:       "unanswered facts widen denominator",
			signals:    []model.Signal{{Status: model.TierLow, Weight: 1}},
			unanswered: 1,
			hasContact: true,
			want:       50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.confidence(tt.signals, tt.unanswered, tt.hasContact)
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestScorer_Score_SignalsOrderedByTier(t *testing.T) {
	scorer := NewScorer()

	result := scorer.Score(Input{
		EntityType: model.EntityWebsite,
		Evidence: map[string]model.TriState{
			"has_about":             model.Yes,
			"has_reviews":           model.No,
			"asked_advance_payment": model.Yes,
		},
		Primary: []model.Signal{unknownProbe("Internet footprint")},
	})

	for i := 1; i < len(result.Signals); i++ {
		if result.Signals[i].Status > result.Signals[i-1].Status {
			t.Fatalf("Signals not ordered by tier at %d: %+v", i, result.Signals)
		}
	}
	if result.Signals[0].Name != "Advance payment request" {
		t.Errorf("Expected advance payment first, got %q", result.Signals[0].Name)
	}
}

func TestScorer_Score_StakesSignal(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		price string
		want  bool
	}{
		{"", false},
		{"5,000", false},
		{"50000-150000", true},
		{"PKR 250,000", true},
		{"cheap", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			_, ok := scorer.stakesSignal(tt.price)
			if ok != tt.want {
				t.Errorf("stakesSignal(%q) = %v, want %v", tt.price, ok, tt.want)
			}
		})
	}
}

func TestScorer_Score_RationaleNeverAccuses(t *testing.T) {
	scorer := NewScorer()

	inputs := []Input{
		{EntityType: model.EntityWebsite},
		{
			EntityType: model.EntityWebsite,
			Primary:    []model.Signal{{Name: "Internet footprint", Status: model.TierHigh, Note: "This seller is a scam"}},
			Reuse:      &ReuseFinding{Attachments: 1, OtherEntities: 3},
		},
		{
			EntityType: model.EntityOLX,
			Evidence:   map[string]model.TriState{"has_reviews": model.No},
		},
		{
			EntityType:         model.EntityWebsite,
			Evidence:           map[string]model.TriState{"has_about": model.Yes},
			Primary:            []model.Signal{{Name: "Website reachability", Status: model.TierLow}},
			HasContactEvidence: true,
		},
	}

	for _, in := range inputs {
		result := scorer.Score(in)
		if err := Guard(result.Rationale); err != nil {
			t.Errorf("Rationale failed guard: %v", err)
		}
		if !strings.Contains(result.Rationale, Disclaimer) {
			t.Errorf("Rationale missing disclaimer: %q", result.Rationale)
		}
		for _, s := range result.Signals {
			if err := Guard(s.Note); err != nil {
				t.Errorf("Signal note failed guard: %v", err)
			}
		}
	}
}

func TestScorer_Score_FacebookKind(t *testing.T) {
	scorer := NewScorer()
	tests := []struct {
		kind string
		want model.Tier
	}{
		{"page", model.TierLow},
		{"profile", model.TierLow},
		{"group", model.TierUnknown},
		{"unknown", model.TierUnknown},
	}
	for _, tt := range tests {
		result := scorer.Score(Input{EntityType: model.EntityFacebook, FacebookKind: tt.kind})
		sig, ok := findSignal(result.Signals, "Entity type")
		if !ok {
			t.Fatalf("%s: expected an entity type signal", tt.kind)
		}
		if sig.Status != tt.want || sig.Meta["kind"] != tt.kind {
			t.Errorf("%s: got %+v", tt.kind, sig)
		}
	}

	result := scorer.Score(Input{EntityType: model.EntityInstagram})
	if _, ok := findSignal(result.Signals, "Entity type"); ok {
		t.Error("Only Facebook checks carry an entity type signal")
	}
}
