package score

import (
	"github.com/ppiankov/riskcheck/internal/model"
)

// evidenceWeight is the confidence weight of one self-reported answer.
// Answers come from the buyer, so they count for half an external probe.
const evidenceWeight = 0.5

// Fact is one tri-state question a buyer can answer about a seller
type Fact struct {
	Key     string
	Name    string     // Signal name when answered yes or unsure
	NoName  string     // Signal name when answered no; defaults to Name
	YesTier model.Tier // Tier when the answer is yes
	NoTier  model.Tier // Tier when the answer is no
	YesNote string
	NoNote  string
	Applies func(model.EntityType) bool
}

func allPlatforms(model.EntityType) bool { return true }

func socialOrMarketplace(t model.EntityType) bool { return t.Social() || t.Marketplace() }

// Facts is the catalog of accepted evidence keys, in display order
var Facts = []Fact{
	{
		Key: "has_about", Name: "About section",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "About section is present", NoNote: "About section is missing (less transparent)",
		Applies: allPlatforms,
	},
	{
		Key: "has_reviews", Name: "Reviews visible",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Reviews are visible", NoNote: "Reviews are not visible",
		Applies: allPlatforms,
	},
	{
		Key: "has_address", Name: "Address/location",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Address or location is provided", NoNote: "No location provided",
		Applies: allPlatforms,
	},
	{
		Key: "has_phone_or_email", Name: "Phone or email on page",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Contact information is shown", NoNote: "No contact information shown",
		Applies: allPlatforms,
	},
	{
		Key: "https_present", Name: "HTTPS present", NoName: "HTTPS absent",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Page is served over HTTPS", NoNote: "Page is not served over HTTPS; payment details could be intercepted",
		Applies: model.EntityType.URLBearing,
	},
	{
		Key: "has_posts_older_than_6_months", Name: "Posts history",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Account has posts older than 6 months", NoNote: "No old posts; the account may be new",
		Applies: socialOrMarketplace,
	},
	{
		Key: "has_recent_posts_last_30_days", Name: "Recent activity",
		YesTier: model.TierLow, NoTier: model.TierMedium,
		YesNote: "Account posted in the last 30 days", NoNote: "No recent activity",
		Applies: socialOrMarketplace,
	},
	{
		Key: "asked_advance_payment", Name: "Advance payment request", NoName: "No advance payment requested",
		YesTier: model.TierHigh, NoTier: model.TierLow,
		YesNote: "Seller asked for payment before delivery, a common pattern in fraud reports",
		NoNote:  "Seller did not ask for payment before delivery",
		Applies: allPlatforms,
	},
}

// LookupFact returns the catalog entry for key
func LookupFact(key string) (Fact, bool) {
	for _, f := range Facts {
		if f.Key == key {
			return f, true
		}
	}
	return Fact{}, false
}

// FactKeys lists the accepted evidence keys
func FactKeys() []string {
	keys := make([]string, 0, len(Facts))
	for _, f := range Facts {
		keys = append(keys, f.Key)
	}
	return keys
}

// signal converts an answer to a signal
func (f Fact) signal(answer model.TriState) model.Signal {
	sig := model.Signal{
		Name:   f.Name,
		Source: model.SourceEvidence,
		Weight: evidenceWeight,
		Meta:   map[string]interface{}{"key": f.Key, "answer": answer.String()},
	}
	switch answer {
	case model.Yes:
		sig.Status = f.YesTier
		sig.Note = f.YesNote
	case model.No:
		sig.Status = f.NoTier
		sig.Note = f.NoNote
		if f.NoName != "" {
			sig.Name = f.NoName
		}
	default:
		sig.Status = model.TierUnknown
		sig.Note = "Not sure"
	}
	return sig
}
