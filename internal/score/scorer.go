// Package score turns probe results, buyer answers, community reports and
// image reuse into a risk level, confidence, grade and rationale.
package score

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
)

const (
	linkedWeight       = 0.5 // Linked-account signals count half
	noContactPenalty   = 0.7 // Confidence multiplier without seller phone/email/website
	highSeverity       = 4   // Community severity at which reports alone mean High
	highStakesAmount   = 100_000
	linkedReportWeight = 0.5
)

// categoryWeights scale community severity by what was reported
var categoryWeights = map[model.Category]int{
	model.CategoryAdvancePayment: 3,
	model.CategoryImpersonation:  3,
	model.CategoryPhishing:       2,
	model.CategoryCounterfeit:    2,
	model.CategoryNonDelivery:    2,
	model.CategoryOther:          1,
}

// LinkedSignals are the probe results for one linked account
type LinkedSignals struct {
	Account model.LinkedAccount
	Signals []model.Signal
}

// ReuseFinding is the outcome of image reuse detection for a check's attachments
type ReuseFinding struct {
	Attachments   int  // Number of attachments examined
	OtherEntities int  // Distinct other entities linked to matching images
	Unavailable   bool // Lookup failed
}

// Input is everything the scorer needs. It performs no I/O.
type Input struct {
	EntityType           model.EntityType
	Evidence             map[string]model.TriState
	Primary              []model.Signal // Probe results for the checked identifier
	Contacts             []model.Signal // Probe results for seller phone, email and website
	Linked               []LinkedSignals
	Community            model.CommunityAggregate // Reports about the checked identifier
	LinkedCommunity      model.CommunityAggregate // Approved reports about linked accounts
	CommunityUnavailable bool
	Reuse                *ReuseFinding // nil when nothing was attached
	HasContactEvidence   bool
	PriceRange           string
	FacebookKind         string // page, profile, group or unknown; empty for other platforms
}

// Scorer calculates the risk result
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score calculates the risk level, confidence, grade and rationale
func (s *Scorer) Score(in Input) model.Result {
	var signals []model.Signal

	// 1. Buyer answers; unanswered applicable facts only widen the denominator
	evidenceSignals, unanswered := s.evidenceSignals(in.EntityType, in.Evidence)
	signals = append(signals, evidenceSignals...)

	// 2. External probes
	if sig, ok := facebookKindSignal(in.FacebookKind); ok {
		signals = append(signals, sig)
	}
	signals = append(signals, withDefaultWeight(in.Primary)...)
	signals = append(signals, withDefaultWeight(in.Contacts)...)
	for _, ls := range in.Linked {
		signals = append(signals, s.linkedSignals(ls)...)
	}

	// 3. Community reports
	signals = append(signals, s.communitySignals(in)...)

	// 4. Image reuse
	if sig, ok := s.reuseSignal(in.Reuse); ok {
		signals = append(signals, sig)
	}

	// 5. Stakes
	if sig, ok := s.stakesSignal(in.PriceRange); ok {
		signals = append(signals, sig)
	}

	for i := range signals {
		signals[i].Note = Sanitize(signals[i].Note)
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Status > signals[j].Status
	})

	level := riskLevel(signals)
	confidence := s.confidence(signals, unanswered, in.HasContactEvidence)

	return model.Result{
		RiskLevel:  level,
		Confidence: confidence,
		Grade:      Grade(level, confidence),
		Signals:    signals,
		Rationale:  Rationale(level, confidence, signals),
		Community:  in.Community,
	}
}

// evidenceSignals converts answered facts. It returns the total weight of
// applicable facts left unanswered.
func (s *Scorer) evidenceSignals(entityType model.EntityType, evidence map[string]model.TriState) ([]model.Signal, float64) {
	var signals []model.Signal
	unanswered := 0.0
	for _, f := range Facts {
		if !f.Applies(entityType) {
			continue
		}
		answer, ok := evidence[f.Key]
		if !ok {
			unanswered += evidenceWeight
			continue
		}
		signals = append(signals, f.signal(answer))
	}
	return signals, unanswered
}

// linkedSignals demotes each tier one step and halves its weight
func (s *Scorer) linkedSignals(ls LinkedSignals) []model.Signal {
	out := make([]model.Signal, 0, len(ls.Signals))
	for _, sig := range withDefaultWeight(ls.Signals) {
		sig.Name = fmt.Sprintf("Linked %s: %s", ls.Account.Platform, sig.Name)
		sig.Status = sig.Status.Demote()
		sig.Weight *= linkedWeight
		out = append(out, sig)
	}
	return out
}

func (s *Scorer) communitySignals(in Input) []model.Signal {
	if in.CommunityUnavailable {
		return []model.Signal{{
			Name:   "Community reports",
			Status: model.TierUnknown,
			Note:   "Community reports could not be read",
			Source: model.SourceCommunity,
			Weight: 1,
		}}
	}

	var signals []model.Signal
	agg := in.Community

	if agg.ApprovedCount > 0 {
		severity := Severity(agg)
		status := model.TierMedium
		if severity >= highSeverity {
			status = model.TierHigh
		}
		signals = append(signals, model.Signal{
			Name:   "Community reports (approved)",
			Status: status,
			Note:   fmt.Sprintf("%d moderated report(s) describe problems with this seller", agg.ApprovedCount),
			Source: model.SourceCommunity,
			Weight: 1,
			Meta: map[string]interface{}{
				"approved": agg.ApprovedCount,
				"severity": severity,
				"formula":  "sum of category weights; >= 4 is High",
			},
		})
	} else {
		// Informational only: absence of reports is not evidence of safety
		signals = append(signals, model.Signal{
			Name:   "Community reports (approved)",
			Status: model.TierUnknown,
			Note:   "No approved community reports found",
			Source: model.SourceCommunity,
		})
	}

	if agg.PendingCount > 0 {
		signals = append(signals, model.Signal{
			Name:   "Community reports (pending)",
			Status: model.TierUnknown,
			Note:   fmt.Sprintf("%d report(s) awaiting moderation; not counted", agg.PendingCount),
			Source: model.SourceCommunity,
		})
	}

	if in.LinkedCommunity.ApprovedCount > 0 {
		signals = append(signals, model.Signal{
			Name:   "Linked account reports",
			Status: model.TierMedium,
			Note:   fmt.Sprintf("%d moderated report(s) mention a linked account", in.LinkedCommunity.ApprovedCount),
			Source: model.SourceCommunity,
			Weight: linkedReportWeight,
		})
	}
	return signals
}

// Severity sums category weights over approved reports
func Severity(agg model.CommunityAggregate) int {
	severity := 0
	counted := 0
	for cat, n := range agg.ApprovedByCategory {
		w, ok := categoryWeights[cat]
		if !ok {
			w = categoryWeights[model.CategoryOther]
		}
		severity += w * n
		counted += n
	}
	// Approved reports without a category breakdown count as "other"
	if rest := agg.ApprovedCount - counted; rest > 0 {
		severity += rest * categoryWeights[model.CategoryOther]
	}
	return severity
}

func (s *Scorer) reuseSignal(r *ReuseFinding) (model.Signal, bool) {
	if r == nil || r.Attachments == 0 {
		return model.Signal{}, false
	}
	sig := model.Signal{
		Source: model.SourceImagery,
		Weight: 1,
		Meta: map[string]interface{}{
			"attachments":    r.Attachments,
			"other_entities": r.OtherEntities,
		},
	}
	switch {
	case r.Unavailable:
		sig.Name = "Screenshot reuse"
		sig.Status = model.TierUnknown
		sig.Note = "Image reuse could not be checked"
	case r.OtherEntities >= 2:
		sig.Name = "Reused scam imagery"
		sig.Status = model.TierHigh
		sig.Note = fmt.Sprintf("Attached image matches images tied to %d other sellers, a pattern seen in coordinated fraud", r.OtherEntities)
	case r.OtherEntities == 1:
		sig.Name = "Image seen with another seller"
		sig.Status = model.TierMedium
		sig.Note = "Attached image matches an image tied to one other seller"
	default:
		sig.Name = "Screenshot reuse"
		sig.Status = model.TierLow
		sig.Note = "No reuse detected across other sellers"
	}
	return sig, true
}

// facebookKindSignal describes what kind of Facebook presence was checked.
// Groups expose few public signals, so they stay Unknown.
func facebookKindSignal(kind string) (model.Signal, bool) {
	if kind == "" {
		return model.Signal{}, false
	}
	sig := model.Signal{
		Name:   "Entity type",
		Status: model.TierLow,
		Source: model.SourceFootprint,
		Weight: 1,
		Meta:   map[string]interface{}{"kind": kind},
	}
	switch kind {
	case "page":
		sig.Note = "Facebook Page URL"
	case "profile":
		sig.Note = "Facebook Profile URL"
	case "group":
		sig.Status = model.TierUnknown
		sig.Note = "Facebook Group URL; limited public signals"
	default:
		sig.Status = model.TierUnknown
		sig.Note = "Facebook link of unrecognized kind"
	}
	return sig, true
}

var digitsOnly = regexp.MustCompile(`[^0-9]`)

// stakesSignal flags high transaction amounts; smaller ones add nothing
func (s *Scorer) stakesSignal(priceRange string) (model.Signal, bool) {
	raw := strings.TrimSpace(priceRange)
	if raw == "" {
		return model.Signal{}, false
	}
	// "50000-150000" counts the upper bound
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '-' || r == '~' || r == ' ' })
	max := 0
	for _, p := range parts {
		n, err := strconv.Atoi(digitsOnly.ReplaceAllString(p, ""))
		if err == nil && n > max {
			max = n
		}
	}
	if max < highStakesAmount {
		return model.Signal{}, false
	}
	return model.Signal{
		Name:   "Transaction stakes",
		Status: model.TierMedium,
		Note:   "High amount; prefer escrow or cash on delivery",
		Source: model.SourceEvidence,
		Weight: evidenceWeight,
		Meta:   map[string]interface{}{"amount": max},
	}, true
}

// riskLevel is the maximum tier; an all-Unknown set stays Unknown
func riskLevel(signals []model.Signal) model.Tier {
	level := model.TierUnknown
	for _, sig := range signals {
		level = model.MaxTier(level, sig.Status)
	}
	return level
}

// confidence is the weighted share of applicable signals that resolved
func (s *Scorer) confidence(signals []model.Signal, unanswered float64, hasContact bool) int {
	applicable := unanswered
	definitive := 0.0
	for _, sig := range signals {
		applicable += sig.Weight
		if sig.Status.Definitive() {
			definitive += sig.Weight
		}
	}
	if applicable == 0 {
		return 0
	}

	c := 100 * definitive / applicable
	if !hasContact {
		c *= noContactPenalty
	}
	return clamp(int(math.Round(c)), 0, 100)
}

func withDefaultWeight(signals []model.Signal) []model.Signal {
	out := make([]model.Signal, len(signals))
	copy(out, signals)
	for i := range out {
		if out[i].Weight == 0 {
			out[i].Weight = 1
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
