package score

import "github.com/ppiankov/riskcheck/internal/model"

// GradeRule assigns Grade to results of RiskLevel with at least MinConfidence
type GradeRule struct {
	RiskLevel     model.Tier
	MinConfidence int
	Grade         string
}

// GradeTable is the grading policy. Rules for a tier are ordered by
// descending MinConfidence; the first match wins. Within a tier, higher
// confidence never gives a worse grade.
var GradeTable = []GradeRule{
	{model.TierLow, 70, "A"},
	{model.TierLow, 40, "B"},
	{model.TierLow, 0, "C"},
	{model.TierUnknown, 40, "C"},
	{model.TierUnknown, 0, "D"},
	{model.TierMedium, 70, "D"},
	{model.TierMedium, 0, "E"},
	{model.TierHigh, 70, "E"},
	{model.TierHigh, 0, "F"},
}

// Grade derives the letter grade from risk level and confidence
func Grade(level model.Tier, confidence int) string {
	for _, rule := range GradeTable {
		if rule.RiskLevel == level && confidence >= rule.MinConfidence {
			return rule.Grade
		}
	}
	return "F"
}
