package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the risk-contribution tier of a signal or of a whole check.
// It describes how much a piece of evidence raises the risk estimate,
// never whether the entity is fraudulent.
type Tier int

const (
	TierUnknown Tier = iota // Not resolvable from available data
	TierLow                 // Evidence consistent with a legitimate seller
	TierMedium              // Weak or ambiguous evidence
	TierHigh                // Strong adverse evidence
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Definitive reports whether the tier resolved to something other than Unknown.
func (t Tier) Definitive() bool {
	return t != TierUnknown
}

// Demote lowers a tier by one step. Unknown and Low are unchanged.
func (t Tier) Demote() Tier {
	switch t {
	case TierHigh:
		return TierMedium
	case TierMedium:
		return TierLow
	default:
		return t
	}
}

// MaxTier returns the more severe of two tiers. Unknown ranks below Low.
func MaxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	case "unknown", "":
		return TierUnknown, nil
	}
	return TierUnknown, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Tier) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Signal is one explainable finding that contributed to a check.
type Signal struct {
	Name   string                 `json:"name"`           // Short label, e.g. "Internet footprint"
	Status Tier                   `json:"status"`         // Risk-contribution tier
	Note   string                 `json:"note"`           // Human-readable explanation
	Source SignalSource           `json:"source"`         // Where the finding came from
	Weight float64                `json:"-"`              // Share of the confidence denominator
	Meta   map[string]interface{} `json:"meta,omitempty"` // Transparent inputs (counts, thresholds)
}

// SignalSource identifies the component that produced a signal.
type SignalSource string

const (
	SourceEvidence  SignalSource = "evidence"  // Requester's tri-state answers
	SourceFootprint SignalSource = "footprint" // External probes
	SourceCommunity SignalSource = "community" // Moderated community reports
	SourceImagery   SignalSource = "imagery"   // Screenshot reuse detection
)
