package score

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
)

// Disclaimer ends every rationale
const Disclaimer = "This is an estimate, not a verdict: RiskCheck does not label anyone as a scammer."

// maxDominant caps how many signals a rationale names
const maxDominant = 3

// ErrAccusatory is returned by Guard for text that asserts wrongdoing
var ErrAccusatory = errors.New("text asserts wrongdoing as fact")

// forbiddenPhrases are statements of certainty the engine must never make
var forbiddenPhrases = regexp.MustCompile(`(?i)\b(?:is|are) (?:a )?(?:scam|scammers?|fraud|fraudsters?|fraudulent|fake)\b|\bconfirmed (?:fraud|scam(?:mer)?)\b|\bguaranteed?\b|\bdefinitely\b|\b100% (?:safe|fraud|scam)\b`)

// Guard reports whether text contains an absolute accusation or a claim of certainty
func Guard(text string) error {
	if m := forbiddenPhrases.FindString(text); m != "" {
		return fmt.Errorf("%w: %q", ErrAccusatory, m)
	}
	return nil
}

// Sanitize rewrites forbidden phrases into hedged wording
func Sanitize(text string) string {
	return forbiddenPhrases.ReplaceAllStringFunc(text, func(string) string {
		return "may carry risk"
	})
}

var rationaleTemplates = map[model.Tier]string{
	model.TierHigh: "High-risk signals were detected (%s). Avoid advance payments. " +
		"Prefer cash on delivery, platform-protected checkout or escrow, and ask for strong proof before paying.",
	model.TierMedium: "Warning-level signals were found (%s). Risk is higher than normal. " +
		"Verify the seller's identity across platforms and do not send advance payments.",
	model.TierLow: "Available signals look consistent with an established seller (%s). " +
		"Risk still exists, so prefer protected payment methods.",
	model.TierUnknown: "There is not enough verifiable information to estimate risk. " +
		"Prefer cash on delivery or escrow and ask for proof such as an invoice or a live video.",
}

// Rationale composes the explanation for a result from fixed templates.
// signals must already be sorted most relevant first.
func Rationale(level model.Tier, confidence int, signals []model.Signal) string {
	var b strings.Builder

	tmpl := rationaleTemplates[level]
	if level == model.TierUnknown {
		b.WriteString(tmpl)
	} else {
		b.WriteString(fmt.Sprintf(tmpl, strings.Join(dominant(level, signals), "; ")))
	}
	b.WriteString(fmt.Sprintf(" Confidence %d/100", confidence))
	if confidence < 40 {
		b.WriteString(", based on limited information.")
	} else {
		b.WriteString(".")
	}
	b.WriteString(" ")
	b.WriteString(Disclaimer)

	return Sanitize(b.String())
}

// dominant returns the names of up to maxDominant signals at level
func dominant(level model.Tier, signals []model.Signal) []string {
	var names []string
	for _, s := range signals {
		if s.Status != level {
			continue
		}
		names = append(names, s.Name)
		if len(names) == maxDominant {
			break
		}
	}
	return names
}
