// Package render turns a finished check into JSON, Markdown, a terminal
// summary or a PDF document. Renderers only read the check.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/score"
)

// Renderer renders checks with the configured branding
type Renderer struct {
	brand         model.BrandConfig
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(brand model.BrandConfig, includeFooter bool) *Renderer {
	if brand.AppName == "" {
		brand.AppName = "RiskCheck"
	}
	return &Renderer{brand: brand, includeFooter: includeFooter}
}

// JSON writes the check as indented JSON
func (r *Renderer) JSON(w io.Writer, check *model.Check) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(check); err != nil {
		return fmt.Errorf("encode check: %w", err)
	}
	return nil
}

// Markdown writes a human-readable report
func (r *Renderer) Markdown(w io.Writer, check *model.Check) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Risk Report\n\n", r.brand.AppName)
	fmt.Fprintf(&b, "**Entity:** %s `%s`  \n", check.EntityType, check.EntityValue)
	fmt.Fprintf(&b, "**Checked:** %s  \n", check.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	if check.ID != "" {
		fmt.Fprintf(&b, "**Check ID:** %s\n", check.ID)
	}
	b.WriteString("\n")

	b.WriteString("## Summary\n\n")
	b.WriteString("| Risk level | Confidence | Grade |\n")
	b.WriteString("|---|---|---|\n")
	fmt.Fprintf(&b, "| **%s** | %d/100 | %s |\n\n", check.RiskLevel, check.Confidence, check.Grade)
	b.WriteString(check.Rationale)
	b.WriteString("\n\n")

	b.WriteString("## Community reports\n\n")
	fmt.Fprintf(&b, "- Approved: %d\n", check.Community.ApprovedCount)
	fmt.Fprintf(&b, "- Awaiting moderation (not scored): %d\n\n", check.Community.PendingCount)

	for _, group := range Highlights(check.Signals) {
		fmt.Fprintf(&b, "## %s\n\n", group.Title)
		if len(group.Signals) == 0 {
			b.WriteString("- None\n\n")
			continue
		}
		for _, s := range group.Signals {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Note)
		}
		b.WriteString("\n")
	}

	b.WriteString("## All signals\n\n")
	b.WriteString("| Signal | Tier | Source | Note |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, s := range check.Signals {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", escapeCell(s.Name), s.Status, s.Source, escapeCell(s.Note))
	}
	b.WriteString("\n")

	if r.includeFooter {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "_%s_\n", score.Disclaimer)
		if r.brand.URL != "" {
			fmt.Fprintf(&b, "\n_Generated by %s (%s)_\n", r.brand.AppName, r.brand.URL)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary prints a short terminal summary
func (r *Renderer) Summary(w io.Writer, check *model.Check) {
	fmt.Fprintf(w, "\n%s: %s\n", check.EntityType, check.EntityValue)
	fmt.Fprintf(w, "Risk level: %s   Confidence: %d/100   Grade: %s\n", check.RiskLevel, check.Confidence, check.Grade)
	fmt.Fprintf(w, "Community: %d approved, %d pending\n\n", check.Community.ApprovedCount, check.Community.PendingCount)
	for _, s := range check.Signals {
		fmt.Fprintf(w, "  [%-7s] %s: %s\n", s.Status, s.Name, s.Note)
	}
	fmt.Fprintf(w, "\n%s\n", check.Rationale)
}

// WriteFile renders check into path using fn, creating parent directories
func (r *Renderer) WriteFile(path string, check *model.Check, fn func(io.Writer, *model.Check) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f, check); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Group is a titled set of signals
type Group struct {
	Title   string
	Tier    model.Tier
	Signals []model.Signal
}

// maxHighlights caps each highlight group
const maxHighlights = 5

// Highlights groups signals into warnings, positives and unverified items
func Highlights(signals []model.Signal) []Group {
	groups := []Group{
		{Title: "Warnings", Tier: model.TierHigh},
		{Title: "Caution", Tier: model.TierMedium},
		{Title: "Positive signals", Tier: model.TierLow},
		{Title: "Missing or unverified", Tier: model.TierUnknown},
	}
	for i := range groups {
		for _, s := range signals {
			if s.Status == groups[i].Tier && len(groups[i].Signals) < maxHighlights {
				groups[i].Signals = append(groups[i].Signals, s)
			}
		}
	}
	return groups
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
