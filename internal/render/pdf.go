package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/score"
)

const (
	pageMargin   = 18.0
	maxPDFSignal = 25
)

type rgb struct{ r, g, b int }

var (
	colorHeader = rgb{15, 23, 42}
	colorBody   = rgb{51, 65, 85}
	colorMuted  = rgb{100, 116, 139}
	colorBorder = rgb{226, 232, 240}
)

// tierColor is the badge colour of a risk tier
func tierColor(t model.Tier) rgb {
	switch t {
	case model.TierHigh:
		return rgb{220, 38, 38}
	case model.TierMedium:
		return rgb{217, 119, 6}
	case model.TierLow:
		return rgb{22, 163, 74}
	default:
		return colorMuted
	}
}

// PDF writes the check as an A4 document
func (r *Renderer) PDF(w io.Writer, check *model.Check) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(r.brand.AppName+" Risk Report", true)
	pdf.SetAuthor(r.brand.Owner, true)
	pdf.SetCreationDate(check.CreatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pageMargin

	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "I", 7)
		setText(pdf, colorMuted)
		pdf.CellFormat(contentW, 4, tr(score.Disclaimer), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 4, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	// Header bar
	setFill(pdf, colorHeader)
	pdf.Rect(0, 0, pageW, 28, "F")
	pdf.SetXY(pageMargin, 9)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(contentW, 8, tr(r.brand.AppName+" Risk Report"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(203, 213, 225)
	pdf.CellFormat(contentW, 5, "Generated: "+check.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")

	// Risk badge
	pdf.SetY(36)
	setFill(pdf, tierColor(check.RiskLevel))
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(44, 10, tr(fmt.Sprintf("%s RISK", upper(check.RiskLevel.String()))), "", 1, "C", true, 0, "")
	pdf.Ln(4)

	// Summary box
	setDraw(pdf, colorBorder)
	setText(pdf, colorHeader)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 8, "Summary", "LTR", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	setText(pdf, colorBody)
	pdf.CellFormat(contentW/2, 6, fmt.Sprintf("Grade: %s", check.Grade), "L", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 6, fmt.Sprintf("Confidence: %d/100", check.Confidence), "R", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, tr(fmt.Sprintf("Entity: %s  %s", check.EntityType, check.EntityValue)), "LR", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Community reports: %d approved, %d awaiting moderation",
		check.Community.ApprovedCount, check.Community.PendingCount), "LBR", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(contentW, 4.5, tr(check.Rationale), "", "L", false)
	pdf.Ln(3)

	// Highlights
	section(pdf, "Highlights")
	for _, group := range Highlights(check.Signals) {
		pdf.SetFont("Helvetica", "B", 10)
		setText(pdf, tierColor(group.Tier))
		pdf.CellFormat(contentW, 5, tr(group.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		setText(pdf, colorBody)
		if len(group.Signals) == 0 {
			pdf.CellFormat(contentW, 5, "  - None", "", 1, "L", false, 0, "")
			continue
		}
		for _, s := range group.Signals {
			pdf.MultiCell(contentW, 4.5, tr("  - "+s.Name+": "+s.Note), "", "L", false)
		}
		pdf.Ln(1)
	}
	pdf.Ln(2)

	// Signal table
	section(pdf, "Signals")
	nameW, tierW := 58.0, 20.0
	noteW := contentW - nameW - tierW
	pdf.SetFont("Helvetica", "B", 9)
	setFill(pdf, colorBorder)
	setText(pdf, colorHeader)
	pdf.CellFormat(nameW, 6, "Signal", "1", 0, "L", true, 0, "")
	pdf.CellFormat(tierW, 6, "Tier", "1", 0, "L", true, 0, "")
	pdf.CellFormat(noteW, 6, "Note", "1", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for i, s := range check.Signals {
		if i == maxPDFSignal {
			setText(pdf, colorMuted)
			pdf.CellFormat(contentW, 5, fmt.Sprintf("%d more signals omitted", len(check.Signals)-maxPDFSignal), "", 1, "L", false, 0, "")
			break
		}
		setText(pdf, colorBody)
		pdf.CellFormat(nameW, 5, tr(clip(s.Name, 40)), "1", 0, "L", false, 0, "")
		setText(pdf, tierColor(s.Status))
		pdf.CellFormat(tierW, 5, s.Status.String(), "1", 0, "L", false, 0, "")
		setText(pdf, colorBody)
		pdf.CellFormat(noteW, 5, tr(clip(s.Note, 70)), "1", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	setText(pdf, colorHeader)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
}

func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDraw(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
