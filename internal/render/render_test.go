package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/score"
)

func testCheck() *model.Check {
	return &model.Check{
		ID:          "c-1",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EntityType:  model.EntityWebsite,
		EntityValue: "http://totally-legit-shop.example",
		Result: model.Result{
			RiskLevel:  model.TierMedium,
			Confidence: 9,
			Grade:      "E",
			Signals: []model.Signal{
				{Name: "HTTPS absent", Status: model.TierMedium, Note: "Page is not served over HTTPS", Source: model.SourceEvidence},
				{Name: "Internet footprint", Status: model.TierUnknown, Note: "No results | none", Source: model.SourceFootprint},
			},
			Rationale: "Warning-level signals were found (HTTPS absent). " + score.Disclaimer,
			Community: model.CommunityAggregate{PendingCount: 1},
		},
	}
}

func TestRenderer_JSON(t *testing.T) {
	r := NewRenderer(model.BrandConfig{}, true)
	var buf bytes.Buffer

	if err := r.JSON(&buf, testCheck()); err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["risk_level"] != "Medium" {
		t.Errorf("Expected risk_level Medium, got %v", decoded["risk_level"])
	}
	if _, ok := decoded["user_contact"]; ok {
		t.Error("user_contact must never be rendered")
	}
}

func TestRenderer_Markdown(t *testing.T) {
	r := NewRenderer(model.BrandConfig{AppName: "RiskCheck", URL: "https://riskcheck.example"}, true)
	var buf bytes.Buffer

	if err := r.Markdown(&buf, testCheck()); err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# RiskCheck Risk Report",
		"| **Medium** | 9/100 | E |",
		"- **HTTPS absent**: Page is not served over HTTPS",
		"Awaiting moderation (not scored): 1",
		`No results \| none`,
		score.Disclaimer,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in markdown:\n%s", want, out)
		}
	}
}

func TestRenderer_Summary(t *testing.T) {
	r := NewRenderer(model.BrandConfig{}, false)
	var buf bytes.Buffer

	r.Summary(&buf, testCheck())
	if !strings.Contains(buf.String(), "Risk level: Medium") {
		t.Errorf("Unexpected summary:\n%s", buf.String())
	}
}

func TestRenderer_PDF(t *testing.T) {
	r := NewRenderer(model.BrandConfig{AppName: "RiskCheck", Owner: "RiskCheck"}, true)
	var buf bytes.Buffer

	check := testCheck()
	for i := 0; i < 30; i++ {
		check.Signals = append(check.Signals, model.Signal{Name: "Linked facebook: Internet footprint", Status: model.TierLow, Note: strings.Repeat("long note ", 20)})
	}

	if err := r.PDF(&buf, check); err != nil {
		t.Fatalf("PDF failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("Expected PDF header, got %q", buf.Bytes()[:10])
	}
}

func TestRenderer_WriteFile(t *testing.T) {
	r := NewRenderer(model.BrandConfig{}, false)
	path := filepath.Join(t.TempDir(), "out", "report.md")

	if err := r.WriteFile(path, testCheck(), r.Markdown); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "HTTPS absent") {
		t.Error("Expected rendered content in file")
	}
}

func TestHighlights(t *testing.T) {
	var signals []model.Signal
	for i := 0; i < 8; i++ {
		signals = append(signals, model.Signal{Name: "x", Status: model.TierHigh})
	}
	groups := Highlights(signals)
	if len(groups[0].Signals) != maxHighlights {
		t.Errorf("Expected %d warnings, got %d", maxHighlights, len(groups[0].Signals))
	}
	if len(groups[2].Signals) != 0 {
		t.Errorf("Expected no positive signals, got %d", len(groups[2].Signals))
	}
}
