package app

import (
	"context"
	"testing"

	"github.com/ppiankov/riskcheck/internal/footprint"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/model"
)

type emptyProber struct{}

func (emptyProber) Probe(_ context.Context, targets []footprint.Target) []footprint.TargetReport {
	out := make([]footprint.TargetReport, len(targets))
	for i, t := range targets {
		out[i].Target = t
	}
	return out
}

func testConfig(t *testing.T) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()
	return cfg
}

func TestNew_MemoryMode(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logging.Discard(), Options{Prober: emptyProber{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if a.Pool != nil {
		t.Error("Expected no database pool without a URL")
	}
	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy memory mode, got %v", err)
	}

	check, err := a.Pipeline.RunCheck(context.Background(), model.CheckRequest{
		EntityType:  model.EntityWebsite,
		EntityValue: "https://shop.example",
	})
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}

	loaded, err := a.Pipeline.GetCheck(context.Background(), check.ID)
	if err != nil {
		t.Fatalf("GetCheck failed: %v", err)
	}
	if loaded.Grade != check.Grade {
		t.Errorf("Expected grade %s, got %s", check.Grade, loaded.Grade)
	}
}

func TestNewProbe_WithoutSearchCredentials(t *testing.T) {
	cfg := testConfig(t)
	p := NewProbe(cfg, nil, nil, logging.Discard())

	// Phone targets only run the offline format check
	reports := p.Probe(context.Background(), []footprint.Target{{
		Role: footprint.RoleContact, Platform: model.EntityPhone, Value: "+923001234567",
	}})
	if len(reports) != 1 || len(reports[0].Signals) != 1 {
		t.Fatalf("Expected one phone signal, got %+v", reports)
	}
}
