package footprint

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/model"
)

type stubSearch struct {
	result *SearchResult
	delay  time.Duration
}

func (s *stubSearch) Search(_ context.Context, query string) (*SearchResult, error) {
	// Ignores the context on purpose to exercise the probe deadline
	time.Sleep(s.delay)
	res := *s.result
	res.Query = query
	return &res, nil
}

func signalNamed(sigs []model.Signal, name string) (model.Signal, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return model.Signal{}, false
}

func TestProbe_PlansSubchecksPerPlatform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := NewProbe(Options{
		Search:       &stubSearch{result: &SearchResult{}},
		Reachability: NewReachability(srv.Client(), nil, testHTTPConfig()),
		Resolver:     &fakeResolver{records: map[string][]*net.MX{"shop.example": {{Host: "mx.shop.example"}}}},
		Config:       model.ProbeConfig{SubcheckTimeout: time.Second, Concurrency: 4},
		Logger:       logging.Discard(),
	})

	reports := probe.Probe(context.Background(), []Target{
		{Role: RolePrimary, Platform: model.EntityWebsite, Value: srv.URL},
		{Role: RoleContact, Platform: model.EntityEmail, Value: "sales@shop.example"},
		{Role: RoleLinked, Platform: model.EntityPhone, Value: "+923001234567"},
	})

	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	primary := reports[0].Signals
	if _, ok := signalNamed(primary, "Internet footprint"); !ok {
		t.Error("expected search signal for primary")
	}
	if sig, ok := signalNamed(primary, "Website reachability"); !ok || sig.Status != model.TierMedium {
		t.Errorf("expected Medium reachability for plain HTTP, got %+v", sig)
	}
	if _, ok := signalNamed(primary, "Domain age"); ok {
		t.Error("expected no domain age check without an RDAP client")
	}

	if sig, ok := signalNamed(reports[1].Signals, "Email domain"); !ok || sig.Status != model.TierLow {
		t.Errorf("expected Low email domain signal, got %+v", sig)
	}
	if _, ok := signalNamed(reports[2].Signals, "Phone number format"); !ok {
		t.Error("expected phone format signal for phone target")
	}
	if _, ok := signalNamed(reports[2].Signals, "Website reachability"); ok {
		t.Error("expected no reachability check for phone target")
	}
}

func TestProbe_SlowSubcheckDegradesToUnknown(t *testing.T) {
	probe := NewProbe(Options{
		Search: &stubSearch{
			result: &SearchResult{Total: 50, Items: items("https://a.example/", "https://b.example/")},
			delay:  time.Second,
		},
		Config: model.ProbeConfig{SubcheckTimeout: 50 * time.Millisecond},
		Logger: logging.Discard(),
	})

	start := time.Now()
	reports := probe.Probe(context.Background(), []Target{
		{Role: RolePrimary, Platform: model.EntityPhone, Value: "+923001234567"},
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected probe to return at the sub-check deadline, took %v", elapsed)
	}

	sig, ok := signalNamed(reports[0].Signals, "Internet footprint")
	if !ok || sig.Status != model.TierUnknown {
		t.Errorf("expected Unknown footprint after timeout, got %+v", sig)
	}
	if _, ok := signalNamed(reports[0].Signals, "Phone number format"); !ok {
		t.Error("expected the fast sub-check to still report")
	}
}

func TestProbe_SearchNotConfigured(t *testing.T) {
	probe := NewProbe(Options{Logger: logging.Discard()})

	reports := probe.Probe(context.Background(), []Target{
		{Role: RolePrimary, Platform: model.EntityEmail, Value: "sales@shop.example"},
		{Role: RoleLinked, Platform: model.EntityEmail, Value: "other@shop.example"},
	})

	sig, ok := signalNamed(reports[0].Signals, "Internet footprint")
	if !ok || sig.Status != model.TierUnknown {
		t.Errorf("expected Unknown footprint for primary, got %+v", sig)
	}
	if len(reports[1].Signals) != 0 {
		t.Errorf("expected no signals for linked email without search or resolver, got %+v", reports[1].Signals)
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	probe := NewProbe(Options{
		Search: &stubSearch{result: &SearchResult{}},
		Logger: logging.Discard(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := probe.Probe(ctx, []Target{{Role: RolePrimary, Platform: model.EntityEmail, Value: "a@b.example"}})
	for _, sig := range reports[0].Signals {
		if sig.Status != model.TierUnknown {
			t.Errorf("expected Unknown after cancellation, got %+v", sig)
		}
	}
}
