package footprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/util"
)

func testHTTPConfig() model.HTTPConfig {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 2 * time.Second
	cfg.BlockPrivateNets = false
	return cfg
}

func TestReachability_Statuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body>Shop</body></html>`))
		}
	}))
	defer srv.Close()

	reach := NewReachability(srv.Client(), nil, testHTTPConfig())

	sigs := reach.Check(context.Background(), srv.URL+"/")
	if sigs[0].Status != model.TierMedium {
		t.Errorf("expected Medium for plain HTTP, got %s (%s)", sigs[0].Status, sigs[0].Note)
	}

	sigs = reach.Check(context.Background(), srv.URL+"/gone")
	if sigs[0].Status != model.TierHigh {
		t.Errorf("expected High for 404, got %s", sigs[0].Status)
	}
}

func TestReachability_HTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="mailto:sales@shop.example">Email</a></body></html>`))
	}))
	defer srv.Close()

	reach := NewReachability(srv.Client(), nil, testHTTPConfig())
	sigs := reach.Check(context.Background(), srv.URL)

	if len(sigs) != 2 {
		t.Fatalf("expected reachability and contact signals, got %+v", sigs)
	}
	if sigs[0].Status != model.TierLow {
		t.Errorf("expected Low over HTTPS, got %s", sigs[0].Status)
	}
	if sigs[1].Name != "Contact details on site" || sigs[1].Status != model.TierLow {
		t.Errorf("unexpected contact signal %+v", sigs[1])
	}
}

func TestReachability_BrokenCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// A client that does not trust the test CA
	reach := NewReachability(&http.Client{Timeout: 2 * time.Second}, nil, testHTTPConfig())
	sigs := reach.Check(context.Background(), srv.URL)
	if sigs[0].Status != model.TierHigh {
		t.Errorf("expected High for untrusted certificate, got %s (%s)", sigs[0].Status, sigs[0].Note)
	}
}

func TestReachability_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	reach := NewReachability(&http.Client{Timeout: 2 * time.Second}, nil, testHTTPConfig())
	sigs := reach.Check(context.Background(), addr)
	if sigs[0].Status != model.TierHigh {
		t.Errorf("expected High for refused connection, got %s (%s)", sigs[0].Status, sigs[0].Note)
	}
}

func TestReachability_CheckCannotRun(t *testing.T) {
	reach := NewReachability(util.NewHTTPClient(model.HTTPConfig{Timeout: time.Second, BlockPrivateNets: true}), nil, testHTTPConfig())

	for _, u := range []string{"not a url", "ftp://shop.example/", "http://127.0.0.1:9/"} {
		sigs := reach.Check(context.Background(), u)
		if sigs[0].Status != model.TierUnknown {
			t.Errorf("expected Unknown for %q, got %s (%s)", u, sigs[0].Status, sigs[0].Note)
		}
	}
}

func TestReachability_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	reach := NewReachability(srv.Client(), nil, testHTTPConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sigs := reach.Check(ctx, srv.URL)
	if sigs[0].Status != model.TierUnknown {
		t.Errorf("expected Unknown on timeout, got %s (%s)", sigs[0].Status, sigs[0].Note)
	}
}

func TestReachability_RobotsDisallowUsesHead(t *testing.T) {
	methods := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		methods <- r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testHTTPConfig()
	reach := NewReachability(srv.Client(), util.NewRobotsChecker(srv.Client(), cfg.UserAgent), cfg)
	res, err := reach.Fetch(context.Background(), srv.URL+"/shop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method := <-methods; method != http.MethodHead || res.Method != http.MethodHead {
		t.Errorf("expected HEAD request, got %q", method)
	}
	if len(res.Body) != 0 {
		t.Error("expected no body for HEAD")
	}
}
