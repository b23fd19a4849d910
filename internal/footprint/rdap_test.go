package footprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/riskcheck/internal/model"
)

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.shop.example.co.uk/deals", "example.co.uk"},
		{"https://shop.example.com", "example.com"},
		{"store.daraz.pk", "daraz.pk"},
	}
	for _, tt := range tests {
		got, err := RegistrableDomain(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := RegistrableDomain("https://localhost/"); err == nil {
		t.Error("expected error for single-label host")
	}
}

func rdapServer(t *testing.T, created string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/example.com") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = w.Write([]byte(`{"events": [
			{"eventAction": "last changed", "eventDate": "2024-01-01T00:00:00Z"},
			{"eventAction": "registration", "eventDate": "` + created + `"}
		]}`))
	}))
}

func TestRDAPClient_AgeSignal(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	threshold := 365 * 24 * time.Hour

	tests := []struct {
		name    string
		created string
		want    model.Tier
	}{
		{"old domain", "2015-06-01T00:00:00Z", model.TierLow},
		{"young domain", "2025-11-01T00:00:00Z", model.TierMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rdapServer(t, tt.created)
			defer srv.Close()

			client := NewRDAPClient(srv.Client(), srv.URL+"/domain")
			client.now = func() time.Time { return now }

			sig := client.AgeSignal(context.Background(), "https://shop.example.com/", threshold)
			if sig.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, sig.Status, sig.Note)
			}
		})
	}
}

func TestRDAPClient_Unavailable(t *testing.T) {
	srv := rdapServer(t, "2015-06-01T00:00:00Z")
	defer srv.Close()
	client := NewRDAPClient(srv.Client(), srv.URL+"/domain/")

	for _, u := range []string{"https://unregistered.test/", "https://localhost/"} {
		sig := client.AgeSignal(context.Background(), u, time.Hour)
		if sig.Status != model.TierUnknown {
			t.Errorf("expected Unknown for %q, got %s", u, sig.Status)
		}
	}
}
