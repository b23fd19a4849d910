package footprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/ppiankov/riskcheck/internal/model"
)

// registrationActions are the RDAP event names registries use for creation
var registrationActions = map[string]bool{
	"registration":        true,
	"registered":          true,
	"domain registration": true,
	"created":             true,
}

// RDAPClient looks up domain registration dates. The endpoint is fixed by
// configuration, never derived from user input.
type RDAPClient struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time
}

// NewRDAPClient creates a client for an RDAP bootstrap endpoint such as
// https://rdap.org/domain/
func NewRDAPClient(client *http.Client, endpoint string) *RDAPClient {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &RDAPClient{httpClient: client, endpoint: endpoint, now: time.Now}
}

// RegistrableDomain reduces a URL or host to its eTLD+1 (shop.example.co.uk
// for www.shop.example.co.uk)
func RegistrableDomain(rawURL string) (string, error) {
	host := rawURL
	if strings.Contains(rawURL, "://") {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return "", err
		}
		host = parsed.Hostname()
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if !strings.Contains(host, ".") {
		return "", fmt.Errorf("no registrable domain in %q", rawURL)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// Registered returns the registration time of domain
func (c *RDAPClient) Registered(ctx context.Context, domain string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+url.PathEscape(domain), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("rdap lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("rdap lookup: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Events []struct {
			Action string `json:"eventAction"`
			Date   string `json:"eventDate"`
		} `json:"events"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return time.Time{}, fmt.Errorf("decode rdap response: %w", err)
	}

	for _, ev := range payload.Events {
		if !registrationActions[strings.ToLower(ev.Action)] {
			continue
		}
		created, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse registration date %q: %w", ev.Date, err)
		}
		return created, nil
	}
	return time.Time{}, fmt.Errorf("no registration event for %s", domain)
}

// AgeSignal looks up rawURL's registrable domain and compares its age with
// threshold. Young domains are Medium; domain age alone is never High.
func (c *RDAPClient) AgeSignal(ctx context.Context, rawURL string, threshold time.Duration) model.Signal {
	sig := model.Signal{
		Name:   "Domain age",
		Status: model.TierUnknown,
		Source: model.SourceFootprint,
		Weight: 1,
	}

	domain, err := RegistrableDomain(rawURL)
	if err != nil {
		sig.Note = "Domain age unavailable: no registrable domain"
		return sig
	}
	sig.Meta = map[string]interface{}{"domain": domain}

	created, err := c.Registered(ctx, domain)
	if err != nil {
		sig.Note = "Domain age unavailable"
		return sig
	}

	age := c.now().Sub(created)
	if age < 0 {
		age = 0
	}
	days := int(age.Hours() / 24)
	sig.Meta["age_days"] = days
	sig.Meta["threshold_days"] = int(threshold.Hours() / 24)

	if age >= threshold {
		sig.Status = model.TierLow
		sig.Note = fmt.Sprintf("Domain registered %d days ago", days)
	} else {
		sig.Status = model.TierMedium
		sig.Note = fmt.Sprintf("Domain registered only %d days ago", days)
	}
	return sig
}
