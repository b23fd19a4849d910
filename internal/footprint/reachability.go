package footprint

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"github.com/ppiankov/riskcheck/internal/extract"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/util"
)

var errMalformedURL = errors.New("malformed URL")

// FetchResult holds what a reachability probe observed
type FetchResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	HTTPS       bool
	ContentType string
	Body        []byte
	Method      string
}

// Reachability fetches seller pages to check that they respond and use HTTPS
type Reachability struct {
	httpClient *http.Client
	robots     *util.RobotsChecker
	extractor  *extract.ContactExtractor
	userAgent  string
	maxBytes   int64
}

// NewReachability creates a reachability probe. robots may be nil to skip
// robots.txt checks.
func NewReachability(client *http.Client, robots *util.RobotsChecker, cfg model.HTTPConfig) *Reachability {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 600_000
	}
	return &Reachability{
		httpClient: client,
		robots:     robots,
		extractor:  extract.NewContactExtractor(),
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
	}
}

// Fetch requests rawURL. Pages disallowed by robots.txt are probed with HEAD.
func (r *Reachability) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", errMalformedURL, rawURL)
	}

	method := http.MethodGet
	if r.robots != nil {
		if allowed, err := r.robots.CanFetch(ctx, rawURL); err == nil && !allowed {
			method = http.MethodHead
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedURL, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	result := &FetchResult{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		HTTPS:       resp.Request.URL.Scheme == "https",
		ContentType: resp.Header.Get("Content-Type"),
		Method:      method,
	}
	if method == http.MethodGet {
		body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		result.Body = body
	}
	return result, nil
}

// Check probes rawURL and returns the reachability signal, plus a contact
// signal when the fetched page lists an email or phone number
func (r *Reachability) Check(ctx context.Context, rawURL string) []model.Signal {
	res, err := r.Fetch(ctx, rawURL)
	if err != nil {
		return []model.Signal{classifyFetchError(err)}
	}

	signals := []model.Signal{classifyFetch(res)}
	if sig, ok := r.contactSignal(res); ok {
		signals = append(signals, sig)
	}
	return signals
}

func (r *Reachability) contactSignal(res *FetchResult) (model.Signal, bool) {
	if len(res.Body) == 0 || !strings.Contains(strings.ToLower(res.ContentType), "html") {
		return model.Signal{}, false
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return model.Signal{}, false
	}
	contacts, err := r.extractor.Extract(string(res.Body), res.FinalURL)
	if err != nil || contacts.Empty() {
		return model.Signal{}, false
	}
	return model.Signal{
		Name:   "Contact details on site",
		Status: model.TierLow,
		Note:   fmt.Sprintf("Page lists %d email(s) and %d phone number(s)", len(contacts.Emails), len(contacts.Phones)),
		Source: model.SourceFootprint,
		Weight: 0.5,
		Meta: map[string]interface{}{
			"emails": len(contacts.Emails),
			"phones": len(contacts.Phones),
		},
	}, true
}

func reachabilitySignal(status model.Tier, note string) model.Signal {
	return model.Signal{
		Name:   "Website reachability",
		Status: status,
		Note:   note,
		Source: model.SourceFootprint,
		Weight: 1,
	}
}

// classifyFetch maps a completed response to a tier
func classifyFetch(res *FetchResult) model.Signal {
	sig := reachabilitySignal(model.TierHigh, fmt.Sprintf("URL responded with HTTP %d", res.StatusCode))
	if res.StatusCode >= 200 && res.StatusCode < 400 {
		if res.HTTPS {
			sig = reachabilitySignal(model.TierLow, fmt.Sprintf("URL responded (HTTP %d) and HTTPS is present", res.StatusCode))
		} else {
			sig = reachabilitySignal(model.TierMedium, fmt.Sprintf("URL responded (HTTP %d) but HTTPS is not used", res.StatusCode))
		}
	}
	sig.Meta = map[string]interface{}{
		"status_code": res.StatusCode,
		"https":       res.HTTPS,
		"final_url":   res.FinalURL,
	}
	return sig
}

// classifyFetchError separates failures that say something about the site
// (refused connection, broken TLS) from failures of the check itself
func classifyFetchError(err error) model.Signal {
	var (
		dnsErr     *net.DNSError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		netErr     net.Error
	)

	switch {
	case errors.Is(err, errMalformedURL):
		return reachabilitySignal(model.TierUnknown, "URL could not be checked: malformed address")
	case errors.Is(err, util.ErrBlockedAddress):
		return reachabilitySignal(model.TierUnknown, "URL could not be checked: address is not public")
	case errors.As(err, &dnsErr):
		return reachabilitySignal(model.TierUnknown, "URL could not be checked: name did not resolve")
	case errors.Is(err, syscall.ECONNREFUSED):
		return reachabilitySignal(model.TierHigh, "Site refused the connection")
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr):
		return reachabilitySignal(model.TierHigh, "Site has a broken HTTPS certificate")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return reachabilitySignal(model.TierUnknown, "URL could not be checked: timed out")
	case errors.As(err, &netErr) && netErr.Timeout():
		return reachabilitySignal(model.TierUnknown, "URL could not be checked: timed out")
	default:
		return reachabilitySignal(model.TierUnknown, "URL could not be checked")
	}
}
