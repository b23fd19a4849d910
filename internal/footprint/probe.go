package footprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/riskcheck/internal/entity"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
)

// Role says how a probed identifier relates to the check
type Role string

const (
	RolePrimary Role = "primary" // The identifier being checked
	RoleLinked  Role = "linked"  // Another account the buyer linked to the seller
	RoleContact Role = "contact" // Seller phone, email or website given as evidence
)

// Target is one normalized identifier to probe
type Target struct {
	Role     Role
	Platform model.EntityType
	Value    string
	Key      string
}

// TargetReport holds the signals gathered for one target
type TargetReport struct {
	Target  Target
	Signals []model.Signal
}

// Prober runs the external checks for a set of targets
type Prober interface {
	Probe(ctx context.Context, targets []Target) []TargetReport
}

// Probe is the default Prober. Any component may be nil, in which case the
// matching sub-check is skipped.
type Probe struct {
	search     SearchProvider
	classifier *AuthorityClassifier
	reach      *Reachability
	rdap       *RDAPClient
	resolver   MXResolver
	normalizer *entity.Normalizer
	cfg        model.ProbeConfig
	strongMin  int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Options wires the probe's collaborators
type Options struct {
	Search       SearchProvider
	Classifier   *AuthorityClassifier
	Reachability *Reachability
	RDAP         *RDAPClient
	Resolver     MXResolver
	Normalizer   *entity.Normalizer
	Config       model.ProbeConfig
	StrongMin    int
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// NewProbe creates a probe
func NewProbe(opts Options) *Probe {
	if opts.Config.SubcheckTimeout <= 0 {
		opts.Config.SubcheckTimeout = 8 * time.Second
	}
	if opts.Config.Concurrency <= 0 {
		opts.Config.Concurrency = 8
	}
	if opts.Config.DomainAgeThreshold <= 0 {
		opts.Config.DomainAgeThreshold = 365 * 24 * time.Hour
	}
	if opts.StrongMin <= 0 {
		opts.StrongMin = 5
	}
	if opts.Classifier == nil {
		opts.Classifier = NewAuthorityClassifier(nil)
	}
	if opts.Normalizer == nil {
		opts.Normalizer = entity.NewNormalizer(opts.Config.PhoneRegion)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Probe{
		search:     opts.Search,
		classifier: opts.Classifier,
		reach:      opts.Reachability,
		rdap:       opts.RDAP,
		resolver:   opts.Resolver,
		normalizer: opts.Normalizer,
		cfg:        opts.Config,
		strongMin:  opts.StrongMin,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// subcheck is one external lookup for one target
type subcheck struct {
	target int
	name   string
	run    func(ctx context.Context) []model.Signal
}

// Probe runs every applicable sub-check for every target concurrently. Each
// sub-check has its own deadline; one that fails or overruns yields an
// Unknown signal without holding up the others.
func (p *Probe) Probe(ctx context.Context, targets []Target) []TargetReport {
	reports := make([]TargetReport, len(targets))
	var checks []subcheck
	for i, t := range targets {
		reports[i].Target = t
		checks = append(checks, p.plan(i, t)...)
	}
	if len(checks) == 0 {
		return reports
	}

	results := make([][]model.Signal, len(checks))
	var wg sync.WaitGroup

	// Create semaphore to limit concurrent lookups
	semaphore := make(chan struct{}, p.cfg.Concurrency)

	for i, sc := range checks {
		wg.Add(1)
		go func(idx int, sc subcheck) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = []model.Signal{unavailable(sc.name, "check cancelled")}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = p.runBounded(ctx, sc)
		}(i, sc)
	}
	wg.Wait()

	for i, sc := range checks {
		for _, sig := range results[i] {
			p.metrics.ObserveSubcheck(sc.name, sig.Status.String())
		}
		reports[sc.target].Signals = append(reports[sc.target].Signals, results[i]...)
	}
	return reports
}

// runBounded runs sc under the sub-check timeout. The result is abandoned if
// the sub-check ignores its context past the deadline.
func (p *Probe) runBounded(ctx context.Context, sc subcheck) []model.Signal {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SubcheckTimeout)
	defer cancel()

	done := make(chan []model.Signal, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("sub-check panicked", "check", sc.name, "panic", r)
				done <- []model.Signal{unavailable(sc.name, "internal error")}
			}
		}()
		done <- sc.run(ctx)
	}()

	select {
	case sigs := <-done:
		return sigs
	case <-ctx.Done():
		p.logger.Warn("sub-check timed out", "check", sc.name, "timeout", p.cfg.SubcheckTimeout)
		return []model.Signal{unavailable(sc.name, "timed out")}
	}
}

// plan lists the sub-checks that apply to a target
func (p *Probe) plan(idx int, t Target) []subcheck {
	var checks []subcheck

	if p.search != nil {
		checks = append(checks, subcheck{target: idx, name: "search", run: func(ctx context.Context) []model.Signal {
			return []model.Signal{p.searchSignal(ctx, t)}
		}})
	} else if t.Role == RolePrimary {
		checks = append(checks, subcheck{target: idx, name: "search", run: func(context.Context) []model.Signal {
			return []model.Signal{UnavailableSearch("not configured")}
		}})
	}

	if t.Platform.URLBearing() && p.reach != nil {
		checks = append(checks, subcheck{target: idx, name: "reachability", run: func(ctx context.Context) []model.Signal {
			return p.reach.Check(ctx, t.Value)
		}})
	}

	if t.Platform.SelfHosted() && p.rdap != nil {
		checks = append(checks, subcheck{target: idx, name: "domain_age", run: func(ctx context.Context) []model.Signal {
			return []model.Signal{p.rdap.AgeSignal(ctx, t.Value, p.cfg.DomainAgeThreshold)}
		}})
	}

	if t.Platform == model.EntityEmail && p.resolver != nil {
		checks = append(checks, subcheck{target: idx, name: "email_mx", run: func(ctx context.Context) []model.Signal {
			return []model.Signal{MXSignal(ctx, p.resolver, t.Value)}
		}})
	}

	if t.Platform.PhoneBearing() {
		checks = append(checks, subcheck{target: idx, name: "phone_format", run: func(context.Context) []model.Signal {
			return []model.Signal{PhoneSignal(p.normalizer, t.Value)}
		}})
	}

	return checks
}

func (p *Probe) searchSignal(ctx context.Context, t Target) model.Signal {
	query := BuildQuery(t.Platform, t.Value)
	if query == "" {
		return UnavailableSearch("empty query")
	}

	result, err := p.search.Search(ctx, query)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return UnavailableSearch("not configured")
		}
		p.logger.Warn("search failed", "query", query, "error", err)
		return UnavailableSearch("provider error")
	}

	return ClassifySearch(AnalyzeResults(result, p.classifier), p.strongMin)
}

// unavailable builds the Unknown signal for a sub-check that did not finish
func unavailable(check, reason string) model.Signal {
	names := map[string]string{
		"search":       "Internet footprint",
		"reachability": "Website reachability",
		"domain_age":   "Domain age",
		"email_mx":     "Email domain",
		"phone_format": "Phone number format",
	}
	name, ok := names[check]
	if !ok {
		name = check
	}
	return model.Signal{
		Name:   name,
		Status: model.TierUnknown,
		Note:   fmt.Sprintf("Check unavailable: %s", reason),
		Source: model.SourceFootprint,
		Weight: 1,
	}
}
