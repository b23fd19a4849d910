// Package pipeline orchestrates one risk check: validation, concurrent
// evidence gathering, scoring and persistence.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/entity"
	"github.com/ppiankov/riskcheck/internal/footprint"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/score"
	"github.com/ppiankov/riskcheck/internal/validate"
)

// DefaultCheckTimeout bounds evidence gathering for one check
const DefaultCheckTimeout = 45 * time.Second

// Reports is the read side of the community report store
type Reports interface {
	Aggregate(ctx context.Context, q community.AggregateQuery) (model.CommunityAggregate, error)
}

// Evidence is the part of the evidence store a check uses
type Evidence interface {
	Meta(ctx context.Context, hash string) (model.EvidenceFile, error)
	ReusedBy(ctx context.Context, hashes []string, self ...model.EntityRef) ([]model.EntityRef, error)
	Link(ctx context.Context, ref model.EntityRef, source model.LinkSource, sourceID string, hashes []string) error
}

// Options wires the pipeline
type Options struct {
	Validator *validate.Validator
	Prober    footprint.Prober
	Scorer    *score.Scorer
	Reports   Reports  // Optional; nil scores without community reports
	Evidence  Evidence // Optional; nil rejects attachments
	Checks    CheckRepository
	Timeout   time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Pipeline orchestrates the complete check process
type Pipeline struct {
	validator *validate.Validator
	prober    footprint.Prober
	scorer    *score.Scorer
	reports   Reports
	evidence  Evidence
	checks    CheckRepository
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates a new pipeline
func New(opts Options) *Pipeline {
	if opts.Validator == nil {
		opts.Validator = validate.NewValidator(nil, 0)
	}
	if opts.Scorer == nil {
		opts.Scorer = score.NewScorer()
	}
	if opts.Checks == nil {
		opts.Checks = NewMemoryRepository()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCheckTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		validator: opts.Validator,
		prober:    opts.Prober,
		scorer:    opts.Scorer,
		reports:   opts.Reports,
		evidence:  opts.Evidence,
		checks:    opts.Checks,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "pipeline"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// gathered is everything collected for scoring
type gathered struct {
	probes               []footprint.TargetReport
	community            model.CommunityAggregate
	linkedCommunity      model.CommunityAggregate
	communityUnavailable bool
	reuse                *score.ReuseFinding
}

// RunCheck validates, gathers evidence, scores and persists one check.
// Only input validation and persistence failures return an error; every
// external failure degrades to an Unknown signal.
func (p *Pipeline) RunCheck(ctx context.Context, req model.CheckRequest) (*model.Check, error) {
	start := p.now()

	// 1. Validate before anything external happens
	in, err := p.validator.Check(req)
	if err != nil {
		return nil, err
	}
	reuseUnavailable, err := p.checkAttachments(ctx, in.Attachments)
	if err != nil {
		return nil, err
	}

	// 2. Gather evidence concurrently
	gctx, cancel := context.WithTimeout(ctx, p.timeout)
	g := p.gather(gctx, in, reuseUnavailable)
	cancel()

	// 3. Score
	result := p.scorer.Score(p.scoreInput(in, g))

	check := &model.Check{
		ID:               p.newID(),
		CreatedAt:        p.now().UTC(),
		EntityType:       in.Identity.Type,
		EntityValue:      in.Identity.Value,
		EntityKey:        in.Identity.Key,
		Evidence:         in.Evidence,
		LinkedAccounts:   in.Request.LinkedAccounts,
		AttachmentHashes: in.Attachments,
		Intent:           in.Request.Intent,
		PriceRange:       in.Request.PriceRange,
		UserContact:      in.Request.UserContact,
	}
	if err := check.Finalize(result); err != nil {
		return nil, err
	}

	// 4. Persist even when the caller has gone away; the result is complete
	pctx := context.WithoutCancel(ctx)
	if err := p.checks.Create(pctx, check); err != nil {
		p.logger.Error("persist check", "entity_type", check.EntityType, "error", err)
		return nil, apperr.Storage("pipeline.persist", err)
	}

	if p.evidence != nil && len(check.AttachmentHashes) > 0 {
		ref := in.Identity.Ref()
		if err := p.evidence.Link(pctx, ref, model.LinkFromCheck, check.ID, check.AttachmentHashes); err != nil {
			p.logger.Warn("link check attachments", "id", check.ID, "error", err)
		}
	}

	elapsed := time.Since(start)
	p.metrics.ObserveCheck(check.RiskLevel.String(), check.Grade, elapsed)
	p.logger.Info("check completed",
		"id", check.ID,
		"entity_type", check.EntityType,
		"risk_level", check.RiskLevel.String(),
		"confidence", check.Confidence,
		"grade", check.Grade,
		"signals", len(check.Signals),
		"duration", elapsed)

	return check, nil
}

// GetCheck returns a persisted check
func (p *Pipeline) GetCheck(ctx context.Context, id string) (*model.Check, error) {
	check, err := p.checks.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Storage("pipeline.get", err)
	}
	return check, nil
}

// checkAttachments rejects hashes that were never uploaded. A failing
// lookup does not fail the check; reuse detection is reported unavailable.
func (p *Pipeline) checkAttachments(ctx context.Context, hashes []string) (bool, error) {
	if len(hashes) == 0 {
		return false, nil
	}
	if p.evidence == nil {
		return false, apperr.Validation("pipeline.attachments", "attachments are not accepted")
	}
	for _, h := range hashes {
		if _, err := p.evidence.Meta(ctx, h); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return false, apperr.Validation("pipeline.attachments", "attachment %s was not uploaded", h)
			}
			p.logger.Warn("attachment lookup failed", "hash", h, "error", err)
			return true, nil
		}
	}
	return false, nil
}

// gather fans out probes, community reads and reuse detection. None of the
// goroutines return an error: failures become Unknown inputs.
func (p *Pipeline) gather(ctx context.Context, in *validate.CheckInput, reuseUnavailable bool) gathered {
	var (
		out     gathered
		linked  = make([]model.CommunityAggregate, len(in.Linked))
		linkErr = make([]error, len(in.Linked))
		g       errgroup.Group
	)

	if p.prober != nil {
		g.Go(func() error {
			out.probes = p.prober.Probe(ctx, targets(in))
			return nil
		})
	}

	if p.reports != nil {
		g.Go(func() error {
			agg, err := p.reports.Aggregate(ctx, community.AggregateQuery{
				EntityType: in.Identity.Type,
				EntityKey:  in.Identity.Key,
			})
			if err != nil {
				p.logger.Warn("community aggregate unavailable", "error", err)
				out.communityUnavailable = true
				return nil
			}
			out.community = agg
			return nil
		})
		for i, l := range in.Linked {
			g.Go(func() error {
				linked[i], linkErr[i] = p.reports.Aggregate(ctx, community.AggregateQuery{
					EntityType: l.Identity.Type,
					EntityKey:  l.Identity.Key,
				})
				return nil
			})
		}
	}

	if len(in.Attachments) > 0 {
		if reuseUnavailable {
			out.reuse = &score.ReuseFinding{Attachments: len(in.Attachments), Unavailable: true}
		} else {
			g.Go(func() error {
				out.reuse = p.detectReuse(ctx, in)
				return nil
			})
		}
	}

	_ = g.Wait()

	for i, agg := range linked {
		if linkErr[i] != nil {
			p.logger.Warn("linked community aggregate unavailable", "platform", in.Linked[i].Identity.Type, "error", linkErr[i])
			continue
		}
		// Only approved reports about linked accounts are scored
		out.linkedCommunity.Add(model.CommunityAggregate{
			ApprovedCount:      agg.ApprovedCount,
			ApprovedByCategory: agg.ApprovedByCategory,
		})
	}
	return out
}

// detectReuse counts other entities tied to the attached files or to
// perceptually similar images. The checked seller and its linked accounts
// do not count as others.
func (p *Pipeline) detectReuse(ctx context.Context, in *validate.CheckInput) *score.ReuseFinding {
	self := []model.EntityRef{in.Identity.Ref()}
	for _, l := range in.Linked {
		self = append(self, l.Identity.Ref())
	}
	for _, c := range in.Contacts {
		self = append(self, c.Ref())
	}

	finding := &score.ReuseFinding{Attachments: len(in.Attachments)}
	others, err := p.evidence.ReusedBy(ctx, in.Attachments, self...)
	if err != nil {
		p.logger.Warn("image reuse lookup failed", "error", err)
		finding.Unavailable = true
		return finding
	}
	finding.OtherEntities = len(others)
	return finding
}

func targets(in *validate.CheckInput) []footprint.Target {
	out := []footprint.Target{{
		Role:     footprint.RolePrimary,
		Platform: in.Identity.Type,
		Value:    in.Identity.Value,
		Key:      in.Identity.Key,
	}}
	for _, c := range in.Contacts {
		// A contact identical to the checked identifier is probed once
		if c.Ref() == in.Identity.Ref() {
			continue
		}
		out = append(out, footprint.Target{Role: footprint.RoleContact, Platform: c.Type, Value: c.Value, Key: c.Key})
	}
	for _, l := range in.Linked {
		out = append(out, footprint.Target{Role: footprint.RoleLinked, Platform: l.Identity.Type, Value: l.Identity.Value, Key: l.Identity.Key})
	}
	return out
}

func (p *Pipeline) scoreInput(in *validate.CheckInput, g gathered) score.Input {
	accounts := make(map[string]model.LinkedAccount, len(in.Linked))
	for _, l := range in.Linked {
		accounts[l.Identity.Ref().String()] = l.Account
	}

	si := score.Input{
		EntityType:           in.Identity.Type,
		Evidence:             in.Evidence,
		Community:            g.community,
		LinkedCommunity:      g.linkedCommunity,
		CommunityUnavailable: g.communityUnavailable,
		Reuse:                g.reuse,
		HasContactEvidence:   in.Request.HasContactEvidence(),
		PriceRange:           in.Request.PriceRange,
	}
	if in.Identity.Type == model.EntityFacebook {
		si.FacebookKind = string(entity.KindOfFacebook(in.Identity.Value))
	}
	for _, r := range g.probes {
		switch r.Target.Role {
		case footprint.RolePrimary:
			si.Primary = append(si.Primary, r.Signals...)
		case footprint.RoleContact:
			for _, sig := range r.Signals {
				sig.Name = "Seller " + string(r.Target.Platform) + ": " + sig.Name
				si.Contacts = append(si.Contacts, sig)
			}
		case footprint.RoleLinked:
			ref := model.EntityRef{Type: r.Target.Platform, Key: r.Target.Key}
			si.Linked = append(si.Linked, score.LinkedSignals{
				Account: accounts[ref.String()],
				Signals: r.Signals,
			})
		}
	}
	return si
}
