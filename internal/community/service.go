package community

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/metrics"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/validate"
)

// DefaultReviewer is recorded when a moderator gives no name
const DefaultReviewer = "admin"

// Attachments is the part of the evidence store the service needs
type Attachments interface {
	Meta(ctx context.Context, hash string) (model.EvidenceFile, error)
	Link(ctx context.Context, ref model.EntityRef, source model.LinkSource, sourceID string, hashes []string) error
}

// Options configures a Service
type Options struct {
	Store       Store
	Validator   *validate.Validator
	Attachments Attachments // Optional; without it attachments are not checked or linked
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Service validates submissions and applies moderation decisions
type Service struct {
	store       Store
	validator   *validate.Validator
	attachments Attachments
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewService creates a new service
func NewService(opts Options) *Service {
	if opts.Validator == nil {
		opts.Validator = validate.NewValidator(nil, 0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:       opts.Store,
		validator:   opts.Validator,
		attachments: opts.Attachments,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With("component", "community"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Submit validates and stores a new report. It always starts pending.
func (s *Service) Submit(ctx context.Context, req model.ReportRequest) (*model.CommunityReport, error) {
	const op = "community.submit"

	report, err := s.validator.Report(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkAttachments(ctx, report.AttachmentHashes); err != nil {
		return nil, err
	}

	report.ID = s.newID()
	report.Status = model.StatusPending
	report.CreatedAt = s.now().UTC()

	if err := s.store.Create(ctx, report); err != nil {
		return nil, apperr.Storage(op, err)
	}

	s.metrics.ReportEvent("submitted")
	s.logger.Info("report submitted",
		"id", report.ID,
		"entity_type", report.EntityType,
		"category", report.Category,
		"attachments", len(report.AttachmentHashes))
	return report, nil
}

// Approve moves a pending report to approved and makes its attachments
// available to image reuse detection
func (s *Service) Approve(ctx context.Context, id, reviewer string) (*model.CommunityReport, error) {
	report, err := s.transition(ctx, "community.approve", id, model.StatusApproved, reviewer)
	if err != nil {
		return nil, err
	}

	if s.attachments != nil && len(report.AttachmentHashes) > 0 {
		ref := model.EntityRef{Type: report.EntityType, Key: report.EntityKey}
		if err := s.attachments.Link(ctx, ref, model.LinkFromReport, report.ID, report.AttachmentHashes); err != nil {
			// The approval is committed; a missing link only weakens reuse detection
			s.logger.Warn("link report attachments", "id", report.ID, "error", err)
		}
	}
	return report, nil
}

// Reject moves a pending report to rejected
func (s *Service) Reject(ctx context.Context, id, reviewer string) (*model.CommunityReport, error) {
	return s.transition(ctx, "community.reject", id, model.StatusRejected, reviewer)
}

func (s *Service) transition(ctx context.Context, op, id string, to model.ReportStatus, reviewer string) (*model.CommunityReport, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation(op, "report id is required")
	}
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		reviewer = DefaultReviewer
	}

	report, err := s.store.Transition(ctx, id, to, reviewer, s.now())
	if err != nil {
		if kind := apperr.KindOf(err); kind == apperr.KindInternal {
			return nil, apperr.Storage(op, err)
		}
		if errors.Is(err, apperr.ErrInvalidState) {
			s.logger.Info("moderation refused", "id", id, "to", to, "reviewer", reviewer)
		}
		return nil, err
	}

	s.metrics.ReportEvent(string(to))
	s.logger.Info("report moderated", "id", id, "status", to, "reviewer", reviewer)
	return report, nil
}

// Get returns one report
func (s *Service) Get(ctx context.Context, id string) (*model.CommunityReport, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		return nil, apperr.Storage("community.get", err)
	}
	return r, err
}

// List returns reports for the moderation queue
func (s *Service) List(ctx context.Context, f ListFilter) ([]*model.CommunityReport, error) {
	reports, err := s.store.List(ctx, f)
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		return nil, apperr.Storage("community.list", err)
	}
	return reports, err
}

// Aggregate counts reports for one identity
func (s *Service) Aggregate(ctx context.Context, q AggregateQuery) (model.CommunityAggregate, error) {
	agg, err := s.store.Aggregate(ctx, q)
	if err != nil {
		return model.CommunityAggregate{}, apperr.Storage("community.aggregate", err)
	}
	return agg, nil
}

func (s *Service) checkAttachments(ctx context.Context, hashes []string) error {
	if s.attachments == nil {
		return nil
	}
	for _, h := range hashes {
		if _, err := s.attachments.Meta(ctx, h); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Validation("community.submit", "attachment %s was not uploaded", h)
			}
			return err
		}
	}
	return nil
}
