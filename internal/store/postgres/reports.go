package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/model"
)

const reportColumns = `id, created_at, entity_type, entity_value, entity_key, category, description,
       amount, evidence_url, reporter_contact, attachment_hashes, linked_accounts,
       status, reviewed_at, reviewer`

// ReportRepo stores community reports
type ReportRepo struct {
	Pool *pgxpool.Pool
}

// NewReportRepo creates a report repository
func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{Pool: pool}
}

// Create inserts a new report
func (r *ReportRepo) Create(ctx context.Context, rep *model.CommunityReport) error {
	hashes, err := json.Marshal(nonNilSlice(rep.AttachmentHashes))
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	linked, err := json.Marshal(nonNilSlice(rep.LinkedAccounts))
	if err != nil {
		return fmt.Errorf("marshal linked accounts: %w", err)
	}

	query := `
INSERT INTO community_reports (
    id, created_at, entity_type, entity_value, entity_key, category, description,
    amount, evidence_url, reporter_contact, attachment_hashes, linked_accounts, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.Pool.Exec(ctx, query,
		rep.ID, rep.CreatedAt, string(rep.EntityType), rep.EntityValue, rep.EntityKey,
		string(rep.Category), rep.Description, rep.Amount, rep.EvidenceURL, rep.ReporterContact,
		hashes, linked, string(rep.Status),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get loads one report
func (r *ReportRepo) Get(ctx context.Context, id string) (*model.CommunityReport, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM community_reports WHERE id = $1`, id)
	rep, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("postgres.report", "report")
		}
		return nil, err
	}
	return rep, nil
}

// List returns reports newest first
func (r *ReportRepo) List(ctx context.Context, f community.ListFilter) ([]*model.CommunityReport, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = community.DefaultListLimit
	}
	query := `
SELECT ` + reportColumns + `
FROM community_reports
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := r.Pool.Query(ctx, query, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*model.CommunityReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Transition is a compare-and-set from pending. Only one of several
// concurrent moderation actions matches the WHERE clause.
func (r *ReportRepo) Transition(ctx context.Context, id string, to model.ReportStatus, reviewer string, at time.Time) (*model.CommunityReport, error) {
	const op = "postgres.transition"

	if !to.Terminal() {
		return nil, apperr.Validation(op, "cannot transition to %q", to)
	}

	query := `
UPDATE community_reports
SET status = $2, reviewer = $3, reviewed_at = $4
WHERE id = $1 AND status = 'pending'
RETURNING ` + reportColumns
	rep, err := scanReport(r.Pool.QueryRow(ctx, query, id, string(to), reviewer, at.UTC()))
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: either the report does not exist or it left pending already
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, apperr.InvalidState(op, fmt.Errorf("%w: status is %s", model.ErrNotPending, current.Status))
}

// Aggregate counts approved and pending reports for an exact identity
func (r *ReportRepo) Aggregate(ctx context.Context, q community.AggregateQuery) (model.CommunityAggregate, error) {
	linked, err := json.Marshal([]map[string]string{{"platform": string(q.EntityType), "key": q.EntityKey}})
	if err != nil {
		return model.CommunityAggregate{}, err
	}

	query := `
SELECT status, category, count(*)
FROM community_reports
WHERE status IN ('approved', 'pending')
  AND ((entity_type = $1 AND entity_key = $2) OR ($3 AND linked_accounts @> $4::jsonb))
GROUP BY status, category`
	rows, err := r.Pool.Query(ctx, query, string(q.EntityType), q.EntityKey, q.IncludeLinked, linked)
	if err != nil {
		return model.CommunityAggregate{}, fmt.Errorf("aggregate reports: %w", err)
	}
	defer rows.Close()

	var agg model.CommunityAggregate
	for rows.Next() {
		var status, category string
		var n int
		if err := rows.Scan(&status, &category, &n); err != nil {
			return model.CommunityAggregate{}, fmt.Errorf("scan aggregate: %w", err)
		}
		switch model.ReportStatus(status) {
		case model.StatusApproved:
			agg.Add(model.CommunityAggregate{
				ApprovedCount:      n,
				ApprovedByCategory: map[model.Category]int{model.Category(category): n},
			})
		case model.StatusPending:
			agg.PendingCount += n
		}
	}
	if err := rows.Err(); err != nil {
		return model.CommunityAggregate{}, fmt.Errorf("aggregate reports: %w", err)
	}
	return agg, nil
}

func scanReport(row pgx.Row) (*model.CommunityReport, error) {
	var (
		rep                          model.CommunityReport
		entityType, category, status string
		hashes, linked               []byte
	)
	if err := row.Scan(
		&rep.ID, &rep.CreatedAt, &entityType, &rep.EntityValue, &rep.EntityKey, &category, &rep.Description,
		&rep.Amount, &rep.EvidenceURL, &rep.ReporterContact, &hashes, &linked,
		&status, &rep.ReviewedAt, &rep.Reviewer,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rep.EntityType = model.EntityType(entityType)
	rep.Category = model.Category(category)
	rep.Status = model.ReportStatus(status)
	if err := json.Unmarshal(hashes, &rep.AttachmentHashes); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal(linked, &rep.LinkedAccounts); err != nil {
		return nil, fmt.Errorf("decode linked accounts: %w", err)
	}
	return &rep, nil
}
