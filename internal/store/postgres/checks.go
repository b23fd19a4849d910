package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// CheckRepo stores finished checks
type CheckRepo struct {
	Pool *pgxpool.Pool
}

// NewCheckRepo creates a check repository
func NewCheckRepo(pool *pgxpool.Pool) *CheckRepo {
	return &CheckRepo{Pool: pool}
}

// Create inserts a finalized check
func (r *CheckRepo) Create(ctx context.Context, c *model.Check) error {
	if !c.Finalized() {
		return fmt.Errorf("check %s has no result", c.ID)
	}

	evidence, err := json.Marshal(nonNilMap(c.Evidence))
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	linked, err := json.Marshal(nonNilSlice(c.LinkedAccounts))
	if err != nil {
		return fmt.Errorf("marshal linked accounts: %w", err)
	}
	hashes, err := json.Marshal(nonNilSlice(c.AttachmentHashes))
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	signals, err := json.Marshal(nonNilSlice(c.Signals))
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	community, err := json.Marshal(c.Community)
	if err != nil {
		return fmt.Errorf("marshal community: %w", err)
	}

	query := `
INSERT INTO checks (
    id, created_at, entity_type, entity_value, entity_key,
    evidence, linked_accounts, attachment_hashes, intent, price_range, user_contact,
    risk_level, confidence, grade, signals, rationale, community
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = r.Pool.Exec(ctx, query,
		c.ID, c.CreatedAt, string(c.EntityType), c.EntityValue, c.EntityKey,
		evidence, linked, hashes, c.Intent, c.PriceRange, c.UserContact,
		c.RiskLevel.String(), c.Confidence, c.Grade, signals, c.Rationale, community,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

// Get loads one check
func (r *CheckRepo) Get(ctx context.Context, id string) (*model.Check, error) {
	query := `
SELECT id, created_at, entity_type, entity_value, entity_key,
       evidence, linked_accounts, attachment_hashes, intent, price_range, user_contact,
       risk_level, confidence, grade, signals, rationale, community
FROM checks
WHERE id = $1`

	var (
		c                                   model.Check
		entityType, riskLevel               string
		evidence, linked, hashes, sigs, com []byte
	)
	err := r.Pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CreatedAt, &entityType, &c.EntityValue, &c.EntityKey,
		&evidence, &linked, &hashes, &c.Intent, &c.PriceRange, &c.UserContact,
		&riskLevel, &c.Confidence, &c.Grade, &sigs, &c.Rationale, &com,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("postgres.check", "check")
		}
		return nil, fmt.Errorf("select check: %w", err)
	}

	c.EntityType = model.EntityType(entityType)
	if c.RiskLevel, err = model.ParseTier(riskLevel); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		name string
		data []byte
		dst  interface{}
	}{
		{"evidence", evidence, &c.Evidence},
		{"linked accounts", linked, &c.LinkedAccounts},
		{"attachments", hashes, &c.AttachmentHashes},
		{"signals", sigs, &c.Signals},
		{"community", com, &c.Community},
	} {
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field.name, err)
		}
	}
	return &c, nil
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
