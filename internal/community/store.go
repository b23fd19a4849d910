// Package community manages user-submitted reports and their moderation.
// Only approved reports ever reach scoring.
package community

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 100

// ListFilter selects reports for the moderation queue
type ListFilter struct {
	Status model.ReportStatus // Empty matches every status
	Limit  int
}

// AggregateQuery selects the reports counted for one identity
type AggregateQuery struct {
	EntityType    model.EntityType
	EntityKey     string
	IncludeLinked bool // Also count reports naming the identity as a linked account
}

// Store persists community reports.
// Transition must be compare-and-set from pending: of two concurrent
// moderation actions on one report exactly one succeeds.
type Store interface {
	Create(ctx context.Context, r *model.CommunityReport) error
	Get(ctx context.Context, id string) (*model.CommunityReport, error)
	List(ctx context.Context, f ListFilter) ([]*model.CommunityReport, error)
	Transition(ctx context.Context, id string, to model.ReportStatus, reviewer string, at time.Time) (*model.CommunityReport, error)
	Aggregate(ctx context.Context, q AggregateQuery) (model.CommunityAggregate, error)
}

// MemoryStore keeps reports in memory
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*model.CommunityReport
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*model.CommunityReport)}
}

// Create stores a new report
func (m *MemoryStore) Create(_ context.Context, r *model.CommunityReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[r.ID]; exists {
		return fmt.Errorf("report %s already exists", r.ID)
	}
	m.reports[r.ID] = clone(r)
	return nil
}

// Get returns a copy of one report
func (m *MemoryStore) Get(_ context.Context, id string) (*model.CommunityReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok {
		return nil, apperr.NotFound("community.get", "report")
	}
	return clone(r), nil
}

// List returns reports newest first
func (m *MemoryStore) List(_ context.Context, f ListFilter) ([]*model.CommunityReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.CommunityReport
	for _, r := range m.reports {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transition moves a pending report to a terminal status under the write lock
func (m *MemoryStore) Transition(_ context.Context, id string, to model.ReportStatus, reviewer string, at time.Time) (*model.CommunityReport, error) {
	const op = "community.transition"

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reports[id]
	if !ok {
		return nil, apperr.NotFound(op, "report")
	}

	next := clone(stored)
	var err error
	switch to {
	case model.StatusApproved:
		err = next.Approve(reviewer, at)
	case model.StatusRejected:
		err = next.Reject(reviewer, at)
	default:
		return nil, apperr.Validation(op, "cannot transition to %q", to)
	}
	if err != nil {
		return nil, apperr.InvalidState(op, err)
	}

	m.reports[id] = next
	return clone(next), nil
}

// Aggregate counts approved and pending reports for an exact identity
func (m *MemoryStore) Aggregate(_ context.Context, q AggregateQuery) (model.CommunityAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var agg model.CommunityAggregate
	for _, r := range m.reports {
		if !r.Mentions(q.EntityType, q.EntityKey, q.IncludeLinked) {
			continue
		}
		switch r.Status {
		case model.StatusApproved:
			agg.Add(model.CommunityAggregate{
				ApprovedCount:      1,
				ApprovedByCategory: map[model.Category]int{r.Category: 1},
			})
		case model.StatusPending:
			agg.PendingCount++
		}
	}
	return agg, nil
}

func clone(r *model.CommunityReport) *model.CommunityReport {
	c := *r
	c.AttachmentHashes = append([]string(nil), r.AttachmentHashes...)
	c.LinkedAccounts = append([]model.LinkedAccount(nil), r.LinkedAccounts...)
	if r.Amount != nil {
		amount := *r.Amount
		c.Amount = &amount
	}
	if r.ReviewedAt != nil {
		at := *r.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}
