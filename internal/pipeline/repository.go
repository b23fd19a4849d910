package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// CheckRepository persists finished checks. Checks are written once and never updated.
type CheckRepository interface {
	Create(ctx context.Context, c *model.Check) error
	Get(ctx context.Context, id string) (*model.Check, error)
}

// MemoryRepository keeps checks in memory
type MemoryRepository struct {
	mu     sync.RWMutex
	checks map[string]*model.Check
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{checks: make(map[string]*model.Check)}
}

// Create stores a finalized check
func (m *MemoryRepository) Create(_ context.Context, c *model.Check) error {
	if !c.Finalized() {
		return fmt.Errorf("check %s has no result", c.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checks[c.ID]; exists {
		return fmt.Errorf("check %s already exists", c.ID)
	}
	m.checks[c.ID] = c.Clone()
	return nil
}

// Get returns a copy of a stored check
func (m *MemoryRepository) Get(_ context.Context, id string) (*model.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.checks[id]
	if !ok {
		return nil, apperr.NotFound("pipeline.get", "check")
	}
	return c.Clone(), nil
}

// Len returns the number of stored checks
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checks)
}
