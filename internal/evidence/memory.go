package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// MemoryIndex is an in-process Index for development and tests
type MemoryIndex struct {
	mu        sync.RWMutex
	files     map[string]model.EvidenceFile
	links     []model.EvidenceLink
	linkIndex map[model.EvidenceLink]bool
}

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		files:     make(map[string]model.EvidenceFile),
		linkIndex: make(map[model.EvidenceLink]bool),
	}
}

// InsertFile stores f unless its hash is already present
func (m *MemoryIndex) InsertFile(_ context.Context, f model.EvidenceFile) (model.EvidenceFile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.files[f.ContentHash]; ok {
		return existing, false, nil
	}
	m.files[f.ContentHash] = f
	return f, true, nil
}

// GetFile returns file metadata by hash
func (m *MemoryIndex) GetFile(_ context.Context, hash string) (model.EvidenceFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[hash]
	if !ok {
		return model.EvidenceFile{}, apperr.NotFound("evidence.index", "file")
	}
	return f, nil
}

// PerceptualHashes returns every stored image hash
func (m *MemoryIndex) PerceptualHashes(_ context.Context) (map[string]model.PerceptualHash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]model.PerceptualHash)
	for hash, f := range m.files {
		if f.PerceptualHash != nil {
			out[hash] = *f.PerceptualHash
		}
	}
	return out, nil
}

// Link records a file-to-entity link; duplicates are ignored
func (m *MemoryIndex) Link(_ context.Context, link model.EvidenceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := link
	key.CreatedAt = time.Time{}
	if m.linkIndex[key] {
		return nil
	}
	m.linkIndex[key] = true
	m.links = append(m.links, link)
	return nil
}

// LinkedEntities returns the entities linked to any of the hashes
func (m *MemoryIndex) LinkedEntities(_ context.Context, hashes []string) ([]model.EntityRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		want[h] = true
	}
	var refs []model.EntityRef
	for _, l := range m.links {
		if want[l.ContentHash] {
			refs = append(refs, model.EntityRef{Type: l.EntityType, Key: l.EntityKey})
		}
	}
	return refs, nil
}
