package evidence

import (
	"math/bits"
	"sort"
	"sync"

	"github.com/ppiankov/riskcheck/internal/model"
)

// Matcher finds perceptually similar images. Implementations may trade
// exactness for speed as long as every returned hash is within threshold.
type Matcher interface {
	Add(contentHash string, ph model.PerceptualHash)
	FindSimilar(ph model.PerceptualHash, threshold int) []string
}

const bandCount = 4

type entry struct {
	contentHash string
	ph          model.PerceptualHash
}

// BandMatcher splits each 64-bit hash into four 16-bit bands and buckets by
// band value. Two hashes within 3 bits of each other share at least one
// band, so lookups below bandCount bits only scan matching buckets.
type BandMatcher struct {
	mu      sync.RWMutex
	entries []entry
	seen    map[string]bool
	buckets [bandCount]map[uint16][]int
}

// NewBandMatcher creates an empty matcher
func NewBandMatcher() *BandMatcher {
	m := &BandMatcher{seen: make(map[string]bool)}
	for i := range m.buckets {
		m.buckets[i] = make(map[uint16][]int)
	}
	return m
}

// Add indexes a hash. Adding the same content hash twice is a no-op.
func (m *BandMatcher) Add(contentHash string, ph model.PerceptualHash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen[contentHash] {
		return
	}
	m.seen[contentHash] = true

	idx := len(m.entries)
	m.entries = append(m.entries, entry{contentHash: contentHash, ph: ph})
	for b := 0; b < bandCount; b++ {
		key := band(ph, b)
		m.buckets[b][key] = append(m.buckets[b][key], idx)
	}
}

// FindSimilar returns sorted content hashes within threshold bits of ph
func (m *BandMatcher) FindSimilar(ph model.PerceptualHash, threshold int) []string {
	if threshold < 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []string
	if threshold >= bandCount {
		for _, e := range m.entries {
			if Distance(e.ph, ph) <= threshold {
				matches = append(matches, e.contentHash)
			}
		}
	} else {
		checked := make(map[int]bool)
		for b := 0; b < bandCount; b++ {
			for _, idx := range m.buckets[b][band(ph, b)] {
				if checked[idx] {
					continue
				}
				checked[idx] = true
				if Distance(m.entries[idx].ph, ph) <= threshold {
					matches = append(matches, m.entries[idx].contentHash)
				}
			}
		}
	}

	sort.Strings(matches)
	return matches
}

// Len returns the number of indexed hashes
func (m *BandMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Distance is the Hamming distance between two perceptual hashes
func Distance(a, b model.PerceptualHash) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}

func band(ph model.PerceptualHash, i int) uint16 {
	return uint16(uint64(ph) >> (16 * uint(i)))
}
