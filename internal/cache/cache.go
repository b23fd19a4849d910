package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/riskcheck/internal/model"
)

// Cache defines the interface for caching probe responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// KeyPrefix namespaces every key written by RiskCheck
const KeyPrefix = "riskcheck:v1:"

// CacheKey derives a stable key from the parts of a request
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return KeyPrefix + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory in front of Redis when an
// address is configured, otherwise memory in front of disk. A disabled
// cache is a no-op.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	if cfg.RedisAddr != "" {
		return NewLayeredCache(memory, NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
	}
	return NewLayeredCache(memory, NewDiskCache(cfg.Dir, cfg.MemoryTTL))
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }

func (Nop) Set(string, []byte, time.Duration) error { return nil }

func (Nop) Delete(string) error { return nil }

func (Nop) Clear() error { return nil }
