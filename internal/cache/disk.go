package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache keeps search responses on disk so quota spent on them
// survives restarts. Files live under a two-character shard directory and
// start with an expiry line followed by the raw payload.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache stores entries under dir. ttl applies when Set gets zero.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	name := c.file(key)
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, false
	}
	head, body, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok {
		_ = os.Remove(name)
		return nil, false
	}
	expires, err := time.Parse(time.RFC3339Nano, string(head))
	if err != nil || !c.now().Before(expires) {
		_ = os.Remove(name)
		return nil, false
	}
	return body, true
}

func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	name := c.file(key)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(c.now().Add(ttl).UTC().Format(time.RFC3339Nano))
	buf.WriteByte('\n')
	buf.Write(value)

	// Readers only ever see complete files
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return os.Rename(tmp.Name(), name)
}

func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.file(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

func (c *DiskCache) file(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name[2:])
}
