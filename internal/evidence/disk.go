package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/riskcheck/internal/apperr"
)

// DiskBlobs stores file bytes under dir, sharded by hash prefix
type DiskBlobs struct {
	dir string
}

// NewDiskBlobs creates a blob store rooted at dir
func NewDiskBlobs(dir string) *DiskBlobs {
	return &DiskBlobs{dir: dir}
}

// Write stores data under hash. Existing blobs are left untouched.
func (d *DiskBlobs) Write(_ context.Context, hash string, data []byte) error {
	path := d.path(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// Read returns the bytes stored under hash
func (d *DiskBlobs) Read(_ context.Context, hash string) ([]byte, error) {
	data, err := os.ReadFile(d.path(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFound("evidence.read", "blob")
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (d *DiskBlobs) path(hash string) string {
	if len(hash) < 4 {
		return filepath.Join(d.dir, hash)
	}
	return filepath.Join(d.dir, hash[:2], hash[2:4], hash)
}
