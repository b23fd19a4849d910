package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// EvidenceIndex stores evidence file metadata and entity links
type EvidenceIndex struct {
	Pool *pgxpool.Pool
}

// NewEvidenceIndex creates an evidence index
func NewEvidenceIndex(pool *pgxpool.Pool) *EvidenceIndex {
	return &EvidenceIndex{Pool: pool}
}

// InsertFile stores f unless the hash exists and reports whether it was created
func (r *EvidenceIndex) InsertFile(ctx context.Context, f model.EvidenceFile) (model.EvidenceFile, bool, error) {
	var ph *int64
	if f.PerceptualHash != nil {
		v := int64(*f.PerceptualHash)
		ph = &v
	}

	query := `
INSERT INTO evidence_files (content_hash, perceptual_hash, filename, mime_type, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (content_hash) DO NOTHING`
	tag, err := r.Pool.Exec(ctx, query, f.ContentHash, ph, f.Filename, f.MimeType, f.SizeBytes, f.CreatedAt)
	if err != nil {
		return model.EvidenceFile{}, false, fmt.Errorf("insert evidence file: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return f, true, nil
	}

	existing, err := r.GetFile(ctx, f.ContentHash)
	if err != nil {
		return model.EvidenceFile{}, false, err
	}
	return existing, false, nil
}

// GetFile loads file metadata
func (r *EvidenceIndex) GetFile(ctx context.Context, hash string) (model.EvidenceFile, error) {
	query := `
SELECT content_hash, perceptual_hash, filename, mime_type, size_bytes, created_at
FROM evidence_files
WHERE content_hash = $1`

	var (
		f  model.EvidenceFile
		ph *int64
	)
	err := r.Pool.QueryRow(ctx, query, hash).Scan(&f.ContentHash, &ph, &f.Filename, &f.MimeType, &f.SizeBytes, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EvidenceFile{}, apperr.NotFound("postgres.evidence", "file")
		}
		return model.EvidenceFile{}, fmt.Errorf("select evidence file: %w", err)
	}
	if ph != nil {
		v := model.PerceptualHash(uint64(*ph))
		f.PerceptualHash = &v
	}
	return f, nil
}

// PerceptualHashes returns every stored image hash
func (r *EvidenceIndex) PerceptualHashes(ctx context.Context) (map[string]model.PerceptualHash, error) {
	rows, err := r.Pool.Query(ctx, `SELECT content_hash, perceptual_hash FROM evidence_files WHERE perceptual_hash IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("select perceptual hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.PerceptualHash)
	for rows.Next() {
		var hash string
		var ph int64
		if err := rows.Scan(&hash, &ph); err != nil {
			return nil, fmt.Errorf("scan perceptual hash: %w", err)
		}
		out[hash] = model.PerceptualHash(uint64(ph))
	}
	return out, rows.Err()
}

// Link ties a file to an entity; repeated links are ignored
func (r *EvidenceIndex) Link(ctx context.Context, link model.EvidenceLink) error {
	query := `
INSERT INTO evidence_links (content_hash, entity_type, entity_key, source, source_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING`
	_, err := r.Pool.Exec(ctx, query,
		link.ContentHash, string(link.EntityType), link.EntityKey, string(link.Source), link.SourceID, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert evidence link: %w", err)
	}
	return nil
}

// LinkedEntities returns the distinct entities linked to any of hashes
func (r *EvidenceIndex) LinkedEntities(ctx context.Context, hashes []string) ([]model.EntityRef, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	query := `
SELECT DISTINCT entity_type, entity_key
FROM evidence_links
WHERE content_hash = ANY($1)
ORDER BY entity_type, entity_key`
	rows, err := r.Pool.Query(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("select linked entities: %w", err)
	}
	defer rows.Close()

	var out []model.EntityRef
	for rows.Next() {
		var ref model.EntityRef
		var entityType string
		if err := rows.Scan(&entityType, &ref.Key); err != nil {
			return nil, fmt.Errorf("scan linked entity: %w", err)
		}
		ref.Type = model.EntityType(entityType)
		out = append(out, ref)
	}
	return out, rows.Err()
}
