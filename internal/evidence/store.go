// Package evidence stores uploaded screenshots and documents by content hash
// and finds visually similar images across entities.
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// DefaultMaxBytes is the upload size limit when none is configured
const DefaultMaxBytes = 8 << 20

// DefaultMaxPixels caps decoded image area. A small compressed file can
// declare dimensions whose pixel buffer would not fit in memory.
const DefaultMaxPixels = 25_000_000

// allowedTypes maps sniffed content types to whether they are images
var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": false,
	"text/plain":      false,
}

// Upload is raw bytes offered to the store
type Upload struct {
	Data     []byte
	Filename string
	MimeType string // Declared by the client; the sniffed type wins
}

// Blobs persists file bytes by content hash
type Blobs interface {
	Write(ctx context.Context, hash string, data []byte) error
	Read(ctx context.Context, hash string) ([]byte, error)
}

// Index persists file metadata and entity links
type Index interface {
	// InsertFile stores f unless a file with the same hash exists.
	// It returns the stored record and whether it was newly created.
	InsertFile(ctx context.Context, f model.EvidenceFile) (model.EvidenceFile, bool, error)
	GetFile(ctx context.Context, hash string) (model.EvidenceFile, error)
	PerceptualHashes(ctx context.Context) (map[string]model.PerceptualHash, error)
	Link(ctx context.Context, link model.EvidenceLink) error
	LinkedEntities(ctx context.Context, hashes []string) ([]model.EntityRef, error)
}

// Store is the content-addressed evidence store
type Store struct {
	blobs     Blobs
	index     Index
	matcher   Matcher
	maxBytes  int64
	maxPixels int64
	threshold int
	group     singleflight.Group
	now       func() time.Time
}

// NewStore creates a store. maxBytes <= 0 uses DefaultMaxBytes.
func NewStore(blobs Blobs, index Index, matcher Matcher, maxBytes int64, threshold int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if matcher == nil {
		matcher = NewBandMatcher()
	}
	return &Store{
		blobs:     blobs,
		index:     index,
		matcher:   matcher,
		maxBytes:  maxBytes,
		maxPixels: DefaultMaxPixels,
		threshold: threshold,
		now:       time.Now,
	}
}

// MaxBytes returns the upload size limit
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// SetMaxPixels changes the image area limit. n <= 0 restores the default.
func (s *Store) SetMaxPixels(n int64) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	s.maxPixels = n
}

// LoadMatcher fills the similarity matcher from the persisted index
func (s *Store) LoadMatcher(ctx context.Context) (int, error) {
	hashes, err := s.index.PerceptualHashes(ctx)
	if err != nil {
		return 0, apperr.Storage("evidence.load", err)
	}
	for hash, ph := range hashes {
		s.matcher.Add(hash, ph)
	}
	return len(hashes), nil
}

type putResult struct {
	file    model.EvidenceFile
	created bool
}

// Put validates and stores an upload. Identical bytes always yield the same
// record; concurrent identical uploads are collapsed into one write.
func (s *Store) Put(ctx context.Context, up Upload) (model.EvidenceFile, bool, error) {
	const op = "evidence.put"

	size := int64(len(up.Data))
	if size == 0 {
		return model.EvidenceFile{}, false, apperr.Validation(op, "file is empty")
	}
	if size > s.maxBytes {
		return model.EvidenceFile{}, false, &apperr.Error{
			Kind: apperr.KindValidation,
			Op:   op,
			Msg:  "file exceeds upload limit",
			Err:  ErrTooLarge,
		}
	}

	mimeType := sniff(up.Data)
	isImage, allowed := allowedTypes[mimeType]
	if !allowed {
		return model.EvidenceFile{}, false, apperr.Validation(op, "unsupported file type %s", mimeType)
	}

	var img image.Image
	if isImage {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(up.Data))
		if err != nil {
			return model.EvidenceFile{}, false, apperr.Validation(op, "image could not be decoded")
		}
		if int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
			return model.EvidenceFile{}, false, apperr.Validation(op, "image dimensions %dx%d exceed limit", cfg.Width, cfg.Height)
		}
		decoded, _, err := image.Decode(bytes.NewReader(up.Data))
		if err != nil {
			return model.EvidenceFile{}, false, apperr.Validation(op, "image could not be decoded")
		}
		img = decoded
	}

	sum := sha256.Sum256(up.Data)
	hash := hex.EncodeToString(sum[:])

	v, err, _ := s.group.Do(hash, func() (interface{}, error) {
		if existing, err := s.index.GetFile(ctx, hash); err == nil {
			return putResult{file: existing}, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Storage(op, err)
		}

		file := model.EvidenceFile{
			ContentHash: hash,
			Filename:    cleanFilename(up.Filename),
			MimeType:    mimeType,
			SizeBytes:   size,
			CreatedAt:   s.now().UTC(),
		}
		if img != nil {
			ph, err := perceptualHash(img)
			if err != nil {
				slog.Warn("perceptual hash failed", "sha256", hash, "error", err)
			} else {
				file.PerceptualHash = &ph
			}
		}

		if err := s.blobs.Write(ctx, hash, up.Data); err != nil {
			return nil, apperr.Storage(op, err)
		}
		stored, created, err := s.index.InsertFile(ctx, file)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		if created && stored.PerceptualHash != nil {
			s.matcher.Add(hash, *stored.PerceptualHash)
		}
		return putResult{file: stored, created: created}, nil
	})
	if err != nil {
		return model.EvidenceFile{}, false, err
	}
	res := v.(putResult)
	return res.file, res.created, nil
}

// ErrTooLarge marks uploads rejected for size
var ErrTooLarge = errors.New("upload too large")

// Meta returns the metadata for a content hash
func (s *Store) Meta(ctx context.Context, hash string) (model.EvidenceFile, error) {
	const op = "evidence.meta"
	if !ValidHash(hash) {
		return model.EvidenceFile{}, apperr.Validation(op, "invalid content hash")
	}
	f, err := s.index.GetFile(ctx, strings.ToLower(hash))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.EvidenceFile{}, apperr.NotFound(op, "file")
		}
		return model.EvidenceFile{}, apperr.Storage(op, err)
	}
	return f, nil
}

// Get returns the bytes and metadata for a content hash
func (s *Store) Get(ctx context.Context, hash string) ([]byte, model.EvidenceFile, error) {
	const op = "evidence.get"
	meta, err := s.Meta(ctx, hash)
	if err != nil {
		return nil, model.EvidenceFile{}, err
	}
	data, err := s.blobs.Read(ctx, meta.ContentHash)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, model.EvidenceFile{}, apperr.NotFound(op, "file")
		}
		return nil, model.EvidenceFile{}, apperr.Storage(op, err)
	}
	return data, meta, nil
}

// FindSimilar returns content hashes whose perceptual hash is within threshold bits of ph
func (s *Store) FindSimilar(ph model.PerceptualHash, threshold int) []string {
	return s.matcher.FindSimilar(ph, threshold)
}

// Link ties files to an entity so later checks can detect reuse
func (s *Store) Link(ctx context.Context, ref model.EntityRef, source model.LinkSource, sourceID string, hashes []string) error {
	for _, hash := range hashes {
		link := model.EvidenceLink{
			ContentHash: strings.ToLower(hash),
			EntityType:  ref.Type,
			EntityKey:   ref.Key,
			Source:      source,
			SourceID:    sourceID,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.index.Link(ctx, link); err != nil {
			return apperr.Storage("evidence.link", err)
		}
	}
	return nil
}

// ReusedBy returns the distinct entities, other than self, that are linked to
// any of the given files or to images perceptually similar to them.
func (s *Store) ReusedBy(ctx context.Context, hashes []string, self ...model.EntityRef) ([]model.EntityRef, error) {
	const op = "evidence.reuse"

	candidates := make(map[string]bool)
	for _, hash := range hashes {
		meta, err := s.Meta(ctx, hash)
		if err != nil {
			return nil, err
		}
		candidates[meta.ContentHash] = true
		if meta.PerceptualHash != nil {
			for _, similar := range s.matcher.FindSimilar(*meta.PerceptualHash, s.threshold) {
				candidates[similar] = true
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	list := make([]string, 0, len(candidates))
	for h := range candidates {
		list = append(list, h)
	}
	sort.Strings(list)

	refs, err := s.index.LinkedEntities(ctx, list)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	skip := make(map[model.EntityRef]bool, len(self))
	for _, ref := range self {
		skip[ref] = true
	}
	seen := make(map[model.EntityRef]bool)
	var others []model.EntityRef
	for _, ref := range refs {
		if skip[ref] || seen[ref] {
			continue
		}
		seen[ref] = true
		others = append(others, ref)
	}
	sort.Slice(others, func(i, j int) bool { return others[i].String() < others[j].String() })
	return others, nil
}

// ValidHash reports whether s is a hex SHA-256 digest
func ValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Extension returns a file extension for a stored MIME type
func Extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

func perceptualHash(img image.Image) (model.PerceptualHash, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, err
	}
	return model.PerceptualHash(h.GetHash()), nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}
