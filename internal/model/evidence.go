package model

import (
	"fmt"
	"strconv"
	"time"
)

// EvidenceFile is the metadata of a content-addressed upload
type EvidenceFile struct {
	ContentHash    string          `json:"sha256"`                    // Hex SHA-256 of the bytes
	PerceptualHash *PerceptualHash `json:"perceptual_hash,omitempty"` // Images only
	Filename       string          `json:"filename,omitempty"`
	MimeType       string          `json:"mime_type"`
	SizeBytes      int64           `json:"size_bytes"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsImage reports whether the file carries a perceptual hash
func (f EvidenceFile) IsImage() bool {
	return f.PerceptualHash != nil
}

// PerceptualHash is a 64-bit pHash; similar images have a small Hamming distance
type PerceptualHash uint64

func (h PerceptualHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// MarshalText encodes the hash as 16 hex digits
func (h PerceptualHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses 16 hex digits
func (h *PerceptualHash) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 16, 64)
	if err != nil {
		return fmt.Errorf("parse perceptual hash: %w", err)
	}
	*h = PerceptualHash(v)
	return nil
}

// LinkSource records which flow tied a file to an entity
type LinkSource string

const (
	LinkFromCheck  LinkSource = "check"
	LinkFromReport LinkSource = "report"
)

// EvidenceLink ties an uploaded file to an entity identity
type EvidenceLink struct {
	ContentHash string     `json:"content_hash"`
	EntityType  EntityType `json:"entity_type"`
	EntityKey   string     `json:"entity_key"`
	Source      LinkSource `json:"source"`
	SourceID    string     `json:"source_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EntityRef identifies an entity independently of any check or report
type EntityRef struct {
	Type EntityType `json:"type"`
	Key  string     `json:"key"`
}

func (e EntityRef) String() string {
	return string(e.Type) + ":" + e.Key
}

// AuthorityTier classifies the domain of a search result
type AuthorityTier int

const (
	AuthorityUnknown   AuthorityTier = 0 // Not yet classified
	AuthorityListing   AuthorityTier = 1 // Business directories, maps, established marketplaces
	AuthoritySocial    AuthorityTier = 2 // Social networks and forums
	AuthorityComplaint AuthorityTier = 3 // Complaint boards and scam-report sites
	AuthorityOther     AuthorityTier = 4 // Everything else
)

func (t AuthorityTier) String() string {
	switch t {
	case AuthorityListing:
		return "listing"
	case AuthoritySocial:
		return "social"
	case AuthorityComplaint:
		return "complaint"
	case AuthorityOther:
		return "other"
	default:
		return "unknown"
	}
}
