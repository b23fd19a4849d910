package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// EntityType is the platform an identifier belongs to
type EntityType string

const (
	EntityWebsite    EntityType = "website"
	EntityFacebook   EntityType = "facebook"
	EntityInstagram  EntityType = "instagram"
	EntityTikTok     EntityType = "tiktok"
	EntityOLX        EntityType = "olx"
	EntityDaraz      EntityType = "daraz"
	EntityAmazon     EntityType = "amazon"
	EntityEbay       EntityType = "ebay"
	EntityAliExpress EntityType = "aliexpress"
	EntityPakWheels  EntityType = "pakwheels"
	EntityAutoTrader EntityType = "autotrader"
	EntityCraigslist EntityType = "craigslist"
	EntityGumtree    EntityType = "gumtree"
	EntityCarousell  EntityType = "carousell"
	EntityWhatsApp   EntityType = "whatsapp"
	EntityTelegram   EntityType = "telegram"
	EntityPhone      EntityType = "phone"
	EntityEmail      EntityType = "email"
)

// EntityTypes lists every supported platform in display order
var EntityTypes = []EntityType{
	EntityWebsite, EntityFacebook, EntityInstagram, EntityTikTok,
	EntityOLX, EntityDaraz, EntityAmazon, EntityEbay, EntityAliExpress,
	EntityPakWheels, EntityAutoTrader, EntityCraigslist, EntityGumtree, EntityCarousell,
	EntityWhatsApp, EntityTelegram, EntityPhone, EntityEmail,
}

// Valid reports whether t is a supported platform
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// URLBearing reports whether identifiers of this type are web addresses
func (t EntityType) URLBearing() bool {
	return t.Valid() && !t.PhoneBearing() && t != EntityEmail
}

// PhoneBearing reports whether identifiers of this type are phone numbers
func (t EntityType) PhoneBearing() bool {
	return t == EntityWhatsApp || t == EntityTelegram || t == EntityPhone
}

// SelfHosted reports whether the entity runs on its own domain.
// Only self-hosted sites have a meaningful registration age.
func (t EntityType) SelfHosted() bool {
	return t == EntityWebsite
}

// Social reports whether the platform is a social network profile
func (t EntityType) Social() bool {
	return t == EntityFacebook || t == EntityInstagram || t == EntityTikTok
}

// Marketplace reports whether the platform is a classifieds or marketplace listing
func (t EntityType) Marketplace() bool {
	return t.URLBearing() && !t.Social() && !t.SelfHosted()
}

// TriState is a user-supplied answer that may be unresolved
type TriState int8

const (
	Unknown TriState = iota // Not answered, or "unsure"
	Yes
	No
)

func (s TriState) String() string {
	switch s {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Yes/No as booleans and Unknown as null
func (s TriState) MarshalJSON() ([]byte, error) {
	switch s {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts booleans, null, and the strings yes/no/unsure/unknown
func (s *TriState) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch raw {
	case "true":
		*s = Yes
		return nil
	case "false":
		*s = No
		return nil
	case "null":
		*s = Unknown
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("tri-state value must be true, false, null or a string: %s", raw)
	}
	parsed, err := ParseTriState(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseTriState parses the textual forms accepted from forms and the CLI
func ParseTriState(s string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		return Yes, nil
	case "no", "n", "false", "0":
		return No, nil
	case "unsure", "unknown", "", "null", "?":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("invalid tri-state value %q", s)
}

// LinkedAccount is another identifier the requester believes belongs to the same seller
type LinkedAccount struct {
	Platform EntityType `json:"platform"`
	Value    string     `json:"value"`
	Key      string     `json:"key,omitempty"` // Filled during normalization
}

// CheckRequest is the input of a single risk check
type CheckRequest struct {
	EntityType       EntityType          `json:"entity_type"`
	EntityValue      string              `json:"entity_value"`
	Evidence         map[string]TriState `json:"evidence,omitempty"`
	LinkedAccounts   []LinkedAccount     `json:"linked_accounts,omitempty"`
	AttachmentHashes []string            `json:"attachment_hashes,omitempty"`
	SellerPhone      string              `json:"seller_phone,omitempty"`
	SellerEmail      string              `json:"seller_email,omitempty"`
	SellerWebsite    string              `json:"seller_website,omitempty"`
	Intent           string              `json:"intent,omitempty"`       // e.g. "buy", "rent"
	PriceRange       string              `json:"price_range,omitempty"`  // Free text; high amounts add a stakes signal
	UserContact      string              `json:"user_contact,omitempty"` // Kept private, never scored
}

// HasContactEvidence reports whether any contact-identifying detail was supplied
func (r CheckRequest) HasContactEvidence() bool {
	return strings.TrimSpace(r.SellerPhone) != "" ||
		strings.TrimSpace(r.SellerEmail) != "" ||
		strings.TrimSpace(r.SellerWebsite) != ""
}

// CommunityAggregate summarizes moderated reports for one entity identity
type CommunityAggregate struct {
	ApprovedCount      int              `json:"approved_count"`
	PendingCount       int              `json:"pending_count"`
	ApprovedByCategory map[Category]int `json:"approved_by_category,omitempty"`
}

// Add merges another aggregate into a
func (a *CommunityAggregate) Add(other CommunityAggregate) {
	a.ApprovedCount += other.ApprovedCount
	a.PendingCount += other.PendingCount
	for cat, n := range other.ApprovedByCategory {
		if a.ApprovedByCategory == nil {
			a.ApprovedByCategory = make(map[Category]int)
		}
		a.ApprovedByCategory[cat] += n
	}
}

// Result is the scored outcome of a check
type Result struct {
	RiskLevel  Tier               `json:"risk_level"`
	Confidence int                `json:"confidence"` // 0-100
	Grade      string             `json:"grade"`
	Signals    []Signal           `json:"signals"`
	Rationale  string             `json:"rationale"`
	Community  CommunityAggregate `json:"community"` // Snapshot at check time
}

// ErrCheckFinalized is returned when a result is assigned to a check twice
var ErrCheckFinalized = errors.New("check already has a result")

// Check is one completed, immutable risk assessment
type Check struct {
	ID               string              `json:"id"`
	CreatedAt        time.Time           `json:"created_at"`
	EntityType       EntityType          `json:"entity_type"`
	EntityValue      string              `json:"entity_value"`
	EntityKey        string              `json:"entity_key"`
	Evidence         map[string]TriState `json:"evidence,omitempty"`
	LinkedAccounts   []LinkedAccount     `json:"linked_accounts,omitempty"`
	AttachmentHashes []string            `json:"attachment_hashes,omitempty"`
	Intent           string              `json:"intent,omitempty"`
	PriceRange       string              `json:"price_range,omitempty"`
	UserContact      string              `json:"-"`

	Result
}

// Finalize attaches the scored result. A check can be finalized only once.
func (c *Check) Finalize(res Result) error {
	if c.Finalized() {
		return ErrCheckFinalized
	}
	c.Result = res
	return nil
}

// Finalized reports whether a result has been attached
func (c *Check) Finalized() bool {
	return c.Grade != ""
}

// Clone returns a copy that shares no maps or slices with c. Signal meta
// maps are copied one level deep.
func (c *Check) Clone() *Check {
	out := *c
	out.Evidence = maps.Clone(c.Evidence)
	out.LinkedAccounts = slices.Clone(c.LinkedAccounts)
	out.AttachmentHashes = slices.Clone(c.AttachmentHashes)
	out.Community.ApprovedByCategory = maps.Clone(c.Community.ApprovedByCategory)
	if c.Signals != nil {
		out.Signals = make([]Signal, len(c.Signals))
		for i, sig := range c.Signals {
			sig.Meta = maps.Clone(sig.Meta)
			out.Signals[i] = sig
		}
	}
	return &out
}
