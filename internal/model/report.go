package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies what a community report alleges happened
type Category string

const (
	CategoryAdvancePayment Category = "advance_payment" // Asked to pay before delivery, then vanished
	CategoryNonDelivery    Category = "non_delivery"    // Paid, nothing arrived
	CategoryCounterfeit    Category = "counterfeit"     // Item not as described
	CategoryImpersonation  Category = "impersonation"   // Posing as a known seller or brand
	CategoryPhishing       Category = "phishing"        // Credential or payment-detail harvesting
	CategoryOther          Category = "other"
)

// Categories lists every accepted report category
var Categories = []Category{
	CategoryAdvancePayment,
	CategoryNonDelivery,
	CategoryCounterfeit,
	CategoryImpersonation,
	CategoryPhishing,
	CategoryOther,
}

// ParseCategory normalizes free-form category input such as "Advance Payment"
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "" {
		return CategoryOther, nil
	}
	for _, c := range Categories {
		if Category(norm) == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ReportStatus is the moderation state of a community report
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusApproved ReportStatus = "approved"
	StatusRejected ReportStatus = "rejected"
)

// Terminal reports whether no further transition is allowed
func (s ReportStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ErrNotPending is returned when moderating a report that already left pending
var ErrNotPending = errors.New("report is not pending")

// CommunityReport is a user-submitted account of a problem with a seller.
// It only influences checks after a moderator approves it.
type CommunityReport struct {
	ID               string          `json:"id"`
	EntityType       EntityType      `json:"entity_type"`
	EntityValue      string          `json:"entity_value"`
	EntityKey        string          `json:"entity_key"`
	Category         Category        `json:"category"`
	Description      string          `json:"description"`
	Amount           *float64        `json:"amount,omitempty"`
	EvidenceURL      string          `json:"evidence_url,omitempty"`
	ReporterContact  string          `json:"reporter_contact,omitempty"`
	AttachmentHashes []string        `json:"attachment_hashes,omitempty"`
	LinkedAccounts   []LinkedAccount `json:"linked_accounts,omitempty"`
	Status           ReportStatus    `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	Reviewer         string          `json:"reviewer,omitempty"`
}

// Approve moves a pending report to approved
func (r *CommunityReport) Approve(reviewer string, at time.Time) error {
	return r.transition(StatusApproved, reviewer, at)
}

// Reject moves a pending report to rejected
func (r *CommunityReport) Reject(reviewer string, at time.Time) error {
	return r.transition(StatusRejected, reviewer, at)
}

func (r *CommunityReport) transition(to ReportStatus, reviewer string, at time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotPending, r.Status)
	}
	reviewedAt := at.UTC()
	r.Status = to
	r.Reviewer = reviewer
	r.ReviewedAt = &reviewedAt
	return nil
}

// Mentions reports whether the report concerns the given identity,
// either as its subject or, when includeLinked is set, as a linked account.
func (r *CommunityReport) Mentions(entityType EntityType, key string, includeLinked bool) bool {
	if r.EntityType == entityType && r.EntityKey == key {
		return true
	}
	if !includeLinked {
		return false
	}
	for _, la := range r.LinkedAccounts {
		if la.Platform == entityType && la.Key == key {
			return true
		}
	}
	return false
}

// ReportRequest is the public submission form of a community report
type ReportRequest struct {
	EntityType       EntityType      `json:"entity_type"`
	EntityValue      string          `json:"entity_value"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	Amount           *float64        `json:"amount,omitempty"`
	EvidenceURL      string          `json:"evidence_url,omitempty"`
	ReporterContact  string          `json:"reporter_contact,omitempty"`
	AttachmentHashes []string        `json:"attachment_hashes,omitempty"`
	LinkedAccounts   []LinkedAccount `json:"linked_accounts,omitempty"`
}
