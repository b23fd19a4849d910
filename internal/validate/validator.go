// Package validate checks and normalizes caller input before any probing or
// persistence happens.
package validate

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/entity"
	"github.com/ppiankov/riskcheck/internal/evidence"
	"github.com/ppiankov/riskcheck/internal/model"
	"github.com/ppiankov/riskcheck/internal/score"
)

const (
	DefaultMaxLinked  = 5
	MaxAttachments    = 10
	MinDescription    = 20
	MaxDescription    = 5000
	maxFreeTextLength = 200
)

// Linked is a normalized linked account
type Linked struct {
	Account  model.LinkedAccount
	Identity entity.Identity
}

// CheckInput is a validated check request
type CheckInput struct {
	Identity    entity.Identity
	Evidence    map[string]model.TriState
	Linked      []Linked
	Contacts    []entity.Identity // Seller phone, email and website
	Attachments []string
	Request     model.CheckRequest // Original request with normalized fields
}

// Validator validates check and report input
type Validator struct {
	normalizer *entity.Normalizer
	maxLinked  int
}

// NewValidator creates a new validator
func NewValidator(normalizer *entity.Normalizer, maxLinked int) *Validator {
	if normalizer == nil {
		normalizer = entity.NewNormalizer("")
	}
	if maxLinked <= 0 {
		maxLinked = DefaultMaxLinked
	}
	return &Validator{normalizer: normalizer, maxLinked: maxLinked}
}

// Normalizer returns the identifier normalizer used by the validator
func (v *Validator) Normalizer() *entity.Normalizer {
	return v.normalizer
}

// Check validates a check request
func (v *Validator) Check(req model.CheckRequest) (*CheckInput, error) {
	const op = "validate.check"

	id, err := v.normalizer.Normalize(req.EntityType, req.EntityValue)
	if err != nil {
		return nil, err
	}

	ev, err := v.evidence(req.Evidence)
	if err != nil {
		return nil, err
	}

	linked, err := v.linked(id, req.LinkedAccounts)
	if err != nil {
		return nil, err
	}

	contacts, err := v.contacts(req)
	if err != nil {
		return nil, err
	}

	hashes, err := Hashes(req.AttachmentHashes)
	if err != nil {
		return nil, err
	}

	for name, text := range map[string]string{"intent": req.Intent, "price_range": req.PriceRange, "user_contact": req.UserContact} {
		if utf8.RuneCountInString(text) > maxFreeTextLength {
			return nil, apperr.Validation(op, "%s exceeds %d characters", name, maxFreeTextLength)
		}
	}

	normalized := req
	normalized.EntityValue = id.Value
	normalized.Evidence = ev
	normalized.AttachmentHashes = hashes
	normalized.LinkedAccounts = make([]model.LinkedAccount, len(linked))
	for i, l := range linked {
		normalized.LinkedAccounts[i] = l.Account
	}

	return &CheckInput{
		Identity:    id,
		Evidence:    ev,
		Linked:      linked,
		Contacts:    contacts,
		Attachments: hashes,
		Request:     normalized,
	}, nil
}

// evidence rejects keys outside the fact catalog
func (v *Validator) evidence(in map[string]model.TriState) (map[string]model.TriState, error) {
	out := make(map[string]model.TriState, len(in))
	for key, answer := range in {
		k := strings.ToLower(strings.TrimSpace(key))
		if _, ok := score.LookupFact(k); !ok {
			return nil, apperr.Validation("validate.evidence", "unknown evidence key %q", key)
		}
		out[k] = answer
	}
	return out, nil
}

// linked normalizes linked accounts, dropping duplicates and the primary itself
func (v *Validator) linked(primary entity.Identity, accounts []model.LinkedAccount) ([]Linked, error) {
	const op = "validate.linked"

	seen := map[model.EntityRef]bool{primary.Ref(): true}
	var out []Linked
	for i, acc := range accounts {
		platform := acc.Platform
		if platform == "" {
			platform = InferPlatform(acc.Value)
		}
		id, err := v.normalizer.Normalize(platform, acc.Value)
		if err != nil {
			return nil, apperr.Validation(op, "linked account %d: %s", i+1, apperr.Message(err))
		}
		if seen[id.Ref()] {
			continue
		}
		seen[id.Ref()] = true
		out = append(out, Linked{
			Account:  model.LinkedAccount{Platform: id.Type, Value: id.Value, Key: id.Key},
			Identity: id,
		})
	}
	if len(out) > v.maxLinked {
		return nil, apperr.Validation(op, "at most %d linked accounts are allowed", v.maxLinked)
	}
	return out, nil
}

// contacts normalizes the optional seller contact fields
func (v *Validator) contacts(req model.CheckRequest) ([]entity.Identity, error) {
	var out []entity.Identity
	fields := []struct {
		name  string
		typ   model.EntityType
		value string
	}{
		{"seller_phone", model.EntityPhone, req.SellerPhone},
		{"seller_email", model.EntityEmail, req.SellerEmail},
		{"seller_website", model.EntityWebsite, req.SellerWebsite},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		id, err := v.normalizer.Normalize(f.typ, f.value)
		if err != nil {
			return nil, apperr.Validation("validate.contacts", "%s: %s", f.name, apperr.Message(err))
		}
		out = append(out, id)
	}
	return out, nil
}

// Report validates a community report submission and returns a pending report
func (v *Validator) Report(req model.ReportRequest) (*model.CommunityReport, error) {
	const op = "validate.report"

	id, err := v.normalizer.Normalize(req.EntityType, req.EntityValue)
	if err != nil {
		return nil, err
	}

	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return nil, apperr.Validation(op, "category must be one of %s", categoryList())
	}

	desc := strings.TrimSpace(req.Description)
	switch n := utf8.RuneCountInString(desc); {
	case n < MinDescription:
		return nil, apperr.Validation(op, "description must be at least %d characters", MinDescription)
	case n > MaxDescription:
		return nil, apperr.Validation(op, "description must be at most %d characters", MaxDescription)
	}

	if req.Amount != nil && *req.Amount < 0 {
		return nil, apperr.Validation(op, "amount must not be negative")
	}

	evidenceURL := strings.TrimSpace(req.EvidenceURL)
	if evidenceURL != "" {
		u, err := url.Parse(evidenceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperr.Validation(op, "evidence_url must be an http(s) URL")
		}
	}

	if utf8.RuneCountInString(req.ReporterContact) > maxFreeTextLength {
		return nil, apperr.Validation(op, "reporter_contact exceeds %d characters", maxFreeTextLength)
	}

	linked, err := v.linked(id, req.LinkedAccounts)
	if err != nil {
		return nil, err
	}
	accounts := make([]model.LinkedAccount, len(linked))
	for i, l := range linked {
		accounts[i] = l.Account
	}

	hashes, err := Hashes(req.AttachmentHashes)
	if err != nil {
		return nil, err
	}

	return &model.CommunityReport{
		EntityType:       id.Type,
		EntityValue:      id.Value,
		EntityKey:        id.Key,
		Category:         category,
		Description:      desc,
		Amount:           req.Amount,
		EvidenceURL:      evidenceURL,
		ReporterContact:  strings.TrimSpace(req.ReporterContact),
		AttachmentHashes: hashes,
		LinkedAccounts:   accounts,
		Status:           model.StatusPending,
	}, nil
}

// Hashes lowercases, deduplicates and checks content hashes
func Hashes(in []string) ([]string, error) {
	const op = "validate.attachments"

	if len(in) > MaxAttachments {
		return nil, apperr.Validation(op, "at most %d attachments are allowed", MaxAttachments)
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, h := range in {
		h = strings.ToLower(strings.TrimSpace(h))
		if !evidence.ValidHash(h) {
			return nil, apperr.Validation(op, "attachment %q is not a sha256 hash", h)
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, nil
}

// InferPlatform guesses the platform of a linked account submitted without one
func InferPlatform(value string) model.EntityType {
	v := strings.TrimSpace(value)
	if strings.Contains(v, "@") && !strings.Contains(v, "/") && !strings.HasPrefix(v, "@") {
		return model.EntityEmail
	}
	digits, other := 0, 0
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-() .", r):
		default:
			other++
		}
	}
	if digits >= 6 && other == 0 {
		return model.EntityPhone
	}
	host := strings.ToLower(entity.Host(v))
	if host == "" {
		host = strings.ToLower(entity.Host("https://" + v))
	}
	host = strings.TrimPrefix(host, "www.")
	for _, t := range model.EntityTypes {
		if t.URLBearing() && !t.SelfHosted() && strings.HasPrefix(host, string(t)+".") {
			return t
		}
	}
	return model.EntityWebsite
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
