// Package entity normalizes seller identifiers into stable identity keys.
package entity

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/ppiankov/riskcheck/internal/apperr"
	"github.com/ppiankov/riskcheck/internal/model"
)

// MaxValueLength bounds any identifier accepted from callers
const MaxValueLength = 2048

// DefaultRegion is used to parse phone numbers written without a country code
const DefaultRegion = "PK"

// Identity is a normalized identifier and its exact-match key
type Identity struct {
	Type  model.EntityType
	Value string // Display form; URLs always carry a scheme
	Key   string // Identity key used for report and image matching
}

// Ref returns the identity as an entity reference
func (i Identity) Ref() model.EntityRef {
	return model.EntityRef{Type: i.Type, Key: i.Key}
}

// profileBases maps social platforms to the URL a bare handle lives under
var profileBases = map[model.EntityType]string{
	model.EntityFacebook:  "https://www.facebook.com/",
	model.EntityInstagram: "https://www.instagram.com/",
	model.EntityTikTok:    "https://www.tiktok.com/@",
}

// Normalizer turns raw identifiers into identities
type Normalizer struct {
	region string
}

// NewNormalizer creates a normalizer; region is the default phone region (ISO 3166 alpha-2)
func NewNormalizer(region string) *Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: strings.ToUpper(region)}
}

// Normalize validates and normalizes one identifier
func (n *Normalizer) Normalize(entityType model.EntityType, raw string) (Identity, error) {
	const op = "entity.normalize"

	value := strings.TrimSpace(raw)
	if value == "" {
		return Identity{}, apperr.Validation(op, "entity value is required")
	}
	if len(value) > MaxValueLength {
		return Identity{}, apperr.Validation(op, "entity value exceeds %d characters", MaxValueLength)
	}
	if !entityType.Valid() {
		return Identity{}, apperr.Validation(op, "unsupported entity type %q", entityType)
	}

	switch {
	case entityType.PhoneBearing():
		e164, err := n.NormalizePhone(value)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Type: entityType, Value: e164, Key: e164}, nil

	case entityType == model.EntityEmail:
		email, err := NormalizeEmail(value)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Type: entityType, Value: email, Key: email}, nil

	default:
		u, err := NormalizeURL(entityType, value)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Type: entityType, Value: u.String(), Key: urlKey(u)}, nil
	}
}

// NormalizePhone parses a phone number and returns its E.164 form
func (n *Normalizer) NormalizePhone(raw string) (string, error) {
	const op = "entity.phone"

	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 6 {
		return "", apperr.Validation(op, "phone number needs at least 6 digits")
	}

	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", apperr.Validation(op, "not a phone number: %v", err)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// PhoneValid reports whether an E.164 number is assigned in its numbering plan
func (n *Normalizer) PhoneValid(e164 string) (valid bool, region string) {
	num, err := phonenumbers.Parse(e164, n.region)
	if err != nil {
		return false, ""
	}
	return phonenumbers.IsValidNumber(num), phonenumbers.GetRegionCodeForNumber(num)
}

// NormalizeEmail lowercases and validates an email address
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || !strings.Contains(addr.Address, "@") {
		return "", apperr.Validation("entity.email", "not an email address")
	}
	email := strings.ToLower(addr.Address)
	if at := strings.LastIndex(email, "@"); at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return "", apperr.Validation("entity.email", "email domain is incomplete")
	}
	return email, nil
}

// EmailDomain returns the part after the last @
func EmailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}

// NormalizeURL turns a URL or social handle into an absolute http(s) URL.
// A value without a scheme gets https:// when it looks like a host or path;
// bare handles on social platforms are expanded to the profile URL.
func NormalizeURL(entityType model.EntityType, raw string) (*url.URL, error) {
	const op = "entity.url"

	value := strings.TrimSpace(raw)
	if !strings.Contains(value, "://") {
		switch {
		case profileBases[entityType] != "" && !strings.ContainsAny(value, "./"):
			value = profileBases[entityType] + strings.TrimPrefix(value, "@")
		case strings.ContainsAny(value, "./"):
			value = "https://" + value
		default:
			return nil, apperr.Validation(op, "%s value must be a web address", entityType)
		}
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, apperr.Validation(op, "malformed URL")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.Validation(op, "URL scheme must be http or https")
	}
	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == "" {
		return nil, apperr.Validation(op, "URL has no host")
	}
	if strings.Contains(u.Hostname(), " ") {
		return nil, apperr.Validation(op, "URL host is malformed")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	return u, nil
}

// urlKey is host plus path, lowercased, without a leading www.
// Facebook numeric profiles are keyed by their id.
func urlKey(u *url.URL) string {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if strings.HasSuffix(host, "facebook.com") && strings.HasSuffix(strings.ToLower(u.Path), "/profile.php") {
		if id := u.Query().Get("id"); id != "" {
			return "facebook_profile_id:" + id
		}
	}
	return strings.ToLower(host + u.Path)
}

// FacebookKind is what a Facebook URL points at
type FacebookKind string

const (
	FacebookPage    FacebookKind = "page"
	FacebookProfile FacebookKind = "profile"
	FacebookGroup   FacebookKind = "group"
	FacebookUnknown FacebookKind = "unknown"
)

// KindOfFacebook classifies a normalized Facebook URL by its path. Anything
// that is not a group or a numeric profile is treated as a page.
func KindOfFacebook(value string) FacebookKind {
	u, err := url.Parse(value)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "facebook.com") {
		return FacebookUnknown
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.HasPrefix(path, "/groups/"):
		return FacebookGroup
	case strings.HasSuffix(path, "/profile.php"):
		return FacebookProfile
	default:
		return FacebookPage
	}
}

// Host returns the hostname of a normalized URL value, or "" for non-URLs
func Host(value string) string {
	u, err := url.Parse(value)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
