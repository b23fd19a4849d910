package footprint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ppiankov/riskcheck/internal/entity"
	"github.com/ppiankov/riskcheck/internal/model"
)

// MXResolver resolves mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXSignal reports whether the email's domain can receive mail. An MX record
// does not prove the mailbox exists.
func MXSignal(ctx context.Context, resolver MXResolver, email string) model.Signal {
	sig := model.Signal{
		Name:   "Email domain",
		Status: model.TierUnknown,
		Source: model.SourceFootprint,
		Weight: 1,
	}

	domain := entity.EmailDomain(email)
	if domain == "" {
		sig.Note = "Email domain unavailable"
		return sig
	}
	sig.Meta = map[string]interface{}{"domain": domain}

	records, err := resolver.LookupMX(ctx, domain)
	var dnsErr *net.DNSError
	switch {
	case err == nil && len(records) > 0:
		hosts := make([]string, 0, 3)
		for _, mx := range records {
			if len(hosts) == 3 {
				break
			}
			hosts = append(hosts, strings.TrimSuffix(mx.Host, "."))
		}
		sig.Status = model.TierLow
		sig.Note = fmt.Sprintf("Email domain has MX record(s): %s", strings.Join(hosts, ", "))
	case err == nil, errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		sig.Status = model.TierMedium
		sig.Note = "Email domain has no MX records"
	default:
		sig.Note = "MX lookup unavailable"
	}
	return sig
}

// PhoneSignal checks number format. A well-formed number says nothing about
// who owns it, so valid numbers stay Unknown.
func PhoneSignal(normalizer *entity.Normalizer, phone string) model.Signal {
	sig := model.Signal{
		Name:   "Phone number format",
		Source: model.SourceFootprint,
		Weight: 1,
	}

	valid, region := normalizer.PhoneValid(phone)
	if !valid {
		sig.Status = model.TierMedium
		sig.Note = "Phone number is not a valid number for any region"
		return sig
	}
	sig.Status = model.TierUnknown
	sig.Note = fmt.Sprintf("Valid number (%s); format alone does not verify the seller", region)
	sig.Meta = map[string]interface{}{"region": region}
	return sig
}
