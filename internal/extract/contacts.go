// Package extract pulls contact details out of fetched seller pages.
package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// maxPerKind caps each list in Contacts
const maxPerKind = 10

var (
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`)
)

// Contacts is what a page exposes about how to reach the seller
type Contacts struct {
	Emails []string `json:"emails,omitempty"`
	Phones []string `json:"phones,omitempty"`
	Links  []string `json:"links,omitempty"` // Outbound http(s) links to other hosts
}

// Empty reports whether no email or phone was found. Links alone do not count.
func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0
}

// ContactExtractor extracts contact details from HTML
type ContactExtractor struct{}

// NewContactExtractor creates a new contact extractor
func NewContactExtractor() *ContactExtractor {
	return &ContactExtractor{}
}

// Extract walks the document for mailto:/tel: anchors and scans visible text
// for email addresses and phone numbers
func (e *ContactExtractor) Extract(htmlContent string, sourceURL string) (Contacts, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return Contacts{}, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return Contacts{}, err
	}

	emails := make(map[string]bool)
	phones := make(map[string]bool)
	links := make(map[string]bool)
	var text strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			// Script and style bodies are not visible text
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if n.Data == "a" {
				collectAnchor(n, baseURL, emails, phones, links)
			}
		case html.TextNode:
			text.WriteString(n.Data)
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	found := ExtractText(text.String())
	for _, em := range found.Emails {
		emails[em] = true
	}
	for _, ph := range found.Phones {
		phones[ph] = true
	}

	return Contacts{
		Emails: limit(emails),
		Phones: limit(phones),
		Links:  limit(links),
	}, nil
}

// ExtractText finds emails and phone numbers in plain text
func ExtractText(text string) Contacts {
	emails := make(map[string]bool)
	for _, m := range emailPattern.FindAllString(text, -1) {
		emails[strings.ToLower(m)] = true
	}
	phones := make(map[string]bool)
	for _, m := range phonePattern.FindAllString(text, -1) {
		if p := cleanPhone(m); p != "" {
			phones[p] = true
		}
	}
	return Contacts{Emails: limit(emails), Phones: limit(phones)}
}

// collectAnchor records mailto:, tel: and off-site links from an <a> element
func collectAnchor(n *html.Node, base *url.URL, emails, phones, links map[string]bool) {
	href := ""
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
		}
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return
	}

	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		addr := href[len("mailto:"):]
		if i := strings.Index(addr, "?"); i >= 0 {
			addr = addr[:i]
		}
		if unescaped, err := url.PathUnescape(addr); err == nil {
			addr = unescaped
		}
		if emailPattern.MatchString(addr) {
			emails[strings.ToLower(strings.TrimSpace(addr))] = true
		}
	case strings.HasPrefix(lower, "tel:"):
		if p := cleanPhone(href[len("tel:"):]); p != "" {
			phones[p] = true
		}
	default:
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			links[resolved.String()] = true
		}
	}
}

// cleanPhone keeps a leading plus and the digits; short runs are dropped
func cleanPhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 7 || len(digits) > 15 {
		return ""
	}
	return b.String()
}

// limit returns up to maxPerKind sorted keys
func limit(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > maxPerKind {
		out = out[:maxPerKind]
	}
	return out
}
