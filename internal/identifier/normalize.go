// Package identifier canonicalizes and tracks contact identifiers. A shared
// normalized identifier is the strongest deterministic matching signal, so
// everything upstream depends on normalization being stable and strict.
package identifier

import (
	"strings"

	dErrors "unify/pkg/domain-errors"
)

// Kind distinguishes identifier namespaces. Values never collide across kinds.
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEmail, KindPhone:
		return Kind(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown identifier kind: "+s)
	}
}

// Normalize canonicalizes a raw identifier. Malformed input is common in
// ingested data, so failures come back as a typed invalid result the caller
// can skip, never a panic or batch abort.
func Normalize(kind Kind, raw, defaultRegion string) (string, error) {
	switch kind {
	case KindEmail:
		return NormalizeEmail(raw)
	case KindPhone:
		return NormalizePhone(raw, defaultRegion)
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown identifier kind: "+string(kind))
	}
}

// NormalizeEmail lowercases and trims an email address. Validity here means
// comparable, not deliverable: one @, non-empty local part, domain with a dot.
func NormalizeEmail(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", invalid("empty email")
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at != strings.LastIndexByte(s, '@') {
		return "", invalid("email must contain exactly one @ with a local part")
	}
	domain := s[at+1:]
	if domain == "" || !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", invalid("email domain is malformed")
	}
	return s, nil
}

// NormalizePhone strips formatting and applies the deployment's default
// region prefix, producing +<digits>. A 10-digit national number gets the
// default region; an 11-digit number already carrying it passes through.
func NormalizePhone(raw, defaultRegion string) (string, error) {
	if defaultRegion == "" {
		defaultRegion = "1"
	}
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case d == "":
		return "", invalid("phone contains no digits")
	case len(d) == 10:
		return "+" + defaultRegion + d, nil
	case len(d) == len(defaultRegion)+10 && strings.HasPrefix(d, defaultRegion):
		return "+" + d, nil
	default:
		return "", invalid("phone has unexpected digit count")
	}
}

func invalid(msg string) error {
	return dErrors.New(dErrors.CodeInvalidInput, msg)
}
