package utils

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var ErrInvalidDomain = errors.New("invalid domain")

// NormalizeDomain turns user input such as "https://WWW.Example.com/path" or
// "bücher.example." into a lowercase ASCII host name. IP addresses are
// rejected.
func NormalizeDomain(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	s = strings.TrimSuffix(strings.ToLower(s), ".")
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	if net.ParseIP(s) != nil {
		return "", fmt.Errorf("%w: %q is an IP address", ErrInvalidDomain, raw)
	}

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}
	if !strings.Contains(ascii, ".") || len(ascii) > 253 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	for _, label := range strings.Split(ascii, ".") {
		if !validLabel(label) {
			return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
		}
	}
	return ascii, nil
}

func validLabel(l string) bool {
	if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for _, r := range l {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// RegistrableDomain returns the public suffix plus one label, e.g.
// "shop.example.co.uk" gives "example.co.uk".
func RegistrableDomain(host string) (string, error) {
	d, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(strings.ToLower(host), "."))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return d, nil
}

// OrgName guesses an organisation handle from a host: the first label of its
// registrable domain. It falls back to the host's first label.
func OrgName(host string) string {
	d, err := RegistrableDomain(host)
	if err != nil {
		d = host
	}
	name, _, _ := strings.Cut(d, ".")
	return name
}
