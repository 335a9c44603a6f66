// Package utils holds host, domain and URL helpers shared by the
// intelligence modules and the crawler.
package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)

// URLTools wraps a parsed URL normalized for same-site comparisons:
// lowercase scheme and host, no fragment, no default port, no trailing slash.
type URLTools struct {
	URL *url.URL
}

func NewURLTools(raw string) (*URLTools, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse url %s: %w", raw, err)
	}
	t := &URLTools{URL: u}
	t.normalize()
	return t, nil
}

func (u *URLTools) normalize() {
	u.URL.Fragment = ""
	u.URL.RawFragment = ""
	u.URL.Scheme = strings.ToLower(u.URL.Scheme)
	u.URL.Host = strings.ToLower(u.URL.Host)

	if port := u.URL.Port(); (u.URL.Scheme == "http" && port == "80") || (u.URL.Scheme == "https" && port == "443") {
		u.URL.Host = u.URL.Hostname()
	}
	u.URL.Path = strings.TrimRight(u.URL.Path, "/")
}

// SameHost reports whether both URLs point at the same host name.
func (u *URLTools) SameHost(other *URLTools) bool {
	return u.URL.Hostname() == other.URL.Hostname()
}

// Resolve resolves ref against u and returns the normalized absolute URL.
// Only http and https results are accepted.
func (u *URLTools) Resolve(ref string) (*URLTools, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse reference %s: %w", ref, err)
	}
	base := *u.URL
	if base.Path == "" {
		base.Path = "/"
	}
	abs := base.ResolveReference(r)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %s", abs.Scheme, ref)
	}
	out := &URLTools{URL: abs}
	out.normalize()
	return out, nil
}

func (u *URLTools) String() string { return u.URL.String() }

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams bool   // remove utm_*, gclid, fbclid and friends
	StripTrailingSlash bool   // treat /a and /a/ the same (root "/" is kept)
	DefaultScheme      string // assumed for schemeless input; empty requires a scheme
}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// Canonicalize returns a deterministic form of raw: punycode host, no
// credentials, cleaned path, sorted query and no fragment.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingHost, raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	switch port := u.Port(); {
	case port == "", u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	p := path.Clean("/" + u.Path)
	if strings.HasSuffix(u.Path, "/") && p != "/" && !opts.StripTrailingSlash {
		p += "/"
	}
	u.Path = p
	u.RawPath = ""

	q := u.Query()
	if opts.DropTrackingParams {
		for k := range q {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				q.Del(k)
			}
		}
	}
	for _, vs := range q {
		sort.Strings(vs)
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	return u.String(), nil
}
