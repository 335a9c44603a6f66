package utils_test

import (
	"errors"
	"testing"

	"github.com/raysh454/reconai/internal/utils"
)

// ─── Domains ───────────────────────────────────────────────────────────

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"  Example.COM.  ", "example.com"},
		{"https://WWW.Example.com/path?q=1", "www.example.com"},
		{"user@host.example.org:8080", "host.example.org"},
		{"bücher.example", "xn--bcher-kva.example"},
	}
	for _, tt := range tests {
		got, err := utils.NormalizeDomain(tt.in)
		if err != nil {
			t.Fatalf("NormalizeDomain(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDomain_Rejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "localhost", "93.184.216.34", "-bad.example", "exa mple.com"} {
		if _, err := utils.NormalizeDomain(in); !errors.Is(err, utils.ErrInvalidDomain) {
			t.Errorf("NormalizeDomain(%q): expected ErrInvalidDomain, got %v", in, err)
		}
	}
}

func TestRegistrableDomainAndOrgName(t *testing.T) {
	t.Parallel()
	d, err := utils.RegistrableDomain("shop.example.co.uk")
	if err != nil {
		t.Fatalf("RegistrableDomain: %v", err)
	}
	if d != "example.co.uk" {
		t.Errorf("expected example.co.uk, got %q", d)
	}

	tests := map[string]string{
		"api.github.com":  "github",
		"example.co.uk":   "example",
		"www.Example.com": "example",
		"localhost":       "localhost",
	}
	for host, want := range tests {
		if got := utils.OrgName(host); got != want {
			t.Errorf("OrgName(%q) = %q, want %q", host, got, want)
		}
	}
}

// ─── URLTools ──────────────────────────────────────────────────────────

func TestNewURLTools_Normalizes(t *testing.T) {
	t.Parallel()
	u, err := utils.NewURLTools("HTTPS://EXAMPLE.COM:443/Page/#section")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}
	if u.String() != "https://example.com/Page" {
		t.Errorf("unexpected normalized url %q", u.String())
	}
}

func TestURLTools_SameHost(t *testing.T) {
	t.Parallel()
	a, _ := utils.NewURLTools("https://example.com/a")
	b, _ := utils.NewURLTools("http://example.com:8080/b")
	c, _ := utils.NewURLTools("https://other.com/a")

	if !a.SameHost(b) {
		t.Error("expected same host for example.com urls")
	}
	if a.SameHost(c) {
		t.Error("expected different host for example.com vs other.com")
	}
}

func TestURLTools_Resolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		base, ref, want string
	}{
		{"https://example.com/app/page", "../login", "https://example.com/login"},
		{"https://example.com/app/page", "/static/", "https://example.com/static"},
		{"https://example.com", "about", "https://example.com/about"},
		{"https://example.com/x", "https://other.com/y#frag", "https://other.com/y"},
	}
	for _, tt := range tests {
		base, err := utils.NewURLTools(tt.base)
		if err != nil {
			t.Fatalf("NewURLTools(%q): %v", tt.base, err)
		}
		got, err := base.Resolve(tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q, %q): %v", tt.base, tt.ref, err)
		}
		if got.String() != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.ref, got.String(), tt.want)
		}
	}

	base, _ := utils.NewURLTools("https://example.com")
	if _, err := base.Resolve("mailto:someone@example.com"); err == nil {
		t.Error("expected error for mailto reference")
	}
}

// ─── Canonicalize ──────────────────────────────────────────────────────

func TestCanonicalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		opts utils.CanonicalizeOptions
		want string
	}{
		{
			in:   "HTTP://Example.COM:80/foo/../bar/?b=2&a=1#frag",
			want: "http://example.com/bar/?a=1&b=2",
		},
		{
			in:   "https://example.com:443/index.html#section",
			want: "https://example.com/index.html",
		},
		{
			in:   "example.com/page?utm_source=x&utm_medium=y&z=1",
			opts: utils.CanonicalizeOptions{DefaultScheme: "https", DropTrackingParams: true},
			want: "https://example.com/page?z=1",
		},
		{
			in:   "https://例え.テスト/a",
			want: "https://xn--r8jz45g.xn--zckzah/a",
		},
		{
			in:   "https://example.com/foo/",
			opts: utils.CanonicalizeOptions{StripTrailingSlash: true},
			want: "https://example.com/foo",
		},
		{
			in:   "https://user:pw@example.com:8443/x",
			want: "https://example.com:8443/x",
		},
	}
	for _, tt := range tests {
		got, err := utils.Canonicalize(tt.in, tt.opts)
		if err != nil {
			t.Fatalf("Canonicalize(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize_Errors(t *testing.T) {
	t.Parallel()
	if _, err := utils.Canonicalize("  ", utils.CanonicalizeOptions{}); !errors.Is(err, utils.ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
	if _, err := utils.Canonicalize("/relative/path", utils.CanonicalizeOptions{}); !errors.Is(err, utils.ErrMissingHost) {
		t.Errorf("expected ErrMissingHost, got %v", err)
	}
}
