package domain

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Whois is the registration data parsed from a port 43 response.
type Whois struct {
	Server       string   `json:"server"`
	Registrar    string   `json:"registrar,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	ExpiresAt    string   `json:"expires_at,omitempty"`
	NameServers  []string `json:"name_servers,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Country      string   `json:"country,omitempty"`
}

const maxWhoisResponse = 1 << 20

// whoisField maps the many registry spellings of a key onto one field name.
func whoisField(key string) (string, bool) {
	switch key {
	case "registrar", "sponsoring registrar":
		return "registrar", true
	case "creation date", "created", "registered on":
		return "created", true
	case "updated date", "last updated", "changed":
		return "updated", true
	case "registry expiry date", "registrar registration expiration date", "expiration date", "expiry date", "paid-till":
		return "expires", true
	case "name server", "nserver":
		return "nserver", true
	case "registrant organization", "registrant organisation", "org":
		return "org", true
	case "registrant country", "country":
		return "country", true
	}
	return "", false
}

// whois asks the configured server first. When that answer names a referral
// the referred server is queried and only its answer is parsed.
func (m *Module) whois(ctx context.Context, domain string) (*Whois, error) {
	server := m.cfg.WhoisServer
	body, err := m.whoisQuery(ctx, server, domain)
	if err != nil {
		return nil, err
	}
	if ref := referral(body); ref != "" && ref != server {
		refBody, err := m.whoisQuery(ctx, ref, domain)
		if err != nil {
			w := parseWhois(body)
			w.Server = server
			return w, fmt.Errorf("referral %s: %w", ref, err)
		}
		server, body = ref, refBody
	}
	w := parseWhois(body)
	w.Server = server
	return w, nil
}

func (m *Module) whoisQuery(ctx context.Context, server, query string) (string, error) {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "43")
	}
	conn, err := m.dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return "", fmt.Errorf("whois dial %s: %w", server, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	_ = conn.SetDeadline(time.Now().Add(2 * m.cfg.QueryTimeout))

	if _, err := fmt.Fprintf(conn, "%s\r\n", query); err != nil {
		return "", fmt.Errorf("whois write %s: %w", server, err)
	}
	body, err := io.ReadAll(io.LimitReader(conn, maxWhoisResponse))
	if err != nil {
		return "", fmt.Errorf("whois read %s: %w", server, err)
	}
	return string(body), nil
}

func referral(body string) string {
	for key, value := range whoisLines(body) {
		if key == "refer" || key == "whois" || key == "registrar whois server" {
			return strings.TrimPrefix(strings.TrimPrefix(value, "whois://"), "rwhois://")
		}
	}
	return ""
}

func parseWhois(body string) *Whois {
	w := &Whois{}
	seen := map[string]bool{}
	for key, value := range whoisLines(body) {
		field, ok := whoisField(key)
		if !ok {
			continue
		}
		if field == "nserver" {
			ns := strings.ToLower(strings.TrimSuffix(strings.Fields(value)[0], "."))
			if !seen["ns:"+ns] {
				seen["ns:"+ns] = true
				w.NameServers = append(w.NameServers, ns)
			}
			continue
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		switch field {
		case "registrar":
			w.Registrar = value
		case "created":
			w.CreatedAt = value
		case "updated":
			w.UpdatedAt = value
		case "expires":
			w.ExpiresAt = value
		case "org":
			w.Organization = value
		case "country":
			w.Country = value
		}
	}
	return w
}

// whoisLines yields "key: value" pairs with lowercased keys. Comment lines
// and lines without a value are skipped.
func whoisLines(body string) func(yield func(string, string) bool) {
	return func(yield func(string, string) bool) {
		sc := bufio.NewScanner(strings.NewReader(body))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || line[0] == '%' || line[0] == '#' || strings.HasPrefix(line, ">>>") {
				continue
			}
			key, value, ok := strings.Cut(line, ":")
			value = strings.TrimSpace(value)
			if !ok || value == "" {
				continue
			}
			if !yield(strings.ToLower(strings.TrimSpace(key)), value) {
				return
			}
		}
	}
}
