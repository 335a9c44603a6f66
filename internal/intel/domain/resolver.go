package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var ErrNXDomain = errors.New("no such domain")

const fallbackResolver = "8.8.8.8:53"

// resolver sends single questions over UDP and retries truncated answers
// over TCP.
type resolver struct {
	addr string
	udp  *dns.Client
	tcp  *dns.Client
}

func newResolver(addr string, timeout time.Duration) *resolver {
	if addr == "" {
		addr = systemResolver()
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}
	return &resolver{
		addr: addr,
		udp:  &dns.Client{Net: "udp", Timeout: timeout},
		tcp:  &dns.Client{Net: "tcp", Timeout: timeout},
	}
}

func systemResolver() string {
	cc, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cc.Servers) == 0 {
		return fallbackResolver
	}
	return net.JoinHostPort(cc.Servers[0], cc.Port)
}

func (r *resolver) query(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	in, _, err := r.udp.ExchangeContext(ctx, msg, r.addr)
	if err == nil && in.Truncated {
		in, _, err = r.tcp.ExchangeContext(ctx, msg, r.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", dns.TypeToString[qtype], name, err)
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
		return in.Answer, nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%s %s: %w", dns.TypeToString[qtype], name, ErrNXDomain)
	default:
		return nil, fmt.Errorf("%s %s: %s", dns.TypeToString[qtype], name, dns.RcodeToString[in.Rcode])
	}
}

func rrValue(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.MX:
		return fmt.Sprintf("%d %s", v.Preference, trimDot(v.Mx))
	case *dns.NS:
		return trimDot(v.Ns)
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	case *dns.SOA:
		return fmt.Sprintf("%s %s %d %d %d %d %d",
			trimDot(v.Ns), trimDot(v.Mbox), v.Serial, v.Refresh, v.Retry, v.Expire, v.Minttl)
	case *dns.CNAME:
		return trimDot(v.Target)
	case *dns.PTR:
		return trimDot(v.Ptr)
	default:
		return rr.String()
	}
}

func trimDot(s string) string { return strings.ToLower(strings.TrimSuffix(s, ".")) }
