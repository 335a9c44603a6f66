// Package domain implements the DNS and registration intelligence module.
package domain

import (
	"context"
	"errors"
	"net"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/utils"
)

const Name = "domain"

// recordTypes are queried for the target itself, in this order.
var recordTypes = []uint16{
	dns.TypeA, dns.TypeAAAA, dns.TypeMX, dns.TypeNS, dns.TypeTXT, dns.TypeSOA, dns.TypeCNAME,
}

type Report struct {
	Domain        string              `json:"domain"`
	Records       map[string][]string `json:"records"`
	IPAddresses   []string            `json:"ip_addresses"`
	IPv6Addresses []string            `json:"ipv6_addresses"`
	Nameservers   []string            `json:"nameservers"`
	MailServers   []MailServer        `json:"mail_servers"`
	Subdomains    []Subdomain         `json:"subdomains"`
	ReverseDNS    []ReverseRecord     `json:"reverse_dns"`
	ZoneTransfer  []ZoneTransfer      `json:"zone_transfer,omitempty"`
	Whois         *Whois              `json:"whois,omitempty"`
	// Errors holds sub-lookup failures keyed by lookup, e.g. "MX" or "whois".
	Errors map[string]string `json:"errors,omitempty"`
}

type MailServer struct {
	Host       string `json:"host"`
	Preference uint16 `json:"preference"`
}

type Subdomain struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
}

type ReverseRecord struct {
	IP    string   `json:"ip"`
	Names []string `json:"names"`
}

type ZoneTransfer struct {
	Nameserver string   `json:"nameserver"`
	Allowed    bool     `json:"allowed"`
	Records    int      `json:"records,omitempty"`
	Hosts      []string `json:"hosts,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Module queries a single recursive resolver with miekg/dns. It holds no
// per-scan state.
type Module struct {
	cfg      config.DomainModuleConfig
	logger   logging.Logger
	resolver *resolver
	dialer   *net.Dialer

	// transferAddr maps a nameserver host to the address AXFR is attempted on.
	transferAddr func(ns string) string
}

func New(cfg config.DomainModuleConfig, logger logging.Logger) *Module {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if cfg.SubdomainWorkers <= 0 {
		cfg.SubdomainWorkers = 8
	}
	if cfg.Subdomains == nil {
		cfg.Subdomains = config.DefaultSubdomains
	}
	return &Module{
		cfg:      cfg,
		logger:   logger.With(logging.Component("intel.domain")),
		resolver: newResolver(cfg.Resolver, cfg.QueryTimeout),
		dialer:   &net.Dialer{Timeout: cfg.QueryTimeout},
		transferAddr: func(ns string) string {
			return net.JoinHostPort(strings.TrimSuffix(ns, "."), "53")
		},
	}
}

func (m *Module) Name() string { return Name }

// Gather fails only on an invalid target or a finished context. Every other
// lookup failure is recorded in Report.Errors.
func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, _ module.Options) (any, error) {
	domain, err := utils.NormalizeDomain(target)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Domain:        domain,
		Records:       map[string][]string{},
		IPAddresses:   []string{},
		IPv6Addresses: []string{},
		Nameservers:   []string{},
		MailServers:   []MailServer{},
		Subdomains:    []Subdomain{},
		ReverseDNS:    []ReverseRecord{},
	}
	errs := map[string]string{}

	for _, qt := range recordTypes {
		key := dns.TypeToString[qt]
		rrs, err := m.resolver.query(ctx, domain, qt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs[key] = err.Error()
			continue
		}
		r.collect(qt, rrs)
	}

	r.Subdomains = m.probeSubdomains(ctx, domain)
	r.ReverseDNS = m.reverse(ctx, r.IPAddresses, errs)

	if m.cfg.AttemptTransfer {
		for _, ns := range r.Nameservers {
			if ctx.Err() != nil {
				break
			}
			r.ZoneTransfer = append(r.ZoneTransfer, m.transfer(domain, ns))
		}
	}

	if m.cfg.WhoisServer != "" {
		w, err := m.whois(ctx, domain)
		if err != nil {
			errs["whois"] = err.Error()
		}
		r.Whois = w
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		r.Errors = errs
	}
	m.logger.Debug("domain lookup finished",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "ips", Value: len(r.IPAddresses)},
		logging.Field{Key: "subdomains", Value: len(r.Subdomains)},
		logging.Field{Key: "lookup_errors", Value: len(errs)},
	)
	return r, nil
}

func (r *Report) collect(qt uint16, rrs []dns.RR) {
	key := dns.TypeToString[qt]
	for _, rr := range rrs {
		if rr.Header().Rrtype != qt {
			continue
		}
		r.Records[key] = append(r.Records[key], rrValue(rr))
		switch v := rr.(type) {
		case *dns.A:
			r.IPAddresses = append(r.IPAddresses, v.A.String())
		case *dns.AAAA:
			r.IPv6Addresses = append(r.IPv6Addresses, v.AAAA.String())
		case *dns.NS:
			r.Nameservers = append(r.Nameservers, trimDot(v.Ns))
		case *dns.MX:
			r.MailServers = append(r.MailServers, MailServer{Host: trimDot(v.Mx), Preference: v.Preference})
		}
	}
	if qt == dns.TypeMX {
		sort.SliceStable(r.MailServers, func(i, j int) bool {
			return r.MailServers[i].Preference < r.MailServers[j].Preference
		})
	}
}

// probeSubdomains resolves word.domain for each configured word. Results keep
// word-list order; names that do not resolve are dropped.
func (m *Module) probeSubdomains(ctx context.Context, domain string) []Subdomain {
	found := make([]*Subdomain, len(m.cfg.Subdomains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.SubdomainWorkers)
	for i, word := range m.cfg.Subdomains {
		name := word + "." + domain
		g.Go(func() error {
			rrs, err := m.resolver.query(gctx, name, dns.TypeA)
			if err != nil {
				return nil
			}
			var addrs []string
			for _, rr := range rrs {
				if a, ok := rr.(*dns.A); ok {
					addrs = append(addrs, a.A.String())
				}
			}
			if len(addrs) > 0 {
				found[i] = &Subdomain{Name: name, Addresses: addrs}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := []Subdomain{}
	for _, s := range found {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (m *Module) reverse(ctx context.Context, ips []string, errs map[string]string) []ReverseRecord {
	limit := m.cfg.ReverseLimit
	if limit <= 0 || limit > len(ips) {
		limit = len(ips)
	}
	out := []ReverseRecord{}
	for _, ip := range ips[:limit] {
		arpa, err := dns.ReverseAddr(ip)
		if err != nil {
			continue
		}
		rrs, err := m.resolver.query(ctx, arpa, dns.TypePTR)
		if errors.Is(err, ErrNXDomain) {
			continue
		}
		if err != nil {
			errs["PTR "+ip] = err.Error()
			continue
		}
		var names []string
		for _, rr := range rrs {
			if p, ok := rr.(*dns.PTR); ok {
				names = append(names, trimDot(p.Ptr))
			}
		}
		if len(names) > 0 {
			out = append(out, ReverseRecord{IP: ip, Names: names})
		}
	}
	return out
}

// transfer attempts AXFR against one nameserver. A refusal is the expected
// outcome and is reported as Allowed=false.
func (m *Module) transfer(domain, ns string) ZoneTransfer {
	zt := ZoneTransfer{Nameserver: ns}
	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))
	tr := &dns.Transfer{
		DialTimeout:  m.cfg.QueryTimeout,
		ReadTimeout:  m.cfg.QueryTimeout,
		WriteTimeout: m.cfg.QueryTimeout,
	}
	ch, err := tr.In(msg, m.transferAddr(ns))
	if err != nil {
		zt.Error = err.Error()
		return zt
	}

	hosts := map[string]struct{}{}
	for env := range ch {
		if env.Error != nil {
			zt.Error = env.Error.Error()
			continue
		}
		for _, rr := range env.RR {
			zt.Records++
			name := trimDot(rr.Header().Name)
			if name != domain && strings.HasSuffix(name, "."+domain) {
				hosts[name] = struct{}{}
			}
		}
	}
	if zt.Error == "" && zt.Records > 0 {
		zt.Allowed = true
		for h := range hosts {
			zt.Hosts = append(zt.Hosts, h)
		}
		slices.Sort(zt.Hosts)
	}
	return zt
}
