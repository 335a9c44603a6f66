package assessor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raysh454/reconai/internal/model"
)

// features is what the rules see: numeric values per rule id plus the
// evidence strings behind them.
type features struct {
	values       map[string]float64
	details      map[string][]string
	surface      map[string][]string
	correlations []string
}

func newFeatures() *features {
	return &features{
		values:  map[string]float64{},
		details: map[string][]string{},
		surface: map[string][]string{},
	}
}

func (f *features) add(rule string, v float64, detail ...string) {
	if v == 0 {
		return
	}
	f.values[rule] += v
	f.details[rule] = append(f.details[rule], detail...)
}

func (f *features) expose(kind string, items ...string) {
	for _, it := range items {
		if it != "" {
			f.surface[kind] = append(f.surface[kind], it)
		}
	}
}

type extractor func(p payload, f *features)

// extractors know the payload shape of each built-in module. Unknown modules
// are ignored.
var extractors = map[string]extractor{
	"domain":  extractDomain,
	"web":     extractWeb,
	"network": extractNetwork,
	"threat":  extractThreat,
	"social":  extractSocial,
	"person":  extractPerson,
}

// extract walks successful outcomes in result order.
func extract(result *model.ScanResult) *features {
	f := newFeatures()
	payloads := map[string]payload{}
	for _, o := range result.Modules.Outcomes() {
		if o.Status != model.OutcomeSuccess {
			continue
		}
		p := decode(o.Data)
		if p == nil {
			continue
		}
		payloads[o.Module] = p
		if ex, ok := extractors[o.Module]; ok {
			ex(p, f)
		}
	}
	f.correlate(payloads)
	for k := range f.surface {
		f.surface[k] = uniqueSorted(f.surface[k])
	}
	return f
}

func extractDomain(p payload, f *features) {
	for _, zt := range p.objs("zone_transfer") {
		if zt.boolean("allowed") {
			f.add("zone_transfer_allowed", 1, zt.str("nameserver"))
		}
	}
	subs := p.objs("subdomains")
	for _, s := range subs {
		f.expose("subdomains", s.str("name"))
	}
	f.add("subdomains_exposed", float64(len(subs)), fmt.Sprintf("%d subdomains", len(subs)))

	f.expose("ip_addresses", p.strs("ip_addresses")...)
	f.expose("ip_addresses", p.strs("ipv6_addresses")...)
	f.expose("nameservers", p.strs("nameservers")...)
	for _, mx := range p.objs("mail_servers") {
		f.expose("mail_servers", mx.str("host"))
	}
}

func extractWeb(p payload, f *features) {
	if _, ok := p["https"]; ok && !p.boolean("https") {
		f.add("https_missing", 1, p.str("url"))
	}
	if tls := p.obj("tls"); tls != nil {
		days := tls.num("days_remaining")
		switch {
		case tls.boolean("expired"):
			f.add("tls_expired", 1, "expired "+tls.str("not_after"))
		case days < 30:
			f.add("tls_expiring", 1, fmt.Sprintf("%.0f days remaining", days))
		}
	}
	if sh := p.obj("security_headers"); sh != nil {
		missing := sh.strs("missing")
		f.add("security_headers_missing", float64(len(missing)), missing...)
	}
	for _, key := range []string{"server", "powered_by"} {
		if v := p.str(key); strings.ContainsAny(v, "0123456789") {
			f.add("technology_disclosed", 1, v)
		}
	}
	f.expose("technologies", p.strs("technologies")...)
}

func extractNetwork(p payload, f *features) {
	for _, op := range p.objs("open_ports") {
		port := int(op.num("port"))
		label := fmt.Sprintf("%d/%s", port, op.str("service"))
		f.expose("open_ports", label)
		if _, risky := riskyPorts[port]; risky {
			f.add("risky_port_open", 1, label)
			continue
		}
		f.add("port_open", 1, label)
	}
}

func extractThreat(p payload, f *features) {
	breaches := p.strs("breaches")
	f.add("breaches_found", float64(len(breaches)), breaches...)
	if rep := p.obj("reputation"); rep != nil && strings.EqualFold(rep.str("status"), "suspicious") {
		f.add("reputation_suspicious", 1, rep.strs("matched_keywords")...)
	}
}

func extractSocial(p payload, f *features) {
	if gh := p.obj("github"); gh != nil {
		f.add("public_code_presence", gh.num("public_repos"), gh.str("login"))
		f.expose("social_profiles", "github:"+gh.str("login"))
	}
	profiles := p.obj("profiles")
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if pr, ok := profiles[name].(map[string]any); ok && payload(pr).boolean("found") {
			f.expose("social_profiles", name+":"+payload(pr).str("url"))
		}
	}
}

func extractPerson(p payload, f *features) {
	sources := p.objs("sources")
	for _, s := range sources {
		f.expose("record_sources", s.str("category")+":"+s.str("name"))
	}
	f.add("person_record_sources", float64(len(sources)), fmt.Sprintf("%d sources", len(sources)))
	if dob := p.str("dob"); dob != "" {
		f.add("person_dob_known", 1, dob)
	}
	if !p.boolean("state_valid") {
		f.add("person_state_unverified", 1, p.str("state"))
	}
}

func (f *features) correlate(payloads map[string]payload) {
	if f.values["zone_transfer_allowed"] > 0 && f.values["subdomains_exposed"] > 0 {
		f.correlations = append(f.correlations,
			"Zone transfer and subdomain probing both expose internal host names.")
	}
	if f.values["breaches_found"] > 0 && f.values["public_code_presence"] > 0 {
		f.correlations = append(f.correlations,
			"Breached organisation maintains public code repositories; check them for leaked credentials.")
	}
	dom, net := payloads["domain"], payloads["network"]
	if dom != nil && net != nil {
		ip := net.str("ip")
		for _, a := range dom.strs("ip_addresses") {
			if a == ip && ip != "" {
				f.correlations = append(f.correlations,
					fmt.Sprintf("Port scan host %s is the domain's A record; exposed services belong to the primary site.", ip))
				break
			}
		}
	}
	if f.values["technology_disclosed"] > 0 && f.values["port_open"]+f.values["risky_port_open"] > 0 {
		f.correlations = append(f.correlations,
			"Server versions are disclosed over HTTP while additional service ports are open.")
	}
}

func uniqueSorted(xs []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	sort.Strings(out)
	return out
}
