package assessor

// Rule is one scoring heuristic. A rule fires when its feature value is
// non-zero; it contributes value*Weight, capped at Max.
type Rule struct {
	ID             string
	Module         string
	Severity       string
	Title          string
	Weight         float64
	Max            float64
	Recommendation string
}

// Rules is evaluated in order, so findings and recommendations are stable.
var Rules = []Rule{
	// Domain
	{ID: "zone_transfer_allowed", Module: "domain", Severity: "critical", Title: "DNS zone transfer permitted",
		Weight: 25, Max: 25, Recommendation: "Restrict AXFR on every authoritative nameserver to known secondaries."},
	{ID: "subdomains_exposed", Module: "domain", Severity: "low", Title: "Guessable subdomains resolve publicly",
		Weight: 1, Max: 10, Recommendation: "Review publicly resolvable subdomains and retire unused hosts."},

	// Web
	{ID: "https_missing", Module: "web", Severity: "high", Title: "Site not served over HTTPS",
		Weight: 15, Max: 15, Recommendation: "Serve the site over HTTPS and redirect plain HTTP."},
	{ID: "tls_expired", Module: "web", Severity: "high", Title: "TLS certificate expired",
		Weight: 20, Max: 20, Recommendation: "Renew the TLS certificate and automate renewal."},
	{ID: "tls_expiring", Module: "web", Severity: "medium", Title: "TLS certificate expires within 30 days",
		Weight: 8, Max: 8, Recommendation: "Renew the TLS certificate before it expires."},
	{ID: "security_headers_missing", Module: "web", Severity: "medium", Title: "Security headers missing",
		Weight: 3, Max: 21, Recommendation: "Add the missing HTTP security headers (HSTS, CSP, X-Frame-Options and related)."},
	{ID: "technology_disclosed", Module: "web", Severity: "low", Title: "Server software disclosed",
		Weight: 2, Max: 6, Recommendation: "Suppress version banners in Server and X-Powered-By headers."},

	// Network
	{ID: "risky_port_open", Module: "network", Severity: "high", Title: "Sensitive service exposed to the internet",
		Weight: 10, Max: 40, Recommendation: "Firewall administrative and database ports or put them behind a VPN."},
	{ID: "port_open", Module: "network", Severity: "low", Title: "Open service ports",
		Weight: 2, Max: 10, Recommendation: "Close ports that do not serve a public purpose."},

	// Threat
	{ID: "breaches_found", Module: "threat", Severity: "high", Title: "Organisation appears in known data breaches",
		Weight: 10, Max: 30, Recommendation: "Force credential rotation and enable MFA for staff accounts."},
	{ID: "reputation_suspicious", Module: "threat", Severity: "high", Title: "Suspicious domain reputation",
		Weight: 25, Max: 25, Recommendation: "Investigate reputation listings and request delisting once resolved."},

	// Social
	{ID: "public_code_presence", Module: "social", Severity: "low", Title: "Public source repositories",
		Weight: 1, Max: 5, Recommendation: "Scan public repositories for committed secrets."},

	// Person
	{ID: "person_record_sources", Module: "person", Severity: "low", Title: "Public record sources available",
		Weight: 2, Max: 20, Recommendation: "Review listed public record sources for exposed personal data."},
	{ID: "person_dob_known", Module: "person", Severity: "medium", Title: "Date of birth narrows identity matching",
		Weight: 10, Max: 10, Recommendation: "Treat date of birth as sensitive; request removal from people-search sites."},
	{ID: "person_state_unverified", Module: "person", Severity: "low", Title: "State of residence not verified",
		Weight: 5, Max: 5, Recommendation: "Provide a valid two-letter state code to narrow record searches."},
}

// riskyPorts are services that should rarely face the internet.
var riskyPorts = map[int]string{
	21:    "FTP",
	23:    "Telnet",
	445:   "SMB",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	6379:  "Redis",
	27017: "MongoDB",
}

// RiskLevel buckets a 0..100 score.
func RiskLevel(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}
