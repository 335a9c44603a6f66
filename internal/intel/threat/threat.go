// Package threat implements the offline threat intelligence module: a match
// against a catalogue of publicly disclosed breaches and a keyword based
// reputation check.
package threat

import (
	"context"
	"strings"

	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
)

const Name = "threat"

const (
	StatusClean      = "Clean"
	StatusSuspicious = "Suspicious"
)

// breachCatalogue maps a breached domain to the incident it is known for.
var breachCatalogue = []struct {
	domain   string
	incident string
}{
	{"adobe.com", "Adobe (2013)"},
	{"linkedin.com", "LinkedIn (2012)"},
	{"yahoo.com", "Yahoo (2013)"},
	{"dropbox.com", "Dropbox (2012)"},
	{"myspace.com", "Myspace (2008)"},
	{"tumblr.com", "Tumblr (2013)"},
	{"lastfm.com", "Last.fm (2012)"},
}

var suspiciousKeywords = []string{"hack", "crack", "warez", "phish", "spam"}

type Report struct {
	Target     string     `json:"target"`
	Breaches   []string   `json:"breaches"`
	Reputation Reputation `json:"reputation"`
	Source     string     `json:"source"`
}

type Reputation struct {
	Score           int      `json:"score"`
	Status          string   `json:"status"`
	Categories      []string `json:"categories"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// Module is stateless and makes no network calls.
type Module struct{}

func New() *Module { return &Module{} }

func (m *Module) Name() string { return Name }

func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, _ module.Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := strings.ToLower(strings.TrimSpace(target))
	return &Report{
		Target:     t,
		Breaches:   Breaches(t),
		Reputation: Assess(t),
		Source:     "builtin",
	}, nil
}

// Breaches lists the catalogued incidents whose domain occurs in target.
func Breaches(target string) []string {
	out := []string{}
	for _, b := range breachCatalogue {
		if strings.Contains(target, b.domain) {
			out = append(out, b.incident)
		}
	}
	return out
}

// Assess scores target -50 when it contains a suspicious keyword and +50
// otherwise.
func Assess(target string) Reputation {
	var matched []string
	for _, kw := range suspiciousKeywords {
		if strings.Contains(target, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) > 0 {
		return Reputation{
			Score:           -50,
			Status:          StatusSuspicious,
			Categories:      []string{"Potentially Malicious"},
			MatchedKeywords: matched,
		}
	}
	return Reputation{Score: 50, Status: StatusClean, Categories: []string{"No Known Threats"}}
}
