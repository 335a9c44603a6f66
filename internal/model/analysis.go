package model

import "time"

// AnalysisResult is produced by an analyzer backend and attached to a scan as-is.
type AnalysisResult struct {
	Summary         string              `json:"summary"`
	RiskScore       int                 `json:"risk_score"`
	Vulnerabilities []Vulnerability     `json:"vulnerabilities"`
	Recommendations []string            `json:"recommendations"`
	Correlations    []string            `json:"correlations,omitempty"`
	AttackSurface   map[string][]string `json:"attack_surface,omitempty"`
	Backend         string              `json:"backend"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

type Vulnerability struct {
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Module      string `json:"module,omitempty"`
}

// ClampRisk forces a score into 0..100.
func ClampRisk(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
