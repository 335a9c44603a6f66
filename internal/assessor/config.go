package assessor

// Config holds runtime settings for the heuristic assessor.
type Config struct {
	// ScoringVersion allows safe evolution of scoring logic.
	ScoringVersion string `json:"scoring_version"`

	// RuleWeights overrides the per-unit weight of a rule by rule id.
	RuleWeights map[string]float64 `json:"rule_weights"`
}

const DefaultScoringVersion = "heuristic-v1"
