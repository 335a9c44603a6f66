// Package assessor is the rule-based analysis backend. It scores a scan
// result from the payloads of the built-in modules and performs no I/O.
package assessor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
)

var ErrNilResult = errors.New("assessor: nil scan result")

// HeuristicAssessor scores risk by summing weighted rule hits.
type HeuristicAssessor struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

func NewHeuristicAssessor(cfg Config, logger logging.Logger) *HeuristicAssessor {
	if cfg.ScoringVersion == "" {
		cfg.ScoringVersion = DefaultScoringVersion
	}
	return &HeuristicAssessor{
		cfg:    cfg,
		logger: logger.With(logging.Component("heuristic-assessor")),
		now:    time.Now,
	}
}

func (h *HeuristicAssessor) Name() string { return "heuristic" }

func (h *HeuristicAssessor) Analyze(ctx context.Context, result *model.ScanResult) (*model.AnalysisResult, error) {
	if result == nil {
		return nil, ErrNilResult
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := extract(result)

	var (
		total   float64
		vulns   []model.Vulnerability
		recs    []string
		seenRec = map[string]struct{}{}
	)
	for _, r := range Rules {
		v := f.values[r.ID]
		if v <= 0 {
			continue
		}
		points := math.Min(v*h.weight(r), r.Max)
		total += points

		desc := r.Title
		if d := f.details[r.ID]; len(d) > 0 {
			desc = fmt.Sprintf("%s: %s", r.Title, strings.Join(d, ", "))
		}
		vulns = append(vulns, model.Vulnerability{Title: r.Title, Severity: r.Severity, Description: desc, Module: r.Module})
		if _, dup := seenRec[r.Recommendation]; !dup && r.Recommendation != "" {
			seenRec[r.Recommendation] = struct{}{}
			recs = append(recs, r.Recommendation)
		}
	}

	score := model.ClampRisk(int(math.Round(total)))
	counts := result.Counts()
	summary := fmt.Sprintf("%s %s: risk %d/100 (%s). %d of %d modules succeeded, %d failed, %d timed out; %d findings.",
		result.TargetType, result.Target, score, RiskLevel(score),
		counts[model.OutcomeSuccess], result.Modules.Len(), counts[model.OutcomeFailed], counts[model.OutcomeTimedOut], len(vulns))

	h.logger.Debug("scored scan",
		logging.Field{Key: "scan_id", Value: result.ScanID},
		logging.Field{Key: "risk_score", Value: score},
		logging.Field{Key: "findings", Value: len(vulns)},
		logging.Field{Key: "scoring_version", Value: h.cfg.ScoringVersion})

	if vulns == nil {
		vulns = []model.Vulnerability{}
	}
	if recs == nil {
		recs = []string{}
	}
	var surface map[string][]string
	if len(f.surface) > 0 {
		surface = f.surface
	}
	return &model.AnalysisResult{
		Summary:         summary,
		RiskScore:       score,
		Vulnerabilities: vulns,
		Recommendations: recs,
		Correlations:    f.correlations,
		AttackSurface:   surface,
		Backend:         h.Name(),
		GeneratedAt:     h.now().UTC(),
	}, nil
}

func (h *HeuristicAssessor) weight(r Rule) float64 {
	if w, ok := h.cfg.RuleWeights[r.ID]; ok {
		return w
	}
	return r.Weight
}

func (h *HeuristicAssessor) Close() error { return nil }
