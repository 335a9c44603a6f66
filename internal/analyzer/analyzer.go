// Package analyzer turns an aggregated ScanResult into a risk assessment.
// Backends are selected by name from the analysis config section.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/reconai/internal/assessor"
	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/webclient"
)

// Analyzer derives an AnalysisResult from a ScanResult. Implementations must
// not modify the result they are given.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, result *model.ScanResult) (*model.AnalysisResult, error)
	Close() error
}

// Deps are the shared collaborators a backend may need.
type Deps struct {
	Logger    logging.Logger
	WebClient webclient.WebClient
}

// Constructor builds a backend. Returning a nil Analyzer with a nil error
// disables analysis.
type Constructor func(cfg config.AnalysisConfig, deps Deps) (Analyzer, error)

var (
	mu       sync.RWMutex
	backends = map[string]Constructor{}
)

func init() {
	RegisterBackend("heuristic", func(_ config.AnalysisConfig, deps Deps) (Analyzer, error) {
		return assessor.NewHeuristicAssessor(assessor.Config{}, deps.Logger), nil
	})
	RegisterBackend("llm", func(cfg config.AnalysisConfig, deps Deps) (Analyzer, error) {
		return NewLLMAnalyzer(cfg, deps)
	})
	RegisterBackend("none", func(config.AnalysisConfig, Deps) (Analyzer, error) {
		return nil, nil
	})
}

// RegisterBackend registers or replaces a named backend.
func RegisterBackend(name string, ctor Constructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(name)] = ctor
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the configured backend. An empty backend name means heuristic.
// The "none" backend yields a nil Analyzer.
func New(cfg config.AnalysisConfig, deps Deps) (Analyzer, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if name == "" {
		name = "heuristic"
	}
	mu.RLock()
	ctor, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("analyzer backend %q not registered: available backends=%v", name, Backends())
	}
	a, err := ctor(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("construct analyzer backend %q: %w", name, err)
	}
	return a, nil
}
