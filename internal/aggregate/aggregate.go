// Package aggregate merges dispatcher outcomes into a ScanResult. It performs
// no I/O and keeps no state.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/raysh454/reconai/internal/model"
)

// AggregationError reports outcomes that do not line up with the requested
// module list. It always means a programming error upstream.
type AggregationError struct {
	ScanID     string
	Missing    []string
	Unexpected []string
	Duplicates []string
}

func (e *AggregationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing outcomes for "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "outcomes for unrequested modules "+strings.Join(e.Unexpected, ","))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicate entries for "+strings.Join(e.Duplicates, ","))
	}
	return fmt.Sprintf("aggregate scan %s: %s", e.ScanID, strings.Join(parts, "; "))
}

// Aggregate builds the canonical result. Modules appear in requested order and
// payloads are carried through untouched.
func Aggregate(scanID, target string, tt model.TargetType, requested []string, outcomes []model.ModuleOutcome) (*model.ScanResult, error) {
	aerr := &AggregationError{ScanID: scanID}

	want := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if _, dup := want[name]; dup {
			aerr.Duplicates = append(aerr.Duplicates, name)
			continue
		}
		want[name] = struct{}{}
	}

	byName := make(map[string]model.ModuleOutcome, len(outcomes))
	for _, o := range outcomes {
		if _, ok := want[o.Module]; !ok {
			aerr.Unexpected = append(aerr.Unexpected, o.Module)
			continue
		}
		if _, dup := byName[o.Module]; dup {
			aerr.Duplicates = append(aerr.Duplicates, o.Module)
			continue
		}
		byName[o.Module] = o
	}

	ordered := make([]model.ModuleOutcome, 0, len(want))
	seen := make(map[string]struct{}, len(want))
	for _, name := range requested {
		if _, done := seen[name]; done {
			continue
		}
		seen[name] = struct{}{}
		o, ok := byName[name]
		if !ok {
			aerr.Missing = append(aerr.Missing, name)
			continue
		}
		ordered = append(ordered, o)
	}

	if len(aerr.Missing)+len(aerr.Unexpected)+len(aerr.Duplicates) > 0 {
		return nil, aerr
	}

	modules, err := model.NewModuleMap(ordered)
	if err != nil {
		return nil, &AggregationError{ScanID: scanID, Duplicates: []string{err.Error()}}
	}
	return &model.ScanResult{
		ScanID:     scanID,
		Target:     target,
		TargetType: tt,
		Modules:    modules,
	}, nil
}
