// Package tracker compares two scans of the same target and reports what
// drifted between them.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/reconai/internal/model"
)

var (
	ErrNilScan        = errors.New("scan is nil")
	ErrTargetMismatch = errors.New("scans are of different targets")
)

// DiffChunk is one run of added or removed payload lines.
type DiffChunk struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content"`
}

// ModuleDiff describes how one module's outcome changed between two scans.
type ModuleDiff struct {
	Module        string              `json:"module"`
	BaseStatus    model.OutcomeStatus `json:"base_status"`
	HeadStatus    model.OutcomeStatus `json:"head_status"`
	StatusChanged bool                `json:"status_changed"`
	Added         int                 `json:"added_lines"`
	Removed       int                 `json:"removed_lines"`
	Chunks        []DiffChunk         `json:"chunks,omitempty"`
}

// Changed reports whether the module's status or payload differs.
func (m ModuleDiff) Changed() bool {
	return m.StatusChanged || m.Added > 0 || m.Removed > 0
}

// RiskDelta is the change in risk score. It is only set when both scans
// carry an analysis.
type RiskDelta struct {
	Base  int `json:"base"`
	Head  int `json:"head"`
	Delta int `json:"delta"`
}

// FindingDelta lists finding titles that appeared or disappeared.
type FindingDelta struct {
	New      []string `json:"new"`
	Resolved []string `json:"resolved"`
}

type ScanDiff struct {
	BaseID     string           `json:"base_id"`
	HeadID     string           `json:"head_id"`
	Target     string           `json:"target"`
	TargetType model.TargetType `json:"target_type"`
	Modules    []ModuleDiff     `json:"modules"`
	OnlyInBase []string         `json:"only_in_base"`
	OnlyInHead []string         `json:"only_in_head"`
	Risk       *RiskDelta       `json:"risk,omitempty"`
	Findings   *FindingDelta    `json:"findings,omitempty"`
}

// ChangedModules returns the names of modules whose outcome drifted.
func (d *ScanDiff) ChangedModules() []string {
	var out []string
	for _, m := range d.Modules {
		if m.Changed() {
			out = append(out, m.Module)
		}
	}
	return out
}

// Diff compares head against base. Modules present in both are compared by
// status and by a line diff of their indented JSON payloads, in head order.
// A scan without a result contributes no modules.
func Diff(base, head *model.Scan) (*ScanDiff, error) {
	if base == nil || head == nil {
		return nil, ErrNilScan
	}
	if base.Target != head.Target || base.TargetType != head.TargetType {
		return nil, fmt.Errorf("%w: %s/%s vs %s/%s", ErrTargetMismatch,
			base.TargetType, base.Target, head.TargetType, head.Target)
	}

	d := &ScanDiff{
		BaseID:     base.ID,
		HeadID:     head.ID,
		Target:     head.Target,
		TargetType: head.TargetType,
		Modules:    []ModuleDiff{},
		OnlyInBase: []string{},
		OnlyInHead: []string{},
	}

	baseMods := modulesOf(base)
	headMods := modulesOf(head)

	for _, h := range headMods.Outcomes() {
		b, ok := baseMods.Get(h.Module)
		if !ok {
			d.OnlyInHead = append(d.OnlyInHead, h.Module)
			continue
		}
		md, err := diffOutcome(b, h)
		if err != nil {
			return nil, err
		}
		d.Modules = append(d.Modules, md)
	}
	for _, b := range baseMods.Outcomes() {
		if _, ok := headMods.Get(b.Module); !ok {
			d.OnlyInBase = append(d.OnlyInBase, b.Module)
		}
	}

	if base.Analysis != nil && head.Analysis != nil {
		d.Risk = &RiskDelta{
			Base:  base.Analysis.RiskScore,
			Head:  head.Analysis.RiskScore,
			Delta: head.Analysis.RiskScore - base.Analysis.RiskScore,
		}
		d.Findings = diffFindings(base.Analysis.Vulnerabilities, head.Analysis.Vulnerabilities)
	}
	return d, nil
}

func modulesOf(s *model.Scan) model.ModuleMap {
	if s.Result == nil {
		return model.ModuleMap{}
	}
	return s.Result.Modules
}

func diffOutcome(base, head model.ModuleOutcome) (ModuleDiff, error) {
	md := ModuleDiff{
		Module:        head.Module,
		BaseStatus:    base.Status,
		HeadStatus:    head.Status,
		StatusChanged: base.Status != head.Status,
		Chunks:        []DiffChunk{},
	}

	baseText, err := render(base.Data)
	if err != nil {
		return md, fmt.Errorf("render base %s: %w", base.Module, err)
	}
	headText, err := render(head.Data)
	if err != nil {
		return md, fmt.Errorf("render head %s: %w", head.Module, err)
	}
	if baseText == headText {
		return md, nil
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(baseText, headText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, df := range diffs {
		var kind string
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			kind = "added"
			md.Added += lineCount(df.Text)
		case diffmatchpatch.DiffDelete:
			kind = "removed"
			md.Removed += lineCount(df.Text)
		default:
			continue
		}
		md.Chunks = append(md.Chunks, DiffChunk{Type: kind, Content: df.Text})
	}
	return md, nil
}

// render formats a payload as indented JSON with a trailing newline. Payloads
// are normalized through a generic decode first, so a typed payload and its
// stored form render the same. A nil payload renders empty.
func render(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}

func lineCount(s string) int {
	n := strings.Count(s, "\n")
	if s != "" && !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func diffFindings(base, head []model.Vulnerability) *FindingDelta {
	key := func(v model.Vulnerability) string { return v.Title }
	inBase := make(map[string]struct{}, len(base))
	for _, v := range base {
		inBase[key(v)] = struct{}{}
	}
	inHead := make(map[string]struct{}, len(head))
	for _, v := range head {
		inHead[key(v)] = struct{}{}
	}

	fd := &FindingDelta{New: []string{}, Resolved: []string{}}
	for k := range inHead {
		if _, ok := inBase[k]; !ok {
			fd.New = append(fd.New, k)
		}
	}
	for k := range inBase {
		if _, ok := inHead[k]; !ok {
			fd.Resolved = append(fd.Resolved, k)
		}
	}
	sort.Strings(fd.New)
	sort.Strings(fd.Resolved)
	return fd
}
