package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nested", "reconai.db"), logging.NewStdoutLogger("store_test"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func completedScan(t *testing.T, id, target string, created time.Time) *model.Scan {
	t.Helper()
	sc := model.NewScan(id, target, model.TargetDomain, model.ScanFull, []string{"domain", "web"}, map[string]string{"note": "x"}, created)
	if err := sc.Start(created.Add(time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	mm, err := model.NewModuleMap([]model.ModuleOutcome{
		model.SuccessOutcome("domain", map[string]any{"ip_addresses": []any{"93.184.216.34"}}, created, 3*time.Millisecond),
		model.TimedOutOutcome("web", "module timed out after 1ms", created, time.Millisecond),
	})
	if err != nil {
		t.Fatal(err)
	}
	res := &model.ScanResult{ScanID: id, Target: target, TargetType: model.TargetDomain, Modules: mm}
	sc.Analysis = &model.AnalysisResult{
		Summary:   "ok",
		RiskScore: 40,
		Vulnerabilities: []model.Vulnerability{
			{Title: "Open RDP", Severity: "high", Description: "3389", Module: "network"},
			{Title: "Missing CSP", Severity: "medium", Description: "csp", Module: "web"},
		},
		Recommendations: []string{"close it"},
		Backend:         "heuristic",
	}
	if err := sc.Complete(res, created.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	return sc
}

// ─── Save / Get ────────────────────────────────────────────────────────

func TestStore_SaveAndGetRoundTrip(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)
	sc := completedScan(t, "scan-1", "example.com", created)

	if err := s.SaveScan(ctx, sc); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}
	got, err := s.GetScan(ctx, "scan-1")
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}

	if got.Status != model.ScanCompleted || got.Target != "example.com" || got.ScanType != model.ScanFull {
		t.Fatalf("unexpected scan: %+v", got)
	}
	if !got.CreatedAt.Equal(sc.CreatedAt) || got.CompletedAt == nil || !got.CompletedAt.Equal(*sc.CompletedAt) {
		t.Errorf("timestamps not preserved: %+v", got)
	}
	if got.Params["note"] != "x" {
		t.Errorf("params not preserved: %v", got.Params)
	}
	if names := got.Result.Modules.Names(); len(names) != 2 || names[0] != "domain" || names[1] != "web" {
		t.Errorf("module order not preserved: %v", names)
	}
	web, _ := got.Result.Modules.Get("web")
	if web.Status != model.OutcomeTimedOut || web.Error == "" {
		t.Errorf("unexpected web outcome: %+v", web)
	}
	if got.Analysis == nil || got.Analysis.RiskScore != 40 {
		t.Errorf("analysis not preserved: %+v", got.Analysis)
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	sc := completedScan(t, "scan-1", "example.com", time.Now())

	for i := 0; i < 2; i++ {
		if err := s.SaveScan(ctx, sc); err != nil {
			t.Fatalf("SaveScan #%d: %v", i, err)
		}
	}
	findings, err := s.ListFindings(ctx, "scan-1")
	if err != nil {
		t.Fatalf("ListFindings: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings after resave, got %d", len(findings))
	}
	if findings[0].Title != "Open RDP" || findings[1].Severity != "medium" {
		t.Errorf("unexpected findings order: %+v", findings)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	_, err := s.GetScan(context.Background(), "nope")
	if !errors.Is(err, store.ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}
}

func TestStore_FailedScanWithoutResult(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	sc := model.NewScan("scan-f", "example.com", model.TargetDomain, model.ScanQuick, []string{"web"}, nil, time.Now())
	_ = sc.Start(time.Now())
	_ = sc.Fail("cancelled", time.Now())

	if err := s.SaveScan(ctx, sc); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}
	got, err := s.GetScan(ctx, "scan-f")
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if got.Result != nil || got.Analysis != nil || got.Error != "cancelled" || got.Params != nil {
		t.Errorf("unexpected failed scan: %+v", got)
	}
}

// ─── History ───────────────────────────────────────────────────────────

func TestStore_ListRecentAndPrevious(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveScan(ctx, completedScan(t, id, "example.com", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveScan %s: %v", id, err)
		}
	}
	if err := s.SaveScan(ctx, completedScan(t, "other", "other.org", base.Add(10*time.Minute))); err != nil {
		t.Fatal(err)
	}

	recent, err := s.ListRecentScans(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecentScans: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "other" || recent[1].ID != "c" {
		t.Fatalf("unexpected recent order: %v, %v", recent[0].ID, recent[1].ID)
	}

	head, _ := s.GetScan(ctx, "c")
	prev, err := s.PreviousScan(ctx, "example.com", model.TargetDomain, head.CreatedAt)
	if err != nil {
		t.Fatalf("PreviousScan: %v", err)
	}
	if prev.ID != "b" {
		t.Errorf("expected previous scan b, got %s", prev.ID)
	}

	first, _ := s.GetScan(ctx, "a")
	if _, err := s.PreviousScan(ctx, "example.com", model.TargetDomain, first.CreatedAt); !errors.Is(err, store.ErrScanNotFound) {
		t.Errorf("expected ErrScanNotFound before first scan, got %v", err)
	}
}

func TestStore_Stats(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()
	if err := s.SaveScan(ctx, completedScan(t, "a", "example.com", time.Now())); err != nil {
		t.Fatal(err)
	}
	failed := model.NewScan("f", "example.com", model.TargetDomain, model.ScanFull, []string{"web"}, nil, time.Now())
	_ = failed.Fail("boom", time.Now())
	if err := s.SaveScan(ctx, failed); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalScans != 2 || st.ByStatus["completed"] != 1 || st.ByStatus["failed"] != 1 {
		t.Errorf("unexpected scan counts: %+v", st)
	}
	if st.TotalFindings != 2 || st.FindingsBySeverity["high"] != 1 {
		t.Errorf("unexpected findings counts: %+v", st)
	}
	if st.AverageRiskScore != 40 {
		t.Errorf("expected average risk 40, got %v", st.AverageRiskScore)
	}
	if len(st.Modules) != 2 || st.Modules[0].Module != "domain" || st.Modules[0].Success != 1 || st.Modules[1].TimedOut != 1 {
		t.Errorf("unexpected module stats: %+v", st.Modules)
	}
}
