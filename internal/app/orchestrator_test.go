package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/store"
	"github.com/raysh454/reconai/internal/testutil"
)

// domainModules registers the five default domain modules as dummies. The
// domain module answers at once; the others wait for delay.
func domainModules(t *testing.T, reg *module.Registry, delay time.Duration) map[string]*testutil.DummyModule {
	t.Helper()
	mods := map[string]*testutil.DummyModule{
		"domain":  {ModuleName: "domain", Data: map[string]any{"ip_addresses": []string{"93.184.216.34"}}},
		"web":     {ModuleName: "web", Delay: delay, Data: "web"},
		"network": {ModuleName: "network", Delay: delay, Data: "network"},
		"social":  {ModuleName: "social", Delay: delay, Data: "social"},
		"threat":  {ModuleName: "threat", Delay: delay, Data: "threat"},
	}
	for _, name := range []string{"domain", "web", "network", "social", "threat"} {
		require.NoError(t, reg.Register(mods[name], model.TargetDomain))
	}
	return mods
}

type fixture struct {
	orch     *Orchestrator
	reg      *module.Registry
	store    *testutil.DummyStore
	analyzer *testutil.DummyAnalyzer
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ModuleTimeout = time.Second
	cfg.ScanDeadline = 0
	if mutate != nil {
		mutate(cfg)
	}
	f := &fixture{
		reg:      module.NewRegistry(),
		store:    &testutil.DummyStore{},
		analyzer: &testutil.DummyAnalyzer{},
	}
	f.orch = NewOrchestrator(cfg, f.reg, f.analyzer, f.store, &testutil.DummyLogger{})
	t.Cleanup(func() { f.orch.Close() })
	return f
}

// renamingModule registers under one name and reports another once running.
type renamingModule struct{ calls atomic.Int32 }

func (m *renamingModule) Name() string {
	if m.calls.Add(1) == 1 {
		return "alpha"
	}
	return "beta"
}

func (m *renamingModule) Gather(context.Context, string, model.TargetType, module.Options) (any, error) {
	return "ok", nil
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewOrchestrator_DefaultConfig(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(nil, nil, nil, nil, &testutil.DummyLogger{})
	defer o.Close()
	assert.NotNil(t, o.cfg)
	assert.NotNil(t, o.Registry())
	assert.Equal(t, []string{"domain", "web", "network", "social", "threat"}, o.Registry().DefaultModulesFor(model.TargetDomain))
}

// ─── Synchronous scans ─────────────────────────────────────────────────

func TestScan_OneMillisecondModuleTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ModuleTimeout = time.Millisecond })
	domainModules(t, f.reg, time.Second)

	start := time.Now()
	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", TargetType: "domain", ScanType: "full"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Equal(t, model.ScanCompleted, scan.Status)
	require.NotNil(t, scan.Result)
	assert.Equal(t, []string{"domain", "web", "network", "social", "threat"}, scan.Result.Modules.Names())

	domain, ok := scan.Result.Modules.Get("domain")
	require.True(t, ok)
	assert.Equal(t, model.OutcomeSuccess, domain.Status)
	assert.Equal(t, map[string]any{"ip_addresses": []string{"93.184.216.34"}}, domain.Data)

	for _, name := range []string{"web", "network", "social", "threat"} {
		o, ok := scan.Result.Modules.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, model.OutcomeTimedOut, o.Status, name)
		assert.NotEmpty(t, o.Error, name)
		assert.Nil(t, o.Data, name)
	}
	assert.Equal(t, 1, f.store.Count())
}

func TestScan_UnknownModuleRejectedBeforeDispatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	mods := domainModules(t, f.reg, 0)

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{
		Target:   "example.com",
		ScanType: "custom",
		Modules:  []string{"domain", "bogus"},
	})
	require.Error(t, err)
	assert.Nil(t, scan)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "modules", verr.Field)
	assert.ErrorIs(t, err, module.ErrModuleNotFound)

	for name, m := range mods {
		assert.Zero(t, m.Calls(), name)
	}
	assert.Zero(t, f.store.Count())
	assert.Zero(t, f.analyzer.Calls())
	assert.Empty(t, f.orch.ListScans())
}

func TestCreateScan_ValidationErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "person"}, model.TargetPerson))

	cases := []struct {
		name  string
		req   model.ScanRequest
		field string
		want  error
	}{
		{"empty target", model.ScanRequest{Target: "  "}, "target", model.ErrEmptyTarget},
		{"bad target type", model.ScanRequest{Target: "x", TargetType: "org"}, "target_type", model.ErrInvalidTargetType},
		{"bad scan type", model.ScanRequest{Target: "x", ScanType: "deep"}, "scan_type", model.ErrInvalidScanType},
		{"custom without modules", model.ScanRequest{Target: "x", ScanType: "custom"}, "modules", ErrNoModules},
		{"unsupported target", model.ScanRequest{Target: "Jane Doe", TargetType: "person", Modules: []string{"web"}}, "modules", module.ErrUnsupportedTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.CreateScan(context.Background(), tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.orch.ListScans())
	assert.Zero(t, f.store.Count())
}

func TestScan_SelectionPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	ctx := context.Background()

	quick, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com", ScanType: "quick"})
	require.NoError(t, err)
	assert.Equal(t, []string{"domain", "web"}, quick.RequestedModules)
	assert.Equal(t, model.ScanPending, quick.Status)

	explicit, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com", ScanType: "quick", Modules: []string{"threat", "threat", "web"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"threat", "web"}, explicit.RequestedModules)
}

func TestScan_AnalysisFailureStillCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.analyzer.Err = errors.New("model unavailable")
	domainModules(t, f.reg, 0)

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Nil(t, scan.Analysis)
	assert.Contains(t, scan.AnalysisError, "model unavailable")
	assert.Empty(t, scan.Error)
	require.NotNil(t, scan.Result)
	assert.Equal(t, 5, scan.Result.Modules.Len())

	saved := f.store.SavedFor(scan.ID)
	require.Len(t, saved, 1)
	assert.Equal(t, model.ScanCompleted, saved[0].Status)
	assert.Contains(t, saved[0].AnalysisError, "model unavailable")
}

func TestScan_AnalysisAttached(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com"})
	require.NoError(t, err)
	require.NotNil(t, scan.Analysis)
	assert.Equal(t, 10, scan.Analysis.RiskScore)
	assert.Empty(t, scan.AnalysisError)
	require.Equal(t, 1, f.analyzer.Calls())
	assert.Equal(t, scan.ID, f.analyzer.Seen[0].ScanID)
}

func TestScan_NilAnalyzerSkipsAnalysis(t *testing.T) {
	t.Parallel()
	reg := module.NewRegistry()
	domainModules(t, reg, 0)
	o := NewOrchestrator(DefaultConfig(), reg, nil, nil, &testutil.DummyLogger{})
	defer o.Close()

	scan, err := o.Scan(context.Background(), model.ScanRequest{Target: "example.com", ScanType: "quick"})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Nil(t, scan.Analysis)
	assert.Empty(t, scan.AnalysisError)
}

func TestScan_IsolationAndCompleteness(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ModuleTimeout = 50 * time.Millisecond })
	reg := f.reg
	require.NoError(t, reg.Register(&testutil.DummyModule{ModuleName: "ok", Data: 1}))
	require.NoError(t, reg.Register(&testutil.DummyModule{ModuleName: "boom", Err: errors.New("lookup failed")}))
	require.NoError(t, reg.Register(&testutil.DummyModule{ModuleName: "panics", Panic: "nil map"}))
	require.NoError(t, reg.Register(&testutil.DummyModule{ModuleName: "slow", Delay: time.Second}))

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{
		Target:   "example.com",
		ScanType: "custom",
		Modules:  []string{"slow", "boom", "ok", "panics"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Equal(t, []string{"slow", "boom", "ok", "panics"}, scan.Result.Modules.Names())

	want := map[string]model.OutcomeStatus{
		"slow":   model.OutcomeTimedOut,
		"boom":   model.OutcomeFailed,
		"ok":     model.OutcomeSuccess,
		"panics": model.OutcomeFailed,
	}
	for name, status := range want {
		o, ok := scan.Result.Modules.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, status, o.Status, name)
	}
	boom, _ := scan.Result.Modules.Get("boom")
	assert.Equal(t, "lookup failed", boom.Error)
}

func TestScan_AllModulesFailedStillCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "a", Err: errors.New("x")}))
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "b", Err: errors.New("y")}))

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Equal(t, 2, scan.Result.Counts()[model.OutcomeFailed])
}

func TestScan_BoundedTermination(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ModuleTimeout = 20 * time.Millisecond })
	for _, name := range []string{"stuck1", "stuck2", "stuck3"} {
		require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: name, Delay: 2 * time.Second, IgnoreContext: true}))
	}

	start := time.Now()
	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"stuck1", "stuck2", "stuck3"}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Equal(t, 3, scan.Result.Counts()[model.OutcomeTimedOut])
}

func TestScan_ScanDeadlineCompletesWithFlag(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ScanDeadline = 30 * time.Millisecond })
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "fast", Data: "done"}))
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "slow", Delay: 5 * time.Second}))

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"fast", "slow"}})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.True(t, scan.DeadlineExceeded)

	fast, _ := scan.Result.Modules.Get("fast")
	slow, _ := scan.Result.Modules.Get("slow")
	assert.Equal(t, model.OutcomeSuccess, fast.Status)
	assert.Equal(t, model.OutcomeTimedOut, slow.Status)
}

func TestScan_AggregationErrorFailsScan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.reg.Register(&renamingModule{}))

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"alpha"}})
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, scan.Status)
	assert.Nil(t, scan.Result)
	assert.Contains(t, scan.Error, "aggregate scan")
	assert.Zero(t, f.analyzer.Calls())
	assert.Equal(t, 1, f.store.Count())
}

// ─── Terminal state ────────────────────────────────────────────────────

func TestRunScan_TerminalStateIsFinal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	ctx := context.Background()

	created, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com", ScanType: "quick"})
	require.NoError(t, err)
	done, err := f.orch.RunScan(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.ScanCompleted, done.Status)
	completedAt := *done.CompletedAt

	_, err = f.orch.RunScan(ctx, created.ID)
	assert.ErrorIs(t, err, ErrScanNotPending)
	assert.False(t, f.orch.CancelScan(created.ID))

	again, err := f.orch.GetScan(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, again.Status)
	assert.Equal(t, completedAt, *again.CompletedAt)
	assert.Len(t, f.store.SavedFor(created.ID), 1)
}

func TestRunScan_UnknownID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	_, err := f.orch.RunScan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestScan_PersistenceFailureDoesNotReopen(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.store.Err = errors.New("disk full")
	domainModules(t, f.reg, 0)

	scan, err := f.orch.Scan(context.Background(), model.ScanRequest{Target: "example.com", ScanType: "quick"})
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, scan.Status)
	assert.Equal(t, 1, f.store.Count())
}

// ─── Background scans ──────────────────────────────────────────────────

func TestStartScan_CanceledContextCreatesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	mods := domainModules(t, f.reg, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scan, events, err := f.orch.StartScan(ctx, model.ScanRequest{Target: "example.com"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, scan)
	assert.Nil(t, events)
	assert.Empty(t, f.orch.ListScans())
	assert.Zero(t, mods["domain"].Calls())
}

func TestStartScan_EventsEndWithResult(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)

	scan, events, err := f.orch.StartScan(context.Background(), model.ScanRequest{Target: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.ScanPending, scan.Status)

	var got []ScanEvent
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timeout waiting for events")
		}
	}

	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, model.ScanPending, got[0].Status)
	assert.Equal(t, model.ScanRunning, got[1].Status)
	last := got[len(got)-1]
	assert.Equal(t, ScanEventResult, last.Type)
	assert.Equal(t, model.ScanCompleted, last.Status)

	modules := 0
	for _, ev := range got {
		assert.Equal(t, scan.ID, ev.ScanID)
		if ev.Type == ScanEventModule {
			modules++
		}
	}
	assert.Equal(t, 5, modules)
	assert.Len(t, f.store.SavedFor(scan.ID), 1)
}

func TestCancelScan_RunningScanFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ModuleTimeout = 10 * time.Second })
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "slow", Delay: 5 * time.Second}))

	scan, events, err := f.orch.StartScan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"slow"}})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for running := false; !running; {
		select {
		case ev := <-events:
			running = ev.Status == model.ScanRunning
		case <-deadline:
			t.Fatal("scan never started")
		}
	}
	assert.True(t, f.orch.CancelScan(scan.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := f.orch.Wait(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, final.Status)
	assert.Contains(t, final.Error, "cancelled")

	saved := f.store.SavedFor(scan.ID)
	require.Len(t, saved, 1)
	assert.Equal(t, model.ScanFailed, saved[0].Status)
}

func TestCancelScan_PendingScanFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	ctx := context.Background()

	created, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com"})
	require.NoError(t, err)
	assert.True(t, f.orch.CancelScan(created.ID))

	got, err := f.orch.GetScan(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, got.Status)
	_, err = f.orch.RunScan(ctx, created.ID)
	assert.ErrorIs(t, err, ErrScanNotPending)
	assert.Equal(t, 1, f.store.Count())
}

func TestCancelScan_UnknownIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	assert.False(t, f.orch.CancelScan("missing"))
}

// ─── Retention and history ─────────────────────────────────────────────

func TestGetScan_FallsBackToStoreAfterEviction(t *testing.T) {
	t.Parallel()
	st, err := store.Open(filepath.Join(t.TempDir(), "reconai.db"), &testutil.DummyLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := DefaultConfig()
	cfg.JobRetentionTime = time.Millisecond
	reg := module.NewRegistry()
	domainModules(t, reg, 0)
	o := NewOrchestrator(cfg, reg, nil, st, &testutil.DummyLogger{})
	defer o.Close()

	ctx := context.Background()
	scan, err := o.Scan(ctx, model.ScanRequest{Target: "example.com", ScanType: "quick"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, o.ListScans())

	got, err := o.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, got.Status)
	assert.Equal(t, []string{"domain", "web"}, got.Result.Modules.Names())

	_, err = o.GetScan(ctx, "missing")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestListScans_NewestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	ctx := context.Background()

	first, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "a.example"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "b.example"})
	require.NoError(t, err)

	list := f.orch.ListScans()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

// ─── Close ─────────────────────────────────────────────────────────────

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.orch.Close())
	require.NoError(t, f.orch.Close())
}

func TestClose_RejectsNewScansAndFailsPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	domainModules(t, f.reg, 0)
	ctx := context.Background()

	pending, err := f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com"})
	require.NoError(t, err)
	require.NoError(t, f.orch.Close())

	got, err := f.orch.GetScan(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, got.Status)

	_, err = f.orch.CreateScan(ctx, model.ScanRequest{Target: "example.com"})
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = f.orch.StartScan(ctx, model.ScanRequest{Target: "example.com"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_CancelsBackgroundScans(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *Config) { c.ModuleTimeout = 10 * time.Second })
	require.NoError(t, f.reg.Register(&testutil.DummyModule{ModuleName: "slow", Delay: 5 * time.Second}))

	scan, _, err := f.orch.StartScan(context.Background(), model.ScanRequest{Target: "example.com", Modules: []string{"slow"}})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, f.orch.Close())
	assert.Less(t, time.Since(start), 2*time.Second)

	got, err := f.orch.GetScan(context.Background(), scan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, got.Status)
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()
	cfg := ConfigFrom(nil)
	assert.Equal(t, DefaultConfig(), cfg)
}
