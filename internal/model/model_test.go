package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetType(t *testing.T) {
	t.Parallel()
	tt, err := ParseTargetType("")
	require.NoError(t, err)
	assert.Equal(t, TargetDomain, tt)

	tt, err = ParseTargetType(" Person ")
	require.NoError(t, err)
	assert.Equal(t, TargetPerson, tt)

	_, err = ParseTargetType("org")
	assert.ErrorIs(t, err, ErrInvalidTargetType)
}

func TestParseScanType(t *testing.T) {
	t.Parallel()
	st, err := ParseScanType("")
	require.NoError(t, err)
	assert.Equal(t, ScanFull, st)

	st, err = ParseScanType("QUICK")
	require.NoError(t, err)
	assert.Equal(t, ScanQuick, st)

	_, err = ParseScanType("deep")
	assert.ErrorIs(t, err, ErrInvalidScanType)
}

func TestScan_ForwardOnlyTransitions(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := NewScan("id-1", "example.com", TargetDomain, ScanFull, []string{"domain"}, nil, now)
	assert.Equal(t, ScanPending, s.Status)

	require.NoError(t, s.Start(now))
	assert.ErrorIs(t, s.Start(now), ErrInvalidTransition)

	require.NoError(t, s.Complete(&ScanResult{ScanID: "id-1"}, now.Add(time.Second)))
	completedAt := *s.CompletedAt

	assert.ErrorIs(t, s.Fail("late", now.Add(time.Minute)), ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(nil, now.Add(time.Minute)), ErrInvalidTransition)
	assert.Equal(t, ScanCompleted, s.Status)
	assert.Equal(t, completedAt, *s.CompletedAt)
	assert.Empty(t, s.Error)
}

func TestScan_FailFromPending(t *testing.T) {
	t.Parallel()
	s := NewScan("id-2", "example.com", TargetDomain, ScanFull, []string{"domain"}, nil, time.Now())
	require.NoError(t, s.Fail("cancelled", time.Now()))
	assert.True(t, s.IsTerminal())
	assert.Equal(t, "cancelled", s.Error)
}

func TestScan_CloneIsIndependent(t *testing.T) {
	t.Parallel()
	s := NewScan("id-3", "example.com", TargetDomain, ScanCustom, []string{"web"}, map[string]string{"k": "v"}, time.Now())
	c := s.Clone()
	c.RequestedModules[0] = "changed"
	c.Params["k"] = "changed"
	assert.Equal(t, "web", s.RequestedModules[0])
	assert.Equal(t, "v", s.Params["k"])
}

func TestModuleMap_RejectsDuplicates(t *testing.T) {
	t.Parallel()
	_, err := NewModuleMap([]ModuleOutcome{{Module: "a"}, {Module: "a"}})
	assert.True(t, errors.Is(err, ErrDuplicateOutcome))
}

func TestModuleMap_JSONKeepsOrder(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mm, err := NewModuleMap([]ModuleOutcome{
		SuccessOutcome("web", map[string]any{"grade": "A"}, now, time.Millisecond),
		TimedOutOutcome("network", "deadline", now, time.Second),
		FailedOutcome("domain", "boom", now, time.Second),
	})
	require.NoError(t, err)

	data, err := json.Marshal(mm)
	require.NoError(t, err)
	s := string(data)
	assert.Less(t, strings.Index(s, `"web"`), strings.Index(s, `"network"`))
	assert.Less(t, strings.Index(s, `"network"`), strings.Index(s, `"domain"`))

	var back ModuleMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"web", "network", "domain"}, back.Names())
	o, ok := back.Get("network")
	require.True(t, ok)
	assert.Equal(t, OutcomeTimedOut, o.Status)
	assert.Equal(t, "deadline", o.Error)
}

func TestScanResult_Counts(t *testing.T) {
	t.Parallel()
	mm, err := NewModuleMap([]ModuleOutcome{
		{Module: "a", Status: OutcomeSuccess},
		{Module: "b", Status: OutcomeTimedOut},
		{Module: "c", Status: OutcomeTimedOut},
	})
	require.NoError(t, err)
	r := &ScanResult{Modules: mm}
	counts := r.Counts()
	assert.Equal(t, 1, counts[OutcomeSuccess])
	assert.Equal(t, 0, counts[OutcomeFailed])
	assert.Equal(t, 2, counts[OutcomeTimedOut])
}

func TestClampRisk(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, ClampRisk(-5))
	assert.Equal(t, 100, ClampRisk(250))
	assert.Equal(t, 42, ClampRisk(42))
}
