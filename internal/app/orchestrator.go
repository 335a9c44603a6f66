package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/reconai/internal/aggregate"
	"github.com/raysh454/reconai/internal/analyzer"
	"github.com/raysh454/reconai/internal/dispatch"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/store"
)

var (
	// ErrNoModules is returned when a request selects no modules at all.
	ErrNoModules = module.ErrNoModulesSelected
	// ErrScanNotFound is shared with the store so callers test one sentinel.
	ErrScanNotFound   = store.ErrScanNotFound
	ErrScanNotPending = errors.New("scan is not pending")
	ErrClosed         = errors.New("orchestrator is closed")
)

// ValidationError rejects a scan request before anything is dispatched.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scan request: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ScanStore receives every scan once, when it reaches a terminal state.
type ScanStore interface {
	SaveScan(ctx context.Context, scan *model.Scan) error
}

// ScanReader is implemented by stores that can serve scans evicted from memory.
type ScanReader interface {
	GetScan(ctx context.Context, id string) (*model.Scan, error)
}

type ScanEventType string

const (
	ScanEventStatus ScanEventType = "status"
	ScanEventModule ScanEventType = "module"
	ScanEventResult ScanEventType = "result"
)

type ScanEvent struct {
	ScanID string        `json:"scan_id"`
	Type   ScanEventType `json:"type"`

	// For status changes
	Status model.ScanStatus `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`

	// For module outcomes
	Module       string              `json:"module,omitempty"`
	ModuleStatus model.OutcomeStatus `json:"module_status,omitempty"`
}

// job is the in-memory record of one scan. scan, cancel, endedAt and
// eventsClosed are guarded by Orchestrator.mu.
type job struct {
	scan         *model.Scan
	cancel       context.CancelFunc
	events       chan ScanEvent
	eventsClosed bool
	endedAt      time.Time

	terminal sync.Once
	done     chan struct{}
}

type Orchestrator struct {
	cfg        *Config
	registry   *module.Registry
	dispatcher *dispatch.Dispatcher
	analyzer   analyzer.Analyzer
	store      ScanStore
	logger     logging.Logger
	now        func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc
	bg         sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

// NewOrchestrator ties together the module registry, an optional analyzer and
// an optional store. A nil analyzer disables analysis; a nil store disables
// persistence.
func NewOrchestrator(cfg *Config, reg *module.Registry, an analyzer.Analyzer, st ScanStore, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if reg == nil {
		reg = module.NewRegistry()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With(logging.Component("orchestrator"))
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		dispatcher: dispatch.New(dispatch.Config{
			ModuleTimeout: cfg.ModuleTimeout,
			ScanDeadline:  cfg.ScanDeadline,
		}, logger),
		analyzer:   an,
		store:      st,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		baseCtx:    ctx,
		baseCancel: cancel,
		jobs:       make(map[string]*job),
	}
}

func (o *Orchestrator) Registry() *module.Registry { return o.registry }

// CreateScan validates the request and registers a pending scan. Nothing is
// dispatched or persisted when validation fails or ctx is already done.
func (o *Orchestrator) CreateScan(ctx context.Context, req model.ScanRequest) (*model.Scan, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return nil, &ValidationError{Field: "target", Err: model.ErrEmptyTarget}
	}
	tt, err := model.ParseTargetType(req.TargetType)
	if err != nil {
		return nil, &ValidationError{Field: "target_type", Err: err}
	}
	st, err := model.ParseScanType(req.ScanType)
	if err != nil {
		return nil, &ValidationError{Field: "scan_type", Err: err}
	}
	names, err := o.registry.Select(tt, st, req.Modules)
	if err != nil {
		return nil, &ValidationError{Field: "modules", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	scan := model.NewScan(id, target, tt, st, names, req.Params, o.now())
	j := &job{
		scan:   scan,
		events: make(chan ScanEvent, o.cfg.EventBuffer),
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.evictLocked()
	o.jobs[id] = j
	snapshot := scan.Clone()
	o.mu.Unlock()

	o.emit(j, ScanEvent{ScanID: id, Type: ScanEventStatus, Status: model.ScanPending})
	o.logger.Info("scan created",
		logging.Field{Key: "scan_id", Value: id},
		logging.Field{Key: "target", Value: target},
		logging.Field{Key: "target_type", Value: string(tt)},
		logging.Field{Key: "modules", Value: names})
	return snapshot, nil
}

// RunScan drives a pending scan to a terminal state and returns it.
func (o *Orchestrator) RunScan(ctx context.Context, scanID string) (*model.Scan, error) {
	o.mu.Lock()
	j, ok := o.jobs[scanID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	if err := j.scan.Start(o.now()); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrScanNotPending, scanID, j.scan.Status)
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	scan := j.scan.Clone()
	o.mu.Unlock()
	defer cancel()

	o.emit(j, ScanEvent{ScanID: scanID, Type: ScanEventStatus, Status: model.ScanRunning})
	o.execute(runCtx, j, scan)
	return o.snapshot(j), nil
}

// Scan validates, creates and runs a scan synchronously.
func (o *Orchestrator) Scan(ctx context.Context, req model.ScanRequest) (*model.Scan, error) {
	scan, err := o.CreateScan(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.RunScan(ctx, scan.ID)
}

// StartScan validates and creates a scan, then runs it in the background. The
// returned channel is closed after the terminal event. ctx only bounds the
// creation step; the run is bound to the orchestrator's lifetime.
func (o *Orchestrator) StartScan(ctx context.Context, req model.ScanRequest) (*model.Scan, <-chan ScanEvent, error) {
	scan, err := o.CreateScan(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	j := o.jobs[scan.ID]
	if o.closed {
		o.mu.Unlock()
		o.finish(j, "orchestrator closed")
		return nil, nil, ErrClosed
	}
	o.bg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.bg.Done()
		if _, err := o.RunScan(o.baseCtx, scan.ID); err != nil {
			o.logger.Warn("background scan did not run",
				logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
		}
	}()
	return scan, j.events, nil
}

// execute runs dispatch, aggregation and analysis for a scan that has just
// entered running. Every path ends in exactly one terminal transition.
func (o *Orchestrator) execute(ctx context.Context, j *job, scan *model.Scan) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scan run panicked",
				logging.Field{Key: "scan_id", Value: scan.ID},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			o.finish(j, fmt.Sprintf("internal error: %v", r))
		}
	}()

	mods, err := o.registry.ResolveAll(scan.RequestedModules, scan.TargetType)
	if err != nil {
		o.finish(j, fmt.Sprintf("resolve modules: %v", err))
		return
	}

	opts := module.Options{ScanType: scan.ScanType, Params: scan.Params}
	report := o.dispatcher.Dispatch(ctx, scan.Target, scan.TargetType, mods, opts, func(out model.ModuleOutcome) {
		o.emit(j, ScanEvent{
			ScanID:       scan.ID,
			Type:         ScanEventModule,
			Module:       out.Module,
			ModuleStatus: out.Status,
			Error:        out.Error,
		})
	})
	if cause := cancellation(ctx); cause != "" {
		o.finish(j, cause)
		return
	}

	result, err := aggregate.Aggregate(scan.ID, scan.Target, scan.TargetType, scan.RequestedModules, report.Outcomes)
	if err != nil {
		o.logger.Error("aggregation failed", logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
		o.finish(j, err.Error())
		return
	}

	analysis, analysisErr := o.analyze(ctx, result)
	if cause := cancellation(ctx); cause != "" {
		o.finish(j, cause)
		return
	}

	o.complete(j, result, analysis, analysisErr, report.DeadlineExceeded || deadlineHit(ctx))
}

func (o *Orchestrator) analyze(ctx context.Context, result *model.ScanResult) (*model.AnalysisResult, string) {
	if o.analyzer == nil {
		return nil, ""
	}
	if o.cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AnalysisTimeout)
		defer cancel()
	}

	a, err := o.analyzer.Analyze(ctx, result)
	if err != nil {
		o.logger.Warn("analysis failed",
			logging.Field{Key: "scan_id", Value: result.ScanID},
			logging.Field{Key: "backend", Value: o.analyzer.Name()},
			logging.Err(err))
		return nil, err.Error()
	}
	return a, ""
}

// cancellation reports why ctx was cancelled. A deadline is not a cancellation.
func cancellation(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		cause := context.Cause(ctx)
		if cause == nil || errors.Is(cause, context.Canceled) {
			return "cancelled"
		}
		return "cancelled: " + cause.Error()
	}
	return ""
}

func deadlineHit(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (o *Orchestrator) complete(j *job, result *model.ScanResult, analysis *model.AnalysisResult, analysisErr string, deadline bool) {
	o.transition(j, func(s *model.Scan, now time.Time) error {
		if err := s.Complete(result, now); err != nil {
			return err
		}
		s.Analysis = analysis
		s.AnalysisError = analysisErr
		s.DeadlineExceeded = deadline
		return nil
	})
}

// finish fails a scan that is pending or running.
func (o *Orchestrator) finish(j *job, cause string) {
	o.transition(j, func(s *model.Scan, now time.Time) error {
		return s.Fail(cause, now)
	})
}

// transition applies the one terminal state change of a scan, persists the
// result and closes its event stream. Calls after the first are no-ops.
func (o *Orchestrator) transition(j *job, apply func(*model.Scan, time.Time) error) {
	j.terminal.Do(func() {
		now := o.now()
		o.mu.Lock()
		if err := apply(j.scan, now); err != nil {
			o.mu.Unlock()
			o.logger.Error("terminal transition rejected",
				logging.Field{Key: "scan_id", Value: j.scan.ID}, logging.Err(err))
			return
		}
		j.endedAt = now
		cancel := j.cancel
		snapshot := j.scan.Clone()
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		o.persist(snapshot)

		ev := ScanEvent{ScanID: snapshot.ID, Type: ScanEventStatus, Status: snapshot.Status, Error: snapshot.Error}
		if snapshot.Status == model.ScanCompleted {
			ev.Type = ScanEventResult
		}
		o.emit(j, ev)

		o.mu.Lock()
		j.eventsClosed = true
		close(j.events)
		o.mu.Unlock()
		close(j.done)

		fields := []logging.Field{
			{Key: "scan_id", Value: snapshot.ID},
			{Key: "status", Value: string(snapshot.Status)},
		}
		if snapshot.Result != nil {
			counts := snapshot.Result.Counts()
			fields = append(fields,
				logging.Field{Key: "success", Value: counts[model.OutcomeSuccess]},
				logging.Field{Key: "failed", Value: counts[model.OutcomeFailed]},
				logging.Field{Key: "timed_out", Value: counts[model.OutcomeTimedOut]})
		}
		if snapshot.Error != "" {
			fields = append(fields, logging.Field{Key: "error", Value: snapshot.Error})
		}
		o.logger.Info("scan finished", fields...)
	})
}

func (o *Orchestrator) persist(scan *model.Scan) {
	if o.store == nil {
		return
	}
	ctx := context.Background()
	if o.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.PersistTimeout)
		defer cancel()
	}
	if err := o.store.SaveScan(ctx, scan); err != nil {
		o.logger.Error("failed to persist scan",
			logging.Field{Key: "scan_id", Value: scan.ID}, logging.Err(err))
	}
}

func (o *Orchestrator) emit(j *job, ev ScanEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if j.eventsClosed {
		return
	}
	// Non-blocking send; drop if buffer is full.
	select {
	case j.events <- ev:
	default:
	}
}

func (o *Orchestrator) snapshot(j *job) *model.Scan {
	o.mu.Lock()
	defer o.mu.Unlock()
	return j.scan.Clone()
}

// CancelScan fails a pending scan immediately and asks a running one to stop.
// It reports whether the scan was known and not yet terminal.
func (o *Orchestrator) CancelScan(scanID string) bool {
	o.mu.Lock()
	j, ok := o.jobs[scanID]
	if !ok || j.scan.IsTerminal() {
		o.mu.Unlock()
		return false
	}
	pending := j.scan.Status == model.ScanPending
	cancel := j.cancel
	o.mu.Unlock()

	if pending {
		o.finish(j, "cancelled before start")
		return true
	}
	if cancel != nil {
		cancel()
	}
	return true
}

// Wait blocks until the scan is terminal or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, scanID string) (*model.Scan, error) {
	o.mu.Lock()
	j, ok := o.jobs[scanID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
	}
	select {
	case <-j.done:
		return o.snapshot(j), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetScan returns the in-memory scan, or the stored one once it has been
// evicted.
func (o *Orchestrator) GetScan(ctx context.Context, scanID string) (*model.Scan, error) {
	o.mu.Lock()
	j, ok := o.jobs[scanID]
	if ok {
		s := j.scan.Clone()
		o.mu.Unlock()
		return s, nil
	}
	o.mu.Unlock()

	if r, ok := o.store.(ScanReader); ok {
		return r.GetScan(ctx, scanID)
	}
	return nil, fmt.Errorf("%w: %s", ErrScanNotFound, scanID)
}

// ListScans returns the scans held in memory, newest first.
func (o *Orchestrator) ListScans() []*model.Scan {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evictLocked()
	out := make([]*model.Scan, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j.scan.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// evictLocked drops terminal scans older than the retention window.
func (o *Orchestrator) evictLocked() {
	if o.cfg.JobRetentionTime <= 0 {
		return
	}
	cutoff := o.now().Add(-o.cfg.JobRetentionTime)
	for id, j := range o.jobs {
		if j.scan.IsTerminal() && !j.endedAt.IsZero() && j.endedAt.Before(cutoff) {
			delete(o.jobs, id)
		}
	}
}

// Close stops accepting scans, cancels running ones and waits for background
// runs to finish. It is safe to call more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	var pending []*job
	for _, j := range o.jobs {
		if j.scan.Status == model.ScanPending {
			pending = append(pending, j)
		} else if j.cancel != nil && !j.scan.IsTerminal() {
			j.cancel()
		}
	}
	o.mu.Unlock()

	for _, j := range pending {
		o.finish(j, "orchestrator closed")
	}
	o.baseCancel()
	o.bg.Wait()
	return nil
}
