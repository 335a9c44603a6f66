// Package dispatch runs resolved modules concurrently against one target and
// collects exactly one outcome per module.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
)

const DefaultModuleTimeout = 30 * time.Second

type Config struct {
	// ModuleTimeout bounds each Gather call. Zero means DefaultModuleTimeout.
	ModuleTimeout time.Duration
	// ScanDeadline bounds the whole dispatch. Zero means no overall deadline.
	ScanDeadline time.Duration
}

// Observer is notified once per module as soon as its outcome is fixed.
// It may be called from several goroutines at once.
type Observer func(model.ModuleOutcome)

// Report is the joined result of one dispatch. Outcomes follow the order of
// the modules passed in.
type Report struct {
	Outcomes         []model.ModuleOutcome
	DeadlineExceeded bool
}

type Dispatcher struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

func New(cfg Config, logger logging.Logger) *Dispatcher {
	if cfg.ModuleTimeout <= 0 {
		cfg.ModuleTimeout = DefaultModuleTimeout
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: logger.With(logging.Component("dispatcher")),
		now:    time.Now,
	}
}

func (d *Dispatcher) Config() Config { return d.cfg }

// slot is owned by exactly one module run. The first resolution wins; later
// ones are dropped.
type slot struct {
	once sync.Once
	out  model.ModuleOutcome
}

// Dispatch runs every module concurrently and returns after each one has an
// outcome. A module that overruns its deadline is recorded as timed out and
// left to unwind on its own.
func (d *Dispatcher) Dispatch(ctx context.Context, target string, tt model.TargetType, mods []module.Module, opts module.Options, observe Observer) Report {
	var (
		scanCtx context.Context
		cancel  context.CancelFunc
	)
	if d.cfg.ScanDeadline > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, d.cfg.ScanDeadline)
	} else {
		scanCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	slots := make([]slot, len(mods))
	var (
		wg          sync.WaitGroup
		deadlineHit atomic.Bool
	)
	wg.Add(len(mods))
	for i, m := range mods {
		go d.run(ctx, scanCtx, m, target, tt, opts, &slots[i], &wg, &deadlineHit, observe)
	}
	wg.Wait()

	rep := Report{Outcomes: make([]model.ModuleOutcome, len(slots)), DeadlineExceeded: deadlineHit.Load()}
	for i := range slots {
		rep.Outcomes[i] = slots[i].out
	}
	return rep
}

func (d *Dispatcher) run(parent, scanCtx context.Context, m module.Module, target string, tt model.TargetType, opts module.Options, s *slot, wg *sync.WaitGroup, deadlineHit *atomic.Bool, observe Observer) {
	name := m.Name()
	started := d.now()
	mctx, cancel := context.WithTimeout(scanCtx, d.cfg.ModuleTimeout)

	resolve := func(o model.ModuleOutcome, byScanDeadline bool) {
		s.once.Do(func() {
			o.Module = name
			o.StartedAt = started
			o.Duration = d.now().Sub(started)
			s.out = o
			if byScanDeadline {
				deadlineHit.Store(true)
			}
			d.logOutcome(o)
			if observe != nil {
				observe(o)
			}
			cancel()
			wg.Done()
		})
	}

	expire := func() {
		status, cause, byScan := d.classifyExpiry(parent, scanCtx)
		resolve(model.ModuleOutcome{Status: status, Error: cause}, byScan)
	}
	context.AfterFunc(mctx, expire)

	defer func() {
		if r := recover(); r != nil {
			resolve(model.ModuleOutcome{Status: model.OutcomeFailed, Error: fmt.Sprintf("panic: %v", r)}, false)
		}
	}()

	data, err := m.Gather(mctx, target, tt, opts)
	switch {
	case err == nil:
		resolve(model.ModuleOutcome{Status: model.OutcomeSuccess, Data: data}, false)
	case mctx.Err() != nil:
		expire()
	default:
		resolve(model.ModuleOutcome{Status: model.OutcomeFailed, Error: err.Error()}, false)
	}
}

func (d *Dispatcher) classifyExpiry(parent, scanCtx context.Context) (model.OutcomeStatus, string, bool) {
	switch {
	case parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded):
		return model.OutcomeFailed, "cancelled: " + parent.Err().Error(), false
	case parent.Err() != nil:
		return model.OutcomeTimedOut, "caller deadline exceeded", false
	case scanCtx.Err() != nil:
		return model.OutcomeTimedOut, fmt.Sprintf("scan deadline of %s exceeded", d.cfg.ScanDeadline), true
	default:
		return model.OutcomeTimedOut, fmt.Sprintf("module timed out after %s", d.cfg.ModuleTimeout), false
	}
}

func (d *Dispatcher) logOutcome(o model.ModuleOutcome) {
	fields := []logging.Field{
		{Key: "module", Value: o.Module},
		{Key: "status", Value: string(o.Status)},
		{Key: "duration", Value: o.Duration.String()},
	}
	if o.Status == model.OutcomeSuccess {
		d.logger.Debug("module finished", fields...)
		return
	}
	d.logger.Warn("module did not succeed", append(fields, logging.Field{Key: "error", Value: o.Error})...)
}
