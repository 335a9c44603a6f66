package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/tracker"
)

// Application is the global runtime state container.
// It holds config, the shared components and the orchestrator built on them.
// Pass Application to the CLI and HTTP surfaces rather than using
// package-level variables.
type Application struct {
	Config *config.Config
	Logger logging.Logger
	Comps  *Components
	Orch   *Orchestrator
}

// NewApplication wires an orchestrator onto already-constructed components.
func NewApplication(cfg *config.Config, logger logging.Logger, comps *Components) *Application {
	if cfg == nil {
		cfg = config.Default()
	}
	if comps == nil {
		comps = &Components{}
	}
	var st ScanStore
	if comps.Store != nil {
		st = comps.Store
	}
	return &Application{
		Config: cfg,
		Logger: logger,
		Comps:  comps,
		Orch:   NewOrchestrator(ConfigFrom(cfg), comps.Registry, comps.Analyzer, st, logger),
	}
}

// Build constructs components from cfg and wires an Application on them.
func Build(cfg *config.Config, logger logging.Logger) (*Application, error) {
	comps, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewApplication(cfg, logger, comps), nil
}

// DiffScan compares a scan with baseID, or with the previous completed scan
// of the same target when baseID is empty.
func (a *Application) DiffScan(ctx context.Context, headID, baseID string) (*tracker.ScanDiff, error) {
	head, err := a.Orch.GetScan(ctx, headID)
	if err != nil {
		return nil, err
	}

	var base *model.Scan
	switch {
	case baseID != "":
		base, err = a.Orch.GetScan(ctx, baseID)
	case a.Comps.Store != nil:
		base, err = a.Comps.Store.PreviousScan(ctx, head.Target, head.TargetType, head.CreatedAt)
	default:
		err = fmt.Errorf("%w: no history for %s", ErrScanNotFound, head.Target)
	}
	if err != nil {
		return nil, err
	}
	return tracker.Diff(base, head)
}

// Shutdown cancels running scans with a bounded wait, then releases components.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	if a.Logger != nil {
		a.Logger.Info("application shutdown initiated")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = a.Orch.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		if a.Logger != nil {
			a.Logger.Warn("orchestrator shutdown timed out", logging.Err(shutdownCtx.Err()))
		}
	}
	return a.Comps.Close()
}
