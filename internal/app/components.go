package app

import (
	"fmt"

	"github.com/raysh454/reconai/internal/analyzer"
	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/intel"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/store"
	"github.com/raysh454/reconai/internal/webclient"
)

// Components are the long-lived collaborators shared by every scan.
type Components struct {
	WebClient webclient.WebClient
	Store     *store.Store
	Registry  *module.Registry
	Analyzer  analyzer.Analyzer
}

// NewComponents builds the web client, store, module registry and analyzer
// described by cfg.
func NewComponents(cfg *config.Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	wc, err := webclient.NewWebClient(cfg.WebClient, logger)
	if err != nil {
		return nil, fmt.Errorf("new webclient: %w", err)
	}

	dbPath, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("expand storage path: %w", err)
	}
	st, err := store.Open(dbPath, logger)
	if err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := module.NewRegistry()
	if err := intel.RegisterDefaults(reg, intel.Deps{
		Config:    cfg.Modules,
		WebClient: wc,
		Logger:    logger,
	}); err != nil {
		_ = wc.Close()
		_ = st.Close()
		return nil, fmt.Errorf("register modules: %w", err)
	}

	an, err := analyzer.New(cfg.Analysis, analyzer.Deps{Logger: logger, WebClient: wc})
	if err != nil {
		_ = wc.Close()
		_ = st.Close()
		return nil, fmt.Errorf("new analyzer: %w", err)
	}

	return &Components{
		WebClient: wc,
		Store:     st,
		Registry:  reg,
		Analyzer:  an,
	}, nil
}

// Close releases every component that was built. Any in-flight scan that
// still uses them will fail.
func (c *Components) Close() error {
	var firstErr error
	if c.Analyzer != nil {
		if err := c.Analyzer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close analyzer: %w", err)
		}
	}
	if c.WebClient != nil {
		if err := c.WebClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close webclient: %w", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
	}
	return firstErr
}
