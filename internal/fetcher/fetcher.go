// Package fetcher requests a list of pages with bounded concurrency and
// records what each one answered.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/webclient"
)

// Page is the outcome of fetching one URL. Status is zero when the request
// itself failed.
type Page struct {
	URL         string `json:"url"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
	Error       string `json:"error,omitempty"`
}

type Fetcher struct {
	MaxConcurrency int
	wc             webclient.WebClient
	logger         logging.Logger
}

// New creates a Fetcher over wc.
func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Fetcher, error) {
	if wc == nil {
		return nil, errors.New("fetcher: webclient is nil")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConcurrency
	}
	return &Fetcher{
		MaxConcurrency: cfg.MaxConcurrency,
		wc:             wc,
		logger:         logger.With(logging.Component("fetcher")),
	}, nil
}

// Fetch gets every URL and returns one Page per URL in input order. URLs not
// started before ctx is done are left out.
func (f *Fetcher) Fetch(ctx context.Context, pageURLs []string) []Page {
	var wg sync.WaitGroup
	sem := make(chan struct{}, f.MaxConcurrency)
	pages := make([]*Page, len(pageURLs))

	// Fetch pages concurrently
	for i, pageURL := range pageURLs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			p := &Page{URL: pageURL}
			resp, err := f.HTTPGet(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Debug("error while fetching page",
					logging.Field{Key: "url", Value: pageURL}, logging.Err(err))
				p.Error = err.Error()
			} else {
				p.Status = resp.StatusCode
				p.ContentType = resp.Headers.Get("Content-Type")
				p.Size = len(resp.Body)
			}
			pages[i] = p
		}()
	}

	wg.Wait()

	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// HTTPGet makes an HTTP GET request for page.
func (f *Fetcher) HTTPGet(ctx context.Context, page string) (*webclient.Response, error) {
	resp, err := f.wc.Get(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("error GETting %s: %w", page, err)
	}
	return resp, nil
}
