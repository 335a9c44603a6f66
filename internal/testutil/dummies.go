// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of Error calls so far.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200.
// Set FailURLs[url] = true to force an error for a specific URL, or
// Responses[url] to serve a canned response.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Responses     map[string]*webclient.Response
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, errors.New("dummy fetch fail for " + req.URL)
	}
	if r, ok := d.Responses[req.URL]; ok {
		cp := *r
		cp.Request = req
		if cp.Headers == nil {
			cp.Headers = http.Header{}
		}
		return &cp, nil
	}

	return &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte("ok:" + req.URL),
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// RequestedURLs returns the URLs fetched so far, in call order.
func (d *DummyWebClient) RequestedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.Requests))
	for i, r := range d.Requests {
		out[i] = r.URL
	}
	return out
}

// ─── Module ────────────────────────────────────────────────────────────

// DummyModule implements module.Module. It sleeps for Delay (or until the
// context is done, unless IgnoreContext is set) and then returns Data or Err.
type DummyModule struct {
	ModuleName    string
	Delay         time.Duration
	Data          any
	Err           error
	Panic         any
	IgnoreContext bool

	calls atomic.Int32
}

func (d *DummyModule) Name() string { return d.ModuleName }

func (d *DummyModule) Gather(ctx context.Context, _ string, _ model.TargetType, _ module.Options) (any, error) {
	d.calls.Add(1)
	if d.Delay > 0 {
		if d.IgnoreContext {
			time.Sleep(d.Delay)
		} else {
			select {
			case <-time.After(d.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if d.Panic != nil {
		panic(d.Panic)
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Data, nil
}

// Calls returns how many times Gather ran.
func (d *DummyModule) Calls() int { return int(d.calls.Load()) }

// ─── Analyzer ──────────────────────────────────────────────────────────

// DummyAnalyzer implements analyzer.Analyzer with a preconfigured result.
type DummyAnalyzer struct {
	Result *model.AnalysisResult
	Err    error
	Delay  time.Duration

	mu   sync.Mutex
	Seen []*model.ScanResult
}

func (d *DummyAnalyzer) Name() string { return "dummy" }

func (d *DummyAnalyzer) Analyze(ctx context.Context, result *model.ScanResult) (*model.AnalysisResult, error) {
	d.mu.Lock()
	d.Seen = append(d.Seen, result)
	d.mu.Unlock()
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Result != nil {
		return d.Result, nil
	}
	return &model.AnalysisResult{Summary: "dummy", RiskScore: 10, Backend: "dummy", GeneratedAt: time.Now()}, nil
}

func (d *DummyAnalyzer) Close() error { return nil }

// Calls returns how many results were analyzed.
func (d *DummyAnalyzer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Seen)
}

// ─── Store ─────────────────────────────────────────────────────────────

// DummyStore records every SaveScan call. Set Err to make saves fail.
type DummyStore struct {
	Err error

	mu    sync.Mutex
	Saved []*model.Scan
}

func (s *DummyStore) SaveScan(_ context.Context, scan *model.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saved = append(s.Saved, scan.Clone())
	return s.Err
}

// SavedFor returns every saved snapshot of the given scan.
func (s *DummyStore) SavedFor(id string) []*model.Scan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Scan
	for _, sc := range s.Saved {
		if sc.ID == id {
			out = append(out, sc)
		}
	}
	return out
}

// Count returns the total number of SaveScan calls.
func (s *DummyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Saved)
}
