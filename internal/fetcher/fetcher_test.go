package fetcher_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raysh454/reconai/internal/fetcher"
	"github.com/raysh454/reconai/internal/testutil"
	"github.com/raysh454/reconai/internal/webclient"
)

func newFetcher(t *testing.T, n int, wc webclient.WebClient) *fetcher.Fetcher {
	t.Helper()
	f, err := fetcher.New(fetcher.Config{MaxConcurrency: n}, wc, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// countingClient tracks the peak number of concurrent requests.
type countingClient struct {
	testutil.DummyWebClient
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return c.DummyWebClient.Get(ctx, url)
}

func TestNew_RequiresWebClient(t *testing.T) {
	t.Parallel()
	if _, err := fetcher.New(fetcher.Config{}, nil, &testutil.DummyLogger{}); err == nil {
		t.Fatal("expected error for nil webclient")
	}
}

func TestNew_DefaultConcurrency(t *testing.T) {
	t.Parallel()
	f := newFetcher(t, 0, &testutil.DummyWebClient{})
	if f.MaxConcurrency != fetcher.DefaultConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", f.MaxConcurrency, fetcher.DefaultConcurrency)
	}
}

func TestFetch_KeepsOrderAndRecordsFailures(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{
		FailURLs: map[string]bool{"http://x.test/b": true},
		Responses: map[string]*webclient.Response{
			"http://x.test/c": {StatusCode: 404, Body: []byte("gone"), Headers: http.Header{"Content-Type": {"text/plain"}}},
		},
	}
	f := newFetcher(t, 2, wc)

	pages := f.Fetch(context.Background(), []string{"http://x.test/a", "http://x.test/b", "http://x.test/c"})
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[0].URL != "http://x.test/a" || pages[0].Status != 200 || pages[0].Size != len("ok:http://x.test/a") {
		t.Errorf("unexpected first page: %+v", pages[0])
	}
	if pages[1].Status != 0 || pages[1].Error == "" {
		t.Errorf("expected failure on second page: %+v", pages[1])
	}
	if pages[2].Status != 404 || pages[2].ContentType != "text/plain" || pages[2].Size != 4 {
		t.Errorf("unexpected third page: %+v", pages[2])
	}
}

func TestFetch_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	wc := &countingClient{DummyWebClient: testutil.DummyWebClient{ResponseDelay: 20 * time.Millisecond}}
	f := newFetcher(t, 2, wc)

	urls := []string{"http://x.test/1", "http://x.test/2", "http://x.test/3", "http://x.test/4", "http://x.test/5"}
	if pages := f.Fetch(context.Background(), urls); len(pages) != len(urls) {
		t.Fatalf("expected %d pages, got %d", len(urls), len(pages))
	}
	if peak := wc.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	t.Parallel()
	f := newFetcher(t, 1, &testutil.DummyWebClient{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if pages := f.Fetch(ctx, []string{"http://x.test/a", "http://x.test/b"}); len(pages) != 0 {
		t.Errorf("expected no pages after cancel, got %v", pages)
	}
}
