package analyzer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/reconai/internal/analyzer"
	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/testutil"
	"github.com/raysh454/reconai/internal/webclient"
)

func scanResult(t *testing.T) *model.ScanResult {
	t.Helper()
	mm, err := model.NewModuleMap([]model.ModuleOutcome{
		model.SuccessOutcome("domain", map[string]any{"ip_addresses": []string{"93.184.216.34"}}, time.Now(), time.Millisecond),
		model.TimedOutOutcome("web", "module timed out after 1ms", time.Now(), time.Millisecond),
	})
	require.NoError(t, err)
	return &model.ScanResult{ScanID: "s1", Target: "example.com", TargetType: model.TargetDomain, Modules: mm}
}

// ─── Factory ───────────────────────────────────────────────────────────

func TestNew_Backends(t *testing.T) {
	t.Parallel()
	deps := analyzer.Deps{Logger: &testutil.DummyLogger{}, WebClient: &testutil.DummyWebClient{}}

	a, err := analyzer.New(config.AnalysisConfig{}, deps)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", a.Name())

	a, err = analyzer.New(config.AnalysisConfig{Backend: "LLM", Endpoint: "http://llm.local/v1"}, deps)
	require.NoError(t, err)
	assert.Equal(t, "llm", a.Name())

	a, err = analyzer.New(config.AnalysisConfig{Backend: "none"}, deps)
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = analyzer.New(config.AnalysisConfig{Backend: "oracle"}, deps)
	assert.Error(t, err)
	assert.Equal(t, []string{"heuristic", "llm", "none"}, analyzer.Backends()[:3])
}

func TestNew_LLMRequiresWebClient(t *testing.T) {
	t.Parallel()
	_, err := analyzer.New(config.AnalysisConfig{Backend: "llm", Endpoint: "http://x"}, analyzer.Deps{Logger: &testutil.DummyLogger{}})
	assert.ErrorIs(t, err, analyzer.ErrNoWebClient)
}

// ─── LLM backend ───────────────────────────────────────────────────────

type captured struct {
	path string
	auth string
	body []byte
}

func llmServer(t *testing.T, status int, content string, seen *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.path = r.URL.Path
			seen.auth = r.Header.Get("Authorization")
			seen.body, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(status)
		env := map[string]any{"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}}}
		_ = json.NewEncoder(w).Encode(env)
	}))
}

func newLLM(t *testing.T, url string) *analyzer.LLMAnalyzer {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(config.WebClientConfig{}, &testutil.DummyLogger{}, nil)
	require.NoError(t, err)
	a, err := analyzer.NewLLMAnalyzer(config.AnalysisConfig{Endpoint: url + "/v1/", APIKey: "sk-test", Model: "gpt-test"},
		analyzer.Deps{Logger: &testutil.DummyLogger{}, WebClient: wc})
	require.NoError(t, err)
	return a
}

func TestLLMAnalyzer_ParsesFencedReply(t *testing.T) {
	t.Parallel()
	content := "```json\n" + `{"summary":" Exposed. ","risk_score":140,"vulnerabilities":[{"title":"Open RDP","severity":"high","description":"3389 open"}],"recommendations":["close 3389"],"correlations":["c1"],"attack_surface":{"ports":["3389"]}}` + "\n```"
	var seen captured
	ts := llmServer(t, http.StatusOK, content, &seen)
	defer ts.Close()

	got, err := newLLM(t, ts.URL).Analyze(context.Background(), scanResult(t))
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", seen.path)
	assert.Equal(t, "Bearer sk-test", seen.auth)
	assert.Contains(t, string(seen.body), `"model":"gpt-test"`)
	assert.Contains(t, string(seen.body), "93.184.216.34")

	assert.Equal(t, "Exposed.", got.Summary)
	assert.Equal(t, 100, got.RiskScore)
	require.Len(t, got.Vulnerabilities, 1)
	assert.Equal(t, "Open RDP", got.Vulnerabilities[0].Title)
	assert.Equal(t, []string{"close 3389"}, got.Recommendations)
	assert.Equal(t, map[string][]string{"ports": {"3389"}}, got.AttackSurface)
	assert.Equal(t, "llm", got.Backend)
}

func TestLLMAnalyzer_MissingScoreDefaults(t *testing.T) {
	t.Parallel()
	ts := llmServer(t, http.StatusOK, `{"summary":"ok"}`, nil)
	defer ts.Close()

	got, err := newLLM(t, ts.URL).Analyze(context.Background(), scanResult(t))
	require.NoError(t, err)
	assert.Equal(t, 50, got.RiskScore)
	assert.NotNil(t, got.Vulnerabilities)
}

func TestLLMAnalyzer_RoundsFractionalScore(t *testing.T) {
	t.Parallel()
	for content, want := range map[string]int{
		`{"summary":"ok","risk_score":72.5}`: 73,
		`{"summary":"ok","risk_score":12.4}`: 12,
		`{"summary":"ok","risk_score":-3.2}`: 0,
		`{"summary":"ok","risk_score":1e30}`: 100,
	} {
		ts := llmServer(t, http.StatusOK, content, nil)
		got, err := newLLM(t, ts.URL).Analyze(context.Background(), scanResult(t))
		ts.Close()
		require.NoError(t, err, content)
		assert.Equal(t, want, got.RiskScore, content)
	}
}

func TestLLMAnalyzer_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		content string
		wantErr error
	}{
		{name: "non-json content", status: http.StatusOK, content: "I cannot help with that.", wantErr: analyzer.ErrMalformedReply},
		{name: "empty content", status: http.StatusOK, content: "", wantErr: analyzer.ErrMalformedReply},
		{name: "upstream error", status: http.StatusTooManyRequests, content: "{}", wantErr: analyzer.ErrUnexpectedStatus},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := llmServer(t, tc.status, tc.content, nil)
			defer ts.Close()
			_, err := newLLM(t, ts.URL).Analyze(context.Background(), scanResult(t))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDigest_IncludesEveryModule(t *testing.T) {
	t.Parallel()
	d := analyzer.Digest(scanResult(t))
	assert.True(t, strings.Contains(d, "## domain (success)"))
	assert.True(t, strings.Contains(d, "## web (timed_out)"))
	assert.Contains(t, d, "error: module timed out after 1ms")
}
