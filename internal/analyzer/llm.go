package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/webclient"
)

const (
	defaultRiskScore = 50
	maxModuleDigest  = 4000
)

var (
	ErrNoWebClient      = errors.New("llm analyzer: web client is required")
	ErrMalformedReply   = errors.New("llm analyzer: malformed reply")
	ErrUnexpectedStatus = errors.New("llm analyzer: unexpected status")
)

const systemPrompt = `You are an expert cybersecurity analyst specializing in OSINT and threat intelligence.
Reply with a single JSON object and nothing else, using exactly these keys:
"summary" (string, 2-3 paragraphs), "risk_score" (integer 0-100),
"vulnerabilities" (array of {"title","severity","description"}; severity is low, medium, high or critical),
"recommendations" (array of strings), "correlations" (array of strings),
"attack_surface" (object mapping a category to an array of strings).`

// LLMAnalyzer asks an OpenAI-compatible chat completions endpoint to assess
// a scan digest.
type LLMAnalyzer struct {
	endpoint string
	apiKey   string
	model    string
	client   webclient.WebClient
	logger   logging.Logger
}

func NewLLMAnalyzer(cfg config.AnalysisConfig, deps Deps) (*LLMAnalyzer, error) {
	if deps.WebClient == nil {
		return nil, ErrNoWebClient
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("llm analyzer: endpoint is required")
	}
	return &LLMAnalyzer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   deps.WebClient,
		logger:   deps.Logger.With(logging.Component("llm-analyzer")),
	}, nil
}

func (l *LLMAnalyzer) Name() string { return "llm" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// report is the JSON object the model is asked to return. RiskScore is a
// pointer so a missing score can fall back to the default. Fractional scores
// are accepted and rounded.
type report struct {
	Summary         string                `json:"summary"`
	RiskScore       *float64              `json:"risk_score"`
	Vulnerabilities []model.Vulnerability `json:"vulnerabilities"`
	Recommendations []string              `json:"recommendations"`
	Correlations    []string              `json:"correlations"`
	AttackSurface   map[string][]string   `json:"attack_surface"`
}

func (l *LLMAnalyzer) Analyze(ctx context.Context, result *model.ScanResult) (*model.AnalysisResult, error) {
	if result == nil {
		return nil, errors.New("llm analyzer: nil scan result")
	}

	body, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Digest(result)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		headers.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(ctx, &webclient.Request{Method: http.MethodPost, URL: l.endpoint, Headers: headers, Body: body})
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformedReply, err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedReply)
	}

	rep, err := parseReport(cr.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	score := defaultRiskScore
	if rep.RiskScore != nil {
		score = int(math.Round(math.Max(-1, math.Min(101, *rep.RiskScore))))
	}
	out := &model.AnalysisResult{
		Summary:         strings.TrimSpace(rep.Summary),
		RiskScore:       model.ClampRisk(score),
		Vulnerabilities: rep.Vulnerabilities,
		Recommendations: rep.Recommendations,
		Correlations:    rep.Correlations,
		AttackSurface:   rep.AttackSurface,
		Backend:         l.Name(),
		GeneratedAt:     time.Now().UTC(),
	}
	if out.Vulnerabilities == nil {
		out.Vulnerabilities = []model.Vulnerability{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	l.logger.Debug("llm analysis complete",
		logging.Field{Key: "scan_id", Value: result.ScanID},
		logging.Field{Key: "risk_score", Value: out.RiskScore})
	return out, nil
}

func (l *LLMAnalyzer) Close() error { return nil }

// parseReport strips an optional markdown code fence and decodes the object.
func parseReport(content string) (*report, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedReply)
	}
	var rep report
	if err := json.Unmarshal([]byte(s), &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return &rep, nil
}

// Digest renders a scan result as the prompt text sent to the model.
func Digest(result *model.ScanResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OSINT reconnaissance results for %s target %q.\n", result.TargetType, result.Target)
	for _, o := range result.Modules.Outcomes() {
		fmt.Fprintf(&b, "\n## %s (%s)\n", o.Module, o.Status)
		if o.Status != model.OutcomeSuccess {
			fmt.Fprintf(&b, "error: %s\n", o.Error)
			continue
		}
		data, err := json.Marshal(o.Data)
		if err != nil {
			fmt.Fprintf(&b, "unencodable payload: %v\n", err)
			continue
		}
		if len(data) > maxModuleDigest {
			data = append(data[:maxModuleDigest], []byte("...(truncated)")...)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}
