package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nexis-health/nexis-backend/internal/config"
	"github.com/nexis-health/nexis-backend/internal/narrative/errs"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const systemPrompt = `You are a supportive mental wellbeing assistant. You receive two weeks of
emotion check-in statistics for one person and reply with a single JSON object
containing: summary (string), mood_direction (one of improving, declining,
stable, mixed), key_insights (array of strings), suggestions (array of
strings), strengths (array of strings), possible_triggers (array of strings),
recommend_followup (boolean). Be warm, specific and non-clinical. Never
diagnose. Reply with JSON only.`

// Provider implements models.NarrativeProvider using an OpenAI-compatible
// chat completions endpoint.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "openai" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Generate(ctx context.Context, report models.WeeklyReport) (models.Narrative, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(report)},
		},
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.Narrative{}, fmt.Errorf("encoding request: %w", err)
	}

	u := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.Narrative{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.Narrative{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Narrative{}, fmt.Errorf("%w: status %d", errs.ErrProviderUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return models.Narrative{}, fmt.Errorf("%w: %v", errs.ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return models.Narrative{}, fmt.Errorf("%w: no choices", errs.ErrInvalidResponse)
	}

	return parseNarrative(chat.Choices[0].Message.Content)
}

// buildPrompt flattens the report into a compact plain-text block. The model
// only ever sees aggregate numbers, never raw video or text input.
func buildPrompt(report models.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reporting window: %s to %s\n",
		report.WindowStart.Format("2006-01-02"), report.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "Blended risk score (0-100, lower is better): %.1f\n", report.RiskScore)
	if report.SurveyScore != nil {
		fmt.Fprintf(&b, "Latest PHQ-9 score (0-27): %d\n", *report.SurveyScore)
	}
	if s := report.Stats; s != nil {
		fmt.Fprintf(&b, "Check-ins analyzed: %d\n", s.NumEntries)
		fmt.Fprintf(&b, "Average emotion score: %.1f (std dev %.1f)\n", s.AvgScore, s.StdDev)
		fmt.Fprintf(&b, "Best day score: %.1f, worst day score: %.1f\n", s.Best, s.Worst)
		fmt.Fprintf(&b, "Share of negative days: %.0f%%\n", s.NegRatio*100)
		fmt.Fprintf(&b, "Trend over the window (negative is improving): %.1f\n", s.TrendSlope)
	}
	return b.String()
}

func parseNarrative(content string) (models.Narrative, error) {
	// Some models wrap JSON in markdown fences despite instructions.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var n models.Narrative
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &n); err != nil {
		return models.Narrative{}, fmt.Errorf("%w: %v", errs.ErrInvalidResponse, err)
	}
	if n.Summary == "" {
		return models.Narrative{}, fmt.Errorf("%w: empty summary", errs.ErrInvalidResponse)
	}
	return n, nil
}

// classifyError maps transport-level failures to sentinel errors.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", errs.ErrGenerateTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errs.ErrGenerateTimeout, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
}

var _ models.NarrativeProvider = (*Provider)(nil)
