package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nexis-health/nexis-backend/internal/config"
	"github.com/nexis-health/nexis-backend/internal/narrative/errs"
	"github.com/nexis-health/nexis-backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() models.WeeklyReport {
	survey := 14
	return models.WeeklyReport{
		WindowStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		RiskScore:   46.33,
		SurveyScore: &survey,
		Stats: &models.AggregateStats{
			NumEntries: 5,
			AvgScore:   42.0,
			StdDev:     24.5,
			Best:       10,
			Worst:      80,
			NegRatio:   0.4,
			TrendSlope: -70,
		},
	}
}

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestGenerateParsesResponse(t *testing.T) {
	raw := `{"summary":"A steady week with clear improvement.","mood_direction":"improving",` +
		`"key_insights":["Scores improved late in the window"],"suggestions":["Keep it up"],` +
		`"strengths":["Consistency"],"possible_triggers":[],"recommend_followup":false}`

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "46.3")
		assert.Contains(t, req.Messages[1].Content, "PHQ-9 score (0-27): 14")

		w.Write(completionBody(t, raw))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}, 5*time.Second)

	n, err := p.Generate(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "improving", n.MoodDirection)
	assert.Equal(t, "A steady week with clear improvement.", n.Summary)
	assert.Len(t, n.KeyInsights, 1)
}

func TestGenerateStripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"summary\":\"Fenced but valid.\",\"mood_direction\":\"stable\"}\n```"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionBody(t, raw))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, 5*time.Second)

	n, err := p.Generate(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "Fenced but valid.", n.Summary)
}

func TestGenerateInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionBody(t, "sorry, I cannot do that"))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, 5*time.Second)

	_, err := p.Generate(context.Background(), sampleReport())
	assert.ErrorIs(t, err, errs.ErrInvalidResponse)
}

func TestGenerateEmptySummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionBody(t, `{"mood_direction":"stable"}`))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, 5*time.Second)

	_, err := p.Generate(context.Background(), sampleReport())
	assert.ErrorIs(t, err, errs.ErrInvalidResponse)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, 5*time.Second)

	_, err := p.Generate(context.Background(), sampleReport())
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel the request context; otherwise srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, 50*time.Millisecond)

	_, err := p.Generate(context.Background(), sampleReport())
	assert.ErrorIs(t, err, errs.ErrGenerateTimeout)
}
