package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "Bearer")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "gen-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestAssessParsesEmbeddedJSON(t *testing.T) {
	reply := "Here is my assessment of the contract.\n\n" +
		`{"riskScore": 82, "riskLevel": "high", "status": "HIGH", ` +
		`"factors": ["thin liquidity", "admin keys"], "summary": "Elevated risk."}` +
		"\n\nLet me know if you need more detail."
	srv := chatServer(t, reply)
	defer srv.Close()

	a := NewOpenRouter(OpenRouterOptions{APIKey: "key", BaseURL: srv.URL, Model: "test-model"}, zerolog.Nop())
	assessment, err := a.Assess(context.Background(), Input{Address: "0xabc"})
	require.NoError(t, err)
	require.InDelta(t, 82, assessment.RiskScore, 1e-9)
	require.Equal(t, "high", assessment.RiskLevel)
	require.Equal(t, "HIGH", assessment.Status)
	require.Len(t, assessment.Factors, 2)
	require.Equal(t, "llm", assessment.Source)
}

func TestAssessNormalizesMissingFields(t *testing.T) {
	srv := chatServer(t, `{"riskScore": 91}`)
	defer srv.Close()

	a := NewOpenRouter(OpenRouterOptions{APIKey: "key", BaseURL: srv.URL}, zerolog.Nop())
	assessment, err := a.Assess(context.Background(), Input{Address: "0xabc"})
	require.NoError(t, err)
	require.Equal(t, "high", assessment.RiskLevel)
	require.Equal(t, "CRITICAL", assessment.Status)
}

func TestAssessRejectsProseOnlyReply(t *testing.T) {
	srv := chatServer(t, "I cannot assess this contract.")
	defer srv.Close()

	a := NewOpenRouter(OpenRouterOptions{APIKey: "key", BaseURL: srv.URL}, zerolog.Nop())
	_, err := a.Assess(context.Background(), Input{Address: "0xabc"})
	require.Error(t, err)
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`prefix {"a":{"b":2}} suffix`, `{"a":{"b":2}}`, true},
		{`brace in string {"a":"}"} tail`, `{"a":"}"}`, true},
		{`escaped {"a":"\"}"} tail`, `{"a":"\"}"}`, true},
		{`no object here`, "", false},
		{`{"truncated": `, "", false},
	}
	for _, tc := range cases {
		got, ok := extractJSONObject(tc.text)
		require.Equal(t, tc.ok, ok, "text %q", tc.text)
		require.Equal(t, tc.want, got, "text %q", tc.text)
	}
}
