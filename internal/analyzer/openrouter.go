package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"chainguard-sentinel/internal/risk"
)

const systemPrompt = "You are a smart-contract risk analyst. Assess the given contract " +
	"and reply with a JSON object containing riskScore (0-100), riskLevel " +
	"(low|medium|high), status (LOW|MEDIUM|HIGH|CRITICAL), factors (string array) " +
	"and summary (string). You may explain your reasoning around the JSON object."

// OpenRouterOptions parameterise the LLM analyzer.
type OpenRouterOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenRouter asks an OpenRouter-compatible chat-completion API for a risk
// assessment. Replies embed a JSON object in free text; the object is dug
// out rather than trusting the model to return bare JSON.
type OpenRouter struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenRouter constructs the analyzer against an OpenRouter-compatible endpoint.
func NewOpenRouter(opts OpenRouterOptions, logger zerolog.Logger) *OpenRouter {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	model := opts.Model
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}

	return &OpenRouter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.With().Str("component", "llm_analyzer").Logger(),
	}
}

// Assess sends the contract context to the model and parses the embedded
// assessment JSON.
func (o *OpenRouter) Assess(ctx context.Context, input Input) (*risk.Assessment, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(input)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openrouter returned no choices")
	}

	content := resp.Choices[0].Message.Content
	payload, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model reply: %q", truncate(content, 200))
	}

	var assessment risk.Assessment
	if err := json.Unmarshal([]byte(payload), &assessment); err != nil {
		return nil, fmt.Errorf("parse assessment: %w", err)
	}
	assessment.Source = "llm"
	assessment.Normalize()

	o.logger.Debug().Str("address", input.Address).
		Float64("risk_score", assessment.RiskScore).
		Str("status", assessment.Status).
		Msg("llm assessment parsed")
	return &assessment, nil
}

func buildPrompt(input Input) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Contract: %s\n", input.Address)
	if input.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", input.Name)
	}
	if input.Chain != "" {
		fmt.Fprintf(&b, "Chain: %s\n", input.Chain)
	}
	if info := input.OnChain; info != nil {
		fmt.Fprintf(&b, "Deployed bytecode: %d bytes\n", info.BytecodeSize)
		fmt.Fprintf(&b, "Native balance (wei): %s\n", info.BalanceWei.String())
		if info.Token != nil {
			fmt.Fprintf(&b, "Token: %s (%s), decimals %d, total supply %s\n",
				info.Token.Name, info.Token.Symbol, info.Token.Decimals, info.Token.TotalSupply.String())
		}
	}
	if m := input.Market; m != nil {
		if m.Price != nil {
			fmt.Fprintf(&b, "Price (USD): %.6f\n", *m.Price)
		}
		if m.Volume24h != nil {
			fmt.Fprintf(&b, "24h volume (USD): %.2f\n", *m.Volume24h)
		}
		if m.Volatility != nil {
			fmt.Fprintf(&b, "24h volatility (fraction): %.4f\n", *m.Volatility)
		}
		if m.Liquidity != nil {
			fmt.Fprintf(&b, "Liquidity (USD): %.2f\n", *m.Liquidity)
		}
	}
	b.WriteString("Assess the risk of continuing to interact with this contract.")
	return b.String()
}

// extractJSONObject returns the first balanced top-level JSON object in the
// text, tolerating prose before and after it. Braces inside strings are
// honoured.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Analyzer = (*OpenRouter)(nil)
