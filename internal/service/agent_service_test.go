package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseDecisionBuy(t *testing.T) {
	decision, err := ParseDecision(`{"action": "buy", "symbol": "BTCUSDT", "quantity": 0.5, "reasoning": "突破阻力位"}`)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionActionBuy, decision.Action)
	assert.Equal(t, "BTCUSDT", decision.Symbol)
	requireDecimalEqual(t, "0.5", decision.Quantity)
	assert.Equal(t, "突破阻力位", decision.Reasoning)
}

func TestParseDecisionHold(t *testing.T) {
	decision, err := ParseDecision(`{"action": "hold", "reasoning": "信号不明确"}`)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionActionHold, decision.Action)
	assert.Empty(t, decision.Symbol)
}

func TestParseDecisionMarkdownFenced(t *testing.T) {
	raw := "好的，我的决策如下：\n```json\n{\"action\": \"sell\", \"symbol\": \"ethusdt\", \"quantity\": \"1.5\"}\n```"
	decision, err := ParseDecision(raw)
	require.NoError(t, err)

	assert.Equal(t, models.DecisionActionSell, decision.Action)
	assert.Equal(t, "ETHUSDT", decision.Symbol)
	requireDecimalEqual(t, "1.5", decision.Quantity)
}

func TestParseDecisionCaseInsensitiveAction(t *testing.T) {
	decision, err := ParseDecision(`{"action": "BUY", "symbol": "BTCUSDT", "quantity": 1}`)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionActionBuy, decision.Action)
}

func TestParseDecisionErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"plain text", "今天应该买入比特币"},
		{"empty", ""},
		{"unknown action", `{"action": "short", "symbol": "BTCUSDT", "quantity": 1}`},
		{"buy without symbol", `{"action": "buy", "quantity": 1}`},
		{"buy without quantity", `{"action": "buy", "symbol": "BTCUSDT"}`},
		{"zero quantity", `{"action": "buy", "symbol": "BTCUSDT", "quantity": 0}`},
		{"negative quantity", `{"action": "sell", "symbol": "BTCUSDT", "quantity": -1}`},
		{"quantity not a number", `{"action": "buy", "symbol": "BTCUSDT", "quantity": "many"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDecision(tc.raw)
			assert.Error(t, err)
		})
	}
}

func newProviderAPIError(status int) *openai.Error {
	return &openai.Error{
		StatusCode: status,
		Request: &http.Request{
			Method: http.MethodPost,
			URL:    &url.URL{Path: "/v1/chat/completions"},
		},
		Response: &http.Response{StatusCode: status},
	}
}

func TestClassifyCompletion(t *testing.T) {
	assert.Equal(t, completionAuth, classifyCompletion(newProviderAPIError(http.StatusUnauthorized)))
	assert.Equal(t, completionAuth, classifyCompletion(newProviderAPIError(http.StatusForbidden)))

	assert.Equal(t, completionFatal, classifyCompletion(newProviderAPIError(http.StatusBadRequest)))
	assert.Equal(t, completionFatal, classifyCompletion(newProviderAPIError(http.StatusNotFound)))
	assert.Equal(t, completionFatal, classifyCompletion(errEmptyCompletion))

	// 限流、服务端错误和传输层故障可以重试
	assert.Equal(t, completionRetry, classifyCompletion(newProviderAPIError(http.StatusTooManyRequests)))
	assert.Equal(t, completionRetry, classifyCompletion(newProviderAPIError(http.StatusBadGateway)))
	assert.Equal(t, completionRetry, classifyCompletion(context.DeadlineExceeded))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestDecideFailsFastOnCredentialRejection(t *testing.T) {
	var calls int
	agent := NewAgentService(zap.NewNop(), newTestConfig())
	agent.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)),
				Request:    r,
			}, nil
		}),
	}

	account := &models.Account{
		ID:       "acc-1",
		Provider: models.LLMProviderOpenAI,
		BaseURL:  "http://127.0.0.1:1/v1",
		APIKey:   "bad-key",
		Model:    "gpt-4o",
	}

	_, _, err := agent.Decide(context.Background(), account, "system", "prompt")
	require.ErrorIs(t, err, xe.ErrConfiguration)

	// 凭证被拒绝不应消耗重试预算
	assert.Equal(t, 1, calls)
}

func TestGeminiClientConfigBaseURL(t *testing.T) {
	account := &models.Account{APIKey: "k", BaseURL: " https://gemini.example.com "}
	cc := geminiClientConfig(account)
	assert.Equal(t, "https://gemini.example.com", cc.HTTPOptions.BaseURL)

	cc = geminiClientConfig(&models.Account{APIKey: "k"})
	assert.Empty(t, cc.HTTPOptions.BaseURL)
}
