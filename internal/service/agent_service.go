package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/flux/internal/config"
	"github.com/dushixiang/flux/internal/models"
	"github.com/dushixiang/flux/internal/xe"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// AgentDecision 解析后的模型决策
type AgentDecision struct {
	Action    models.DecisionAction
	Symbol    string
	Quantity  decimal.Decimal
	Reasoning string
}

// AgentUsage 单次调用的token用量
type AgentUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// AgentService 推理服务客户端。每个账户携带独立的提供方配置，
// 调用按账户维度构建客户端，互不影响。
type AgentService struct {
	logger *zap.Logger

	timeout  time.Duration
	retryMax int

	httpClient *http.Client // 测试注入，为nil时使用默认客户端
}

func NewAgentService(logger *zap.Logger, conf *config.Config) *AgentService {
	return &AgentService{
		logger:   logger,
		timeout:  time.Duration(conf.Trading.DecisionTimeoutSeconds) * time.Second,
		retryMax: conf.Trading.RetryMax,
	}
}

// Decide 请求一次交易决策。
// 瞬时故障按指数退避重试，重试耗尽返回瞬时类错误；
// 模型输出无法解析时降级为 hold，原始输出保留在 Reasoning 中。
func (s *AgentService) Decide(ctx context.Context, account *models.Account, system, prompt string) (*AgentDecision, *AgentUsage, error) {
	if missing := account.ValidateLLMConfig(); len(missing) > 0 {
		return nil, nil, xe.Configuration("account %s missing llm config: %s", account.ID, strings.Join(missing, ", "))
	}

	raw, usage, err := s.complete(ctx, account, system, prompt)
	if err != nil {
		return nil, usage, err
	}

	decision, parseErr := ParseDecision(raw)
	if parseErr != nil {
		s.logger.Warn("model output not parseable, falling back to hold",
			zap.String("account_id", account.ID),
			zap.String("model", account.Model),
			zap.Error(parseErr))
		decision = &AgentDecision{
			Action:    models.DecisionActionHold,
			Reasoning: raw,
		}
	}

	return decision, usage, nil
}

// Ask 向账户绑定的模型提一个关于其交易行为的问题
func (s *AgentService) Ask(ctx context.Context, account *models.Account, question string, recent []models.Decision) (string, *AgentUsage, error) {
	if missing := account.ValidateLLMConfig(); len(missing) > 0 {
		return "", nil, xe.Configuration("account %s missing llm config: %s", account.ID, strings.Join(missing, ", "))
	}

	var sb strings.Builder
	sb.WriteString("以下是你最近的交易决策记录：\n\n")
	for _, d := range recent {
		line := fmt.Sprintf("- 周期%d [%s] %s", d.Cycle, d.State, d.Action)
		if d.Symbol != "" {
			line += fmt.Sprintf(" %s x%s", d.Symbol, d.Quantity.String())
		}
		if d.Reasoning != "" {
			line += fmt.Sprintf("：%s", truncateString(d.Reasoning, 200))
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n用户的问题：" + question + "\n")
	sb.WriteString("请用中文直接回答用户的问题，不需要JSON格式。\n")

	system := "你是一个交易助理，负责向用户解释你过去的交易决策。"
	return s.complete(ctx, account, system, sb.String())
}

// complete 调用一次补全接口，带重试
func (s *AgentService) complete(ctx context.Context, account *models.Account, system, prompt string) (string, *AgentUsage, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retryMax; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			s.logger.Warn("retrying model request",
				zap.String("account_id", account.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", nil, xe.Transient(ctx.Err())
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		var (
			raw   string
			usage *AgentUsage
			err   error
		)
		switch account.Provider {
		case models.LLMProviderGemini:
			raw, usage, err = s.completeGemini(callCtx, account, system, prompt)
		default:
			raw, usage, err = s.completeOpenAI(callCtx, account, system, prompt)
		}
		cancel()

		if err == nil {
			return raw, usage, nil
		}
		lastErr = err

		// 提供方明确拒绝的请求重试只会得到同样的结果，直接失败
		switch classifyCompletion(err) {
		case completionAuth:
			return "", nil, xe.Configuration("provider rejected credentials: %v", err)
		case completionFatal:
			return "", nil, fmt.Errorf("provider rejected request: %w", err)
		}

		// 上游取消不再重试
		if ctx.Err() != nil {
			break
		}
	}

	return "", nil, xe.Transient(lastErr)
}

// completionClass 补全错误的处理方式
type completionClass int

const (
	completionRetry completionClass = iota // 瞬时传输故障，退避后重试
	completionAuth                         // 凭证被拒绝，属于账户配置错误
	completionFatal                        // 提供方明确拒绝，不重试
)

var errEmptyCompletion = errors.New("empty completion response")

// classifyCompletion 区分补全错误：超时、连接中断、限流和服务端错误
// 可以重试，4xx 是提供方对请求本身的拒绝。
func classifyCompletion(err error) completionClass {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return completionAuth
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError:
			return completionRetry
		case apiErr.StatusCode >= http.StatusBadRequest:
			return completionFatal
		}
	}
	if errors.Is(err, errEmptyCompletion) {
		return completionFatal
	}
	return completionRetry
}

func (s *AgentService) completeOpenAI(ctx context.Context, account *models.Account, system, prompt string) (string, *AgentUsage, error) {
	opts := []option.RequestOption{
		option.WithBaseURL(account.BaseURL),
		option.WithAPIKey(account.APIKey),
	}
	if s.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(s.httpClient))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(account.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to call chat completions: %w", err)
	}

	usage := &AgentUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}

	if len(resp.Choices) == 0 {
		return "", usage, errEmptyCompletion
	}

	return resp.Choices[0].Message.Content, usage, nil
}

// geminiClientConfig 按账户构建Gemini客户端配置，自定义接入点走HTTPOptions
func geminiClientConfig(account *models.Account) *genai.ClientConfig {
	cc := &genai.ClientConfig{
		APIKey:  account.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(account.BaseURL); baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}
	return cc
}

func (s *AgentService) completeGemini(ctx context.Context, account *models.Account, system, prompt string) (string, *AgentUsage, error) {
	client, err := genai.NewClient(ctx, geminiClientConfig(account))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, account.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to call gemini: %w", err)
	}

	usage := &AgentUsage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return resp.Text(), usage, nil
}

// ParseDecision 严格解析模型输出的决策JSON。
// 允许输出被Markdown代码块包裹，其余任何偏差都视为解析失败。
func ParseDecision(raw string) (*AgentDecision, error) {
	text := extractJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("no json object in output")
	}

	parsed := gjson.Parse(text)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("output is not a json object")
	}

	action := models.DecisionAction(strings.ToLower(parsed.Get("action").String()))
	reasoning := parsed.Get("reasoning").String()

	switch action {
	case models.DecisionActionHold:
		return &AgentDecision{Action: action, Reasoning: reasoning}, nil
	case models.DecisionActionBuy, models.DecisionActionSell:
		symbol := strings.ToUpper(strings.TrimSpace(parsed.Get("symbol").String()))
		if symbol == "" {
			return nil, fmt.Errorf("action %s requires a symbol", action)
		}
		quantityResult := parsed.Get("quantity")
		if !quantityResult.Exists() {
			return nil, fmt.Errorf("action %s requires a quantity", action)
		}
		quantity, err := decimal.NewFromString(quantityResult.String())
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", quantityResult.String(), err)
		}
		if quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
		}
		return &AgentDecision{
			Action:    action,
			Symbol:    symbol,
			Quantity:  quantity,
			Reasoning: reasoning,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", parsed.Get("action").String())
	}
}

// extractJSON 提取输出中的JSON对象，兼容```json代码块
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
