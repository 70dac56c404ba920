package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/ratelimit"
)

const (
	defaultChatCompletionURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultChatModelName     = "qwen-plus"
)

// OpenAIChatModel 通过 OpenAI 兼容的 chat/completions 接口调用远程大模型，
// 实现 eino 的 model.BaseChatModel 接口。
type OpenAIChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	limiter     *ratelimit.TokenBucket
}

// NewOpenAIChatModel 根据配置创建一个 OpenAI 兼容的聊天模型客户端。
func NewOpenAIChatModel(cfg config.LLMConfig) (*OpenAIChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultChatModelName
	}

	apiURL := cfg.APIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultChatCompletionURL
	}

	logger.Logger.Info().
		Str("api_url", apiURL).
		Str("model", modelName).
		Int("requests_per_minute", cfg.RequestsPerMinute).
		Msg("初始化 OpenAI 兼容 LLM 客户端")

	return &OpenAIChatModel{
		apiKey:      cfg.APIKey,
		modelName:   modelName,
		apiURL:      apiURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temp,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     ratelimit.NewTokenBucket(cfg.RequestsPerMinute, 0),
	}, nil
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type chatCompletionChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Error   *chatCompletionError   `json:"error,omitempty"`
}

type chatCompletionError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Generate 实现 model.BaseChatModel 接口
func (c *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := chatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	var bodyBytes []byte
	err = c.limiter.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("创建 HTTP 请求失败: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("发送 HTTP 请求失败: %w", err)
		}
		defer httpResp.Body.Close()

		bodyBytes, err = io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("读取响应体失败: %w", err)
		}

		if httpResp.StatusCode != http.StatusOK {
			logger.Logger.Warn().
				Int("status", httpResp.StatusCode).
				Str("body", string(bodyBytes)).
				Msg("LLM API 请求失败")
			return fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("API 返回错误: %s (%s)", apiResp.Error.Message, apiResp.Error.Code)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := apiResp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	role := schema.RoleType(apiMessage.Role)
	if role == "" {
		role = schema.Assistant
	}

	return &schema.Message{
		Role:    role,
		Content: content,
	}, nil
}

// Stream 实现 model.BaseChatModel 接口 (未实现)
func (c *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 的 Stream 方法未实现")
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)
