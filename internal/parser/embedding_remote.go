package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// RemoteEmbedder 通过OpenAI兼容的Embedding API向量化文本
type RemoteEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// openAIEmbeddingRequest OpenAI兼容的Embedding请求结构
type openAIEmbeddingRequest struct {
	Input          interface{} `json:"input"` // string 或 []string
	Model          string      `json:"model"`
	Dimensions     int         `json:"dimensions,omitempty"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容的Embedding响应结构
type openAIEmbeddingResponse struct {
	Object string               `json:"object"`
	Data   []openAIDataEntry    `json:"data"`
	Model  string               `json:"model"`
	Usage  openAIEmbeddingUsage `json:"usage"`
	ID     string               `json:"id,omitempty"`
	Error  *openAIAPIError      `json:"error,omitempty"`
}

type openAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIEmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// openAIAPIError 200响应中可能携带的API级错误
type openAIAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param"`
	Code    string `json:"code"`
}

// NewRemoteEmbedder 创建远程Embedding后端
// API密钥缺失视为后端不可用
func NewRemoteEmbedder(cfg config.RemoteEmbeddingConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: 缺少API密钥", ErrBackendUnavailable)
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RemoteEmbedder{
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: cfg.Dimensions,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Logger.With().Str("component", "remote_embedder").Logger(),
	}, nil
}

// Dimensions 返回配置的向量维度
func (r *RemoteEmbedder) Dimensions() int {
	return r.dimensions
}

// Embed 向量化单条文本
func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: 期望1个向量, 实际%d个", ErrLengthMismatch, len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化文本
func (r *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	var input interface{}
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	reqBody := openAIEmbeddingRequest{
		Input: input,
		Model: r.model,
	}
	if r.dimensions > 0 {
		reqBody.Dimensions = r.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	r.logger.Debug().Int("texts", len(texts)).Str("model", r.model).Msg("发送embedding请求")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error openAIAPIError `json:"error"`
		}
		detailed := fmt.Errorf("API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			detailed = fmt.Errorf("API调用失败, 状态码: %d, 类型: %s, 错误: %s, Code: %s",
				resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message, apiErr.Error.Code)
		}
		r.logger.Error().Int("status", resp.StatusCode).Msg("embedding API调用失败")
		// 鉴权失败与服务端错误视为后端不可用
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
			resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, detailed)
		}
		return nil, detailed
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("API返回错误: 类型=%s, 消息='%s', Code=%s",
			parsed.Error.Type, parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: 请求%d条, 返回%d条", ErrLengthMismatch, len(texts), len(parsed.Data))
	}

	// 按index排列，响应顺序不保证与请求一致
	out := make([][]float64, len(texts))
	for _, entry := range parsed.Data {
		if entry.Index < 0 || entry.Index >= len(out) {
			return nil, fmt.Errorf("响应中出现越界index: %d", entry.Index)
		}
		out[entry.Index] = entry.Embedding
	}

	r.logger.Debug().
		Int("texts", len(texts)).
		Int("prompt_tokens", parsed.Usage.PromptTokens).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Msg("embedding请求完成")

	return out, nil
}
