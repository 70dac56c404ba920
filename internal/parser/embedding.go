package parser

import (
	"context"
	"errors"
	"fmt"

	"resume-screener-go/internal/config"
)

// ErrBackendUnavailable 所选Embedding后端不可用(API密钥缺失、权重文件缺失、远端不可达等)
var ErrBackendUnavailable = errors.New("embedding backend unavailable")

// ErrLengthMismatch 批量嵌入返回的向量数与输入文本数不一致
var ErrLengthMismatch = errors.New("embedding count does not match input count")

// Embedder 文本向量化接口，后端在进程启动时选定
type Embedder interface {
	// Embed 将单条文本转换为向量
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch 批量向量化，返回向量数与输入一一对应
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	// Dimensions 返回向量维度
	Dimensions() int
}

// NewEmbedder 根据配置创建Embedding后端
// 后端不可用时返回包装了ErrBackendUnavailable的错误，不做静默回退
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Backend {
	case "remote":
		return NewRemoteEmbedder(cfg.Remote)
	case "local":
		return NewLocalEmbedder(cfg.Local)
	default:
		return nil, fmt.Errorf("未知的embedding后端: %q", cfg.Backend)
	}
}
