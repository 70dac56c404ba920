package processor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/storage"
)

// RetrievalPipeline RAG检索管线: 分块 -> 向量化 -> 入库 -> 检索
// 检索结果只包含简历分块原文，发给LLM的上下文完全来自这里
type RetrievalPipeline struct {
	chunker     *parser.Chunker
	embedder    parser.Embedder
	store       *storage.VectorStore
	defaultTopK int
	logger      zerolog.Logger
}

// NewRetrievalPipeline 创建检索管线
// defaultTopK非正时使用5
func NewRetrievalPipeline(embedder parser.Embedder, store *storage.VectorStore, defaultTopK int) *RetrievalPipeline {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &RetrievalPipeline{
		chunker:     parser.NewChunker(),
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
		logger:      logger.Logger.With().Str("component", "retrieval_pipeline").Logger(),
	}
}

// IndexDocument 将简历文本分块、向量化并写入会话索引，返回分块数
// 重复调用同一会话时整体替换旧索引；分块为0时不改动既有索引
func (p *RetrievalPipeline) IndexDocument(ctx context.Context, sessionID, resumeText string) (int, error) {
	chunks := p.chunker.ChunkResume(resumeText)
	if len(chunks) == 0 {
		return 0, nil
	}

	// 入库文本带节名前缀，检索结果自说明
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = fmt.Sprintf("[%s] %s", chunk.Section, chunk.Content)
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("向量化简历分块失败: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("%w: 分块%d个, 向量%d个", parser.ErrLengthMismatch, len(texts), len(embeddings))
	}

	p.store.Delete(sessionID)
	if err := p.store.Add(sessionID, embeddings, texts); err != nil {
		return 0, fmt.Errorf("写入向量索引失败: %w", err)
	}

	p.logger.Info().
		Str("session_id", sessionID).
		Int("chunks", len(chunks)).
		Msg("简历索引完成")

	return len(chunks), nil
}

// Retrieve 向量化问题并在会话内检索相关分块
// topK非正时使用默认值，并受上限约束
func (p *RetrievalPipeline) Retrieve(ctx context.Context, sessionID, question string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = p.defaultTopK
	}
	if topK > constants.MaxRetrievalTopK {
		topK = constants.MaxRetrievalTopK
	}

	queryEmbedding, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("向量化问题失败: %w", err)
	}

	results := p.store.Search(sessionID, queryEmbedding, topK)
	p.logger.Debug().
		Str("session_id", sessionID).
		Int("top_k", topK).
		Int("results", len(results)).
		Msg("检索完成")
	return results, nil
}

// ClearSession 清除会话的向量数据
func (p *RetrievalPipeline) ClearSession(sessionID string) {
	p.store.Delete(sessionID)
}

// ChunkCount 返回会话已索引分块数
func (p *RetrievalPipeline) ChunkCount(sessionID string) int {
	return p.store.Count(sessionID)
}
