package parser

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// LocalEmbedder 基于本地词向量文件的Embedding后端
// 文本向量为其所有已知词向量的平均值，无已知词时返回零向量
type LocalEmbedder struct {
	vectors    map[string][]float64
	dimensions int
	logger     zerolog.Logger
}

// NewLocalEmbedder 加载词向量权重文件并创建本地后端
// 权重文件每行格式: 词 v1 v2 ... vn，文件缺失或为空视为后端不可用
func NewLocalEmbedder(cfg config.LocalEmbeddingConfig) (*LocalEmbedder, error) {
	if cfg.WeightsPath == "" {
		return nil, fmt.Errorf("%w: 未配置词向量权重文件路径", ErrBackendUnavailable)
	}

	f, err := os.Open(cfg.WeightsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开权重文件失败: %v", ErrBackendUnavailable, err)
	}
	defer f.Close()

	vectors := make(map[string][]float64)
	dimensions := cfg.Dimensions

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		word := strings.ToLower(fields[0])
		vec := make([]float64, len(fields)-1)
		valid := true
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				valid = false
				break
			}
			vec[i] = v
		}
		if !valid {
			continue
		}
		if dimensions == 0 {
			dimensions = len(vec)
		}
		if len(vec) != dimensions {
			return nil, fmt.Errorf("%w: 权重文件第%d行维度不一致: 期望%d, 实际%d",
				ErrBackendUnavailable, lineNo, dimensions, len(vec))
		}
		vectors[word] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: 读取权重文件失败: %v", ErrBackendUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: 权重文件中没有有效词向量: %s", ErrBackendUnavailable, cfg.WeightsPath)
	}

	lg := logger.Logger.With().Str("component", "local_embedder").Logger()
	lg.Info().Int("words", len(vectors)).Int("dimensions", dimensions).Msg("本地词向量模型加载完成")

	return &LocalEmbedder{
		vectors:    vectors,
		dimensions: dimensions,
		logger:     lg,
	}, nil
}

// Dimensions 返回向量维度
func (l *LocalEmbedder) Dimensions() int {
	return l.dimensions
}

// Embed 向量化单条文本
func (l *LocalEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vec := make([]float64, l.dimensions)
	count := 0
	for _, word := range tokenizeWords(text) {
		wv, ok := l.vectors[word]
		if !ok {
			continue
		}
		for i, v := range wv {
			vec[i] += v
		}
		count++
	}
	if count > 0 {
		inv := 1.0 / float64(count)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch 批量向量化文本
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// tokenizeWords 小写分词，去掉词两端的非字母数字字符
func tokenizeWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
