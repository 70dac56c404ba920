package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"resume-screener-go/internal/logger"
)

// TextExtractor 从上传的简历/JD文件中提取纯文本，支持PDF与TXT
type TextExtractor struct {
	pdfParser *pdf.PDFParser
	logger    zerolog.Logger
}

// NewTextExtractor 初始化文本提取器
// PDF解析配置为不按页分割，获取整个文档的连续文本
func NewTextExtractor(ctx context.Context) (*TextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	return &TextExtractor{
		pdfParser: p,
		logger:    logger.Logger.With().Str("component", "text_extractor").Logger(),
	}, nil
}

// ExtractText 根据文件名后缀从字节内容提取文本
// 不支持的类型返回错误，不做内容嗅探
func (e *TextExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractFromPDF(ctx, data, filename)
	case ".txt":
		return e.extractFromTxt(data), nil
	default:
		return "", fmt.Errorf("不支持的文件类型: %s, 仅支持PDF与TXT", filepath.Ext(filename))
	}
}

func (e *TextExtractor) extractFromPDF(ctx context.Context, data []byte, uri string) (string, error) {
	startTime := time.Now()
	e.logger.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("开始提取PDF文本")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
	)
	if err != nil {
		return "", fmt.Errorf("PDF解析失败 %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果: %s", uri)
	}

	// 合并所有文档内容，以防返回多个
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(doc.Content)
	}
	text := b.String()

	e.logger.Debug().
		Str("uri", uri).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")

	return text, nil
}

// extractFromTxt 按UTF-8读取文本，非法字节替换为U+FFFD
func (e *TextExtractor) extractFromTxt(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
