package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-screener-go/internal/agent"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/processor"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/pkg/utils"
)

var handlerTracer = otel.Tracer("resume-screener-go/api/handler")

// 会话态错误，由路由层映射为4xx
var (
	// ErrResumeNotUploaded 会话还没有简历
	ErrResumeNotUploaded = errors.New("upload a resume first")
	// ErrJDNotUploaded 会话还没有岗位描述
	ErrJDNotUploaded = errors.New("upload a job description first")
)

// sessionTexts 会话的进程内文本缓存，Redis/MinIO不可用时的兜底
type sessionTexts struct {
	resume string
	jd     string
}

// ScreeningHandler 筛选处理器，协调上传、索引、打分和问答流程
type ScreeningHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	extractor *parser.TextExtractor
	pipeline  *processor.RetrievalPipeline
	scorer    *parser.ScoringEngine
	generator *agent.AnswerGenerator

	mu    sync.RWMutex
	texts map[string]*sessionTexts
}

// NewScreeningHandler 创建一个新的筛选处理器
func NewScreeningHandler(
	cfg *config.Config,
	storage *storage.Storage,
	extractor *parser.TextExtractor,
	pipeline *processor.RetrievalPipeline,
	scorer *parser.ScoringEngine,
	generator *agent.AnswerGenerator,
) *ScreeningHandler {
	return &ScreeningHandler{
		cfg:       cfg,
		storage:   storage,
		extractor: extractor,
		pipeline:  pipeline,
		scorer:    scorer,
		generator: generator,
		texts:     make(map[string]*sessionTexts),
	}
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	SessionID     string `json:"session_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
	TextLength    int    `json:"text_length"`
	Status        string `json:"status"`
}

// JDUploadResponse 岗位描述上传响应
type JDUploadResponse struct {
	SessionID  string `json:"session_id"`
	TextLength int    `json:"text_length"`
	Status     string `json:"status"`
}

// ChatResponse 问答响应
type ChatResponse struct {
	SessionID  string `json:"session_id"`
	Answer     string `json:"answer"`
	ChunksUsed int    `json:"chunks_used"`
}

// HandleResumeUpload 处理简历上传：提取文本、建立会话向量索引、落存储、发事件
func (h *ScreeningHandler) HandleResumeUpload(ctx context.Context, reader io.Reader, fileSize int64, filename string, sourceChannel string) (*ResumeUploadResponse, error) {
	ctx, span := handlerTracer.Start(ctx, "ScreeningHandler.HandleResumeUpload")
	defer span.End()
	span.SetAttributes(attribute.String("upload.filename", tracing.SafeAttributeValue("filename", filename, tracing.DefaultMaxLength)))

	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}

	text, err := h.extractor.ExtractText(ctx, fileBytes, filename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, fmt.Errorf("提取简历文本失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("文件中未提取到文本: %s", filename)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	sessionID := uuidV7.String()
	span.SetAttributes(attribute.String("session_id", sessionID))

	chunkCount, err := h.pipeline.IndexDocument(ctx, sessionID, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("索引简历失败: %w", err)
	}

	h.cacheText(ctx, sessionID, constants.DocTypeResume, text)

	session := &models.ScreeningSession{
		SessionID:      sessionID,
		SourceChannel:  sourceChannel,
		ResumeFilename: filename,
		ResumeTextMD5:  utils.CalculateMD5([]byte(text)),
		ChunkCount:     chunkCount,
		Status:         constants.SessionStatusIndexed,
	}

	if h.storage.MinIO != nil {
		ext := filepath.Ext(filename)
		if ext == "" {
			ext = ".pdf"
		}
		objectKey, fileMD5, err := h.storage.MinIO.UploadOriginalFile(ctx, sessionID, constants.DocTypeResume, ext, bytes.NewReader(fileBytes), int64(len(fileBytes)))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("上传简历原始文件到MinIO失败: %w", err)
		}
		session.ResumeObjectKey = objectKey
		logger.Debug().Str("session_id", sessionID).Str("file_md5", fileMD5).Msg("简历原始文件已上传")

		textKey, err := h.storage.MinIO.UploadParsedText(ctx, sessionID, constants.DocTypeResume, text)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("上传解析文本到MinIO失败: %w", err)
		}
		session.ResumeTextObjectKey = textKey
	}

	if h.storage.MySQL != nil {
		if err := h.storage.MySQL.CreateSession(ctx, session); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("创建会话记录失败: %w", err)
		}
	}

	h.publishEvent(ctx, h.cfg.RabbitMQ.ResumeUploadedKey, storage.ScreeningEvent{
		SessionID:  sessionID,
		EventType:  "resume.uploaded",
		Filename:   filename,
		ChunkCount: chunkCount,
	})

	logger.Info().
		Str("session_id", sessionID).
		Str("filename", filename).
		Int("chunks_indexed", chunkCount).
		Int("text_length", len(text)).
		Msg("简历上传完成")

	span.SetStatus(codes.Ok, "")
	return &ResumeUploadResponse{
		SessionID:     sessionID,
		ChunksIndexed: chunkCount,
		TextLength:    len(text),
		Status:        constants.SessionStatusIndexed,
	}, nil
}

// HandleJDUpload 处理岗位描述上传。fileBytes/filename 和 rawText 二选一。
func (h *ScreeningHandler) HandleJDUpload(ctx context.Context, sessionID string, fileBytes []byte, filename string, rawText string) (*JDUploadResponse, error) {
	ctx, span := handlerTracer.Start(ctx, "ScreeningHandler.HandleJDUpload")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	if _, err := h.resumeText(ctx, sessionID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	var text string
	if rawText != "" {
		text = rawText
	} else {
		extracted, err := h.extractor.ExtractText(ctx, fileBytes, filename)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeValidation)
			return nil, fmt.Errorf("提取岗位描述文本失败: %w", err)
		}
		text = extracted
	}
	if strings.TrimSpace(text) == "" {
		err := errors.New("岗位描述内容为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	h.cacheText(ctx, sessionID, constants.DocTypeJD, text)

	updates := map[string]interface{}{
		"jd_filename": filename,
		"status":      constants.SessionStatusJDReady,
	}

	if h.storage.MinIO != nil {
		if len(fileBytes) > 0 {
			ext := filepath.Ext(filename)
			if ext == "" {
				ext = ".txt"
			}
			objectKey, _, err := h.storage.MinIO.UploadOriginalFile(ctx, sessionID, constants.DocTypeJD, ext, bytes.NewReader(fileBytes), int64(len(fileBytes)))
			if err != nil {
				tracing.RecordError(span, err, tracing.ErrorTypeInternal)
				return nil, fmt.Errorf("上传岗位描述原始文件到MinIO失败: %w", err)
			}
			updates["jd_object_key"] = objectKey
		}
		textKey, err := h.storage.MinIO.UploadParsedText(ctx, sessionID, constants.DocTypeJD, text)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return nil, fmt.Errorf("上传岗位描述文本到MinIO失败: %w", err)
		}
		updates["jd_text_object_key"] = textKey
	}

	if h.storage.MySQL != nil {
		if err := h.storage.MySQL.UpdateSessionFields(ctx, sessionID, updates); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("更新会话记录失败: %w", err)
		}
	}

	h.publishEvent(ctx, h.cfg.RabbitMQ.JDUploadedKey, storage.ScreeningEvent{
		SessionID: sessionID,
		EventType: "jd.uploaded",
		Filename:  filename,
	})

	logger.Info().
		Str("session_id", sessionID).
		Int("text_length", len(text)).
		Msg("岗位描述上传完成")

	span.SetStatus(codes.Ok, "")
	return &JDUploadResponse{
		SessionID:  sessionID,
		TextLength: len(text),
		Status:     constants.SessionStatusJDReady,
	}, nil
}

// HandleAnalysis 对会话的简历和岗位描述执行匹配打分，并持久化分析结果
func (h *ScreeningHandler) HandleAnalysis(ctx context.Context, sessionID string) (*parser.MatchAnalysis, error) {
	ctx, span := handlerTracer.Start(ctx, "ScreeningHandler.HandleAnalysis")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	resumeText, resumeErr := h.resumeText(ctx, sessionID)
	jdText, jdErr := h.jdText(ctx, sessionID)
	if resumeErr != nil || jdErr != nil {
		// 文本不可用时退回数据库中最近一次的分析结果
		if stored := h.storedAnalysis(ctx, sessionID); stored != nil {
			span.SetStatus(codes.Ok, "")
			return stored, nil
		}
		err := resumeErr
		if err == nil {
			err = jdErr
		}
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	analysis := h.scorer.ComputeAnalysis(resumeText, jdText)
	span.SetAttributes(attribute.Float64("analysis.match_score", analysis.MatchScore))

	if h.storage.MySQL != nil {
		record := &models.AnalysisRecord{
			SessionID:         sessionID,
			MatchScore:        analysis.MatchScore,
			StrengthsJSON:     models.StringSliceToJSON(analysis.Strengths),
			GapsJSON:          models.StringSliceToJSON(analysis.Gaps),
			KeyInsightsJSON:   models.StringSliceToJSON(analysis.KeyInsights),
			SkillOverlapJSON:  models.StringSliceToJSON(analysis.SkillOverlap),
			MissingSkillsJSON: models.StringSliceToJSON(analysis.MissingSkills),
		}
		if err := h.storage.MySQL.SaveAnalysis(ctx, record); err != nil {
			// 打分结果仍然返回给调用方，持久化失败只告警
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("保存分析结果失败")
		}
	}

	h.publishEvent(ctx, h.cfg.RabbitMQ.AnalysisCompletedKey, storage.ScreeningEvent{
		SessionID:  sessionID,
		EventType:  "analysis.completed",
		MatchScore: analysis.MatchScore,
	})

	logger.Info().
		Str("session_id", sessionID).
		Float64("match_score", analysis.MatchScore).
		Msg("匹配分析完成")

	span.SetStatus(codes.Ok, "")
	return analysis, nil
}

// HandleChat 基于会话的简历索引回答问题，只转发检索到的片段给大模型
func (h *ScreeningHandler) HandleChat(ctx context.Context, sessionID string, question string, topK int) (*ChatResponse, error) {
	ctx, span := handlerTracer.Start(ctx, "ScreeningHandler.HandleChat")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("chat.question", tracing.SafeQuestion(question)),
	)

	if strings.TrimSpace(question) == "" {
		err := errors.New("问题不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if h.pipeline.ChunkCount(sessionID) == 0 {
		tracing.RecordError(span, ErrResumeNotUploaded, tracing.ErrorTypeValidation)
		return nil, ErrResumeNotUploaded
	}

	chunks, err := h.pipeline.Retrieve(ctx, sessionID, question, topK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("检索简历片段失败: %w", err)
	}

	answer, err := h.generator.Answer(ctx, sessionID, question, chunks)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &ChatResponse{
		SessionID:  sessionID,
		Answer:     answer,
		ChunksUsed: len(chunks),
	}, nil
}

// HandleSessionDelete 清除会话的全部数据：向量索引、缓存文本、对话历史、
// 对象存储和数据库记录。幂等，不存在的会话也返回成功。
func (h *ScreeningHandler) HandleSessionDelete(ctx context.Context, sessionID string) error {
	ctx, span := handlerTracer.Start(ctx, "ScreeningHandler.HandleSessionDelete")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	h.pipeline.ClearSession(sessionID)

	h.mu.Lock()
	delete(h.texts, sessionID)
	h.mu.Unlock()

	if err := h.generator.ClearHistory(sessionID); err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("清除对话历史失败")
	}

	if h.storage.Redis != nil {
		if err := h.storage.Redis.DeleteSessionDocuments(ctx, sessionID); err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("清除Redis文档缓存失败")
		}
	}

	if h.storage.MinIO != nil {
		if err := h.storage.MinIO.DeleteSessionObjects(ctx, sessionID); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			return fmt.Errorf("清除MinIO对象失败: %w", err)
		}
	}

	if h.storage.MySQL != nil {
		if err := h.storage.MySQL.DeleteSessionData(ctx, sessionID); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("清除会话数据库记录失败: %w", err)
		}
	}

	logger.Info().Str("session_id", sessionID).Msg("会话已清除")
	span.SetStatus(codes.Ok, "")
	return nil
}

// storedAnalysis 读取数据库中的最近一次分析结果，任何失败都返回nil
func (h *ScreeningHandler) storedAnalysis(ctx context.Context, sessionID string) *parser.MatchAnalysis {
	if h.storage.MySQL == nil {
		return nil
	}
	record, err := h.storage.MySQL.GetAnalysisBySession(ctx, sessionID)
	if err != nil {
		return nil
	}

	analysis := &parser.MatchAnalysis{MatchScore: record.MatchScore}
	if analysis.Strengths, err = models.JSONToStringSlice(record.StrengthsJSON); err != nil {
		return nil
	}
	if analysis.Gaps, err = models.JSONToStringSlice(record.GapsJSON); err != nil {
		return nil
	}
	if analysis.KeyInsights, err = models.JSONToStringSlice(record.KeyInsightsJSON); err != nil {
		return nil
	}
	if analysis.SkillOverlap, err = models.JSONToStringSlice(record.SkillOverlapJSON); err != nil {
		return nil
	}
	if analysis.MissingSkills, err = models.JSONToStringSlice(record.MissingSkillsJSON); err != nil {
		return nil
	}
	return analysis
}

// cacheText 把会话文档写入进程内缓存和Redis（如果配置了）
func (h *ScreeningHandler) cacheText(ctx context.Context, sessionID, docType, text string) {
	h.mu.Lock()
	entry, ok := h.texts[sessionID]
	if !ok {
		entry = &sessionTexts{}
		h.texts[sessionID] = entry
	}
	switch docType {
	case constants.DocTypeResume:
		entry.resume = text
	case constants.DocTypeJD:
		entry.jd = text
	}
	h.mu.Unlock()

	if h.storage.Redis != nil {
		if err := h.storage.Redis.CacheSessionDocument(ctx, sessionID, docType, text, constants.SessionDocumentTTL); err != nil {
			logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("doc_type", docType).
				Msg("缓存会话文档到Redis失败")
		}
	}
}

// resumeText 取会话的简历文本，按 进程内缓存 → Redis → MinIO 的顺序查找
func (h *ScreeningHandler) resumeText(ctx context.Context, sessionID string) (string, error) {
	text := h.loadText(ctx, sessionID, constants.DocTypeResume)
	if text == "" {
		return "", ErrResumeNotUploaded
	}
	return text, nil
}

// jdText 取会话的岗位描述文本
func (h *ScreeningHandler) jdText(ctx context.Context, sessionID string) (string, error) {
	text := h.loadText(ctx, sessionID, constants.DocTypeJD)
	if text == "" {
		return "", ErrJDNotUploaded
	}
	return text, nil
}

func (h *ScreeningHandler) loadText(ctx context.Context, sessionID, docType string) string {
	h.mu.RLock()
	entry := h.texts[sessionID]
	h.mu.RUnlock()
	if entry != nil {
		switch docType {
		case constants.DocTypeResume:
			if entry.resume != "" {
				return entry.resume
			}
		case constants.DocTypeJD:
			if entry.jd != "" {
				return entry.jd
			}
		}
	}

	if h.storage.Redis != nil {
		text, err := h.storage.Redis.GetSessionDocument(ctx, sessionID, docType)
		if err == nil && text != "" {
			return text
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("doc_type", docType).
				Msg("从Redis读取会话文档失败")
		}
	}

	if h.storage.MinIO != nil && h.storage.MySQL != nil {
		session, err := h.storage.MySQL.GetSession(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, storage.ErrSessionNotFound) {
				logger.Warn().Err(err).Str("session_id", sessionID).Msg("查询会话记录失败")
			}
			return ""
		}
		objectKey := session.ResumeTextObjectKey
		if docType == constants.DocTypeJD {
			objectKey = session.JDTextObjectKey
		}
		if objectKey == "" {
			return ""
		}
		text, err := h.storage.MinIO.GetParsedText(ctx, objectKey)
		if err != nil {
			logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("object_key", objectKey).
				Msg("从MinIO读取解析文本失败")
			return ""
		}
		return text
	}

	return ""
}

func (h *ScreeningHandler) publishEvent(ctx context.Context, routingKey string, event storage.ScreeningEvent) {
	if h.storage.RabbitMQ == nil {
		return
	}
	event.OccurredAt = time.Now()
	h.storage.RabbitMQ.PublishScreeningEvent(ctx, routingKey, event)
}
