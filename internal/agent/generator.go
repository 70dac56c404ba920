package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
)

// systemPrompt 约束模型只依据检索到的简历片段作答。
const systemPrompt = `You are a resume screening assistant. You answer questions about a candidate based ONLY on the provided resume context.

Rules:
- Answer ONLY using the given context. If the context does not contain enough information, say so.
- Do NOT invent or assume facts not in the context.
- Be concise and professional.
- If asked about skills, experience, education, etc., base your answer strictly on the context.`

// emptyContextPlaceholder 在检索结果为空时代替上下文，提示模型无可用内容。
const emptyContextPlaceholder = "No relevant resume content found."

// AnswerGenerator 负责 RAG 的生成阶段：把检索到的简历片段、最近的对话
// 历史和用户问题拼装成 prompt，调用大模型生成回答，并把问答写回历史。
type AnswerGenerator struct {
	chatModel model.BaseChatModel
	memory    ChatMemory
}

// NewAnswerGenerator 创建回答生成器。memory 为 nil 时退化为无历史的单轮问答。
func NewAnswerGenerator(chatModel model.BaseChatModel, memory ChatMemory) (*AnswerGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model cannot be nil")
	}
	return &AnswerGenerator{
		chatModel: chatModel,
		memory:    memory,
	}, nil
}

// Answer 基于检索到的片段回答问题。
// 模型只收到检索结果，不会收到完整简历原文。
func (g *AnswerGenerator) Answer(ctx context.Context, sessionID string, question string, contextChunks []string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("问题不能为空")
	}

	messages := make([]*schema.Message, 0, constants.ChatHistoryWindow+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, g.recentHistory(sessionID)...)
	messages = append(messages, schema.UserMessage(buildUserContent(question, contextChunks)))

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("生成回答失败: %w", err)
	}

	answer := resp.Content
	g.persistTurn(sessionID, question, answer)
	return answer, nil
}

// recentHistory 返回最近 constants.ChatHistoryWindow 条历史消息。
// 历史读取失败只记录告警，不阻塞本次问答。
func (g *AnswerGenerator) recentHistory(sessionID string) []*schema.Message {
	if g.memory == nil {
		return nil
	}

	history, err := g.memory.GetHistory(sessionID)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("读取对话历史失败，本次回答不带历史")
		return nil
	}
	if len(history) > constants.ChatHistoryWindow {
		history = history[len(history)-constants.ChatHistoryWindow:]
	}
	return history
}

func (g *AnswerGenerator) persistTurn(sessionID string, question string, answer string) {
	if g.memory == nil {
		return
	}

	err := g.memory.AddMessages(sessionID, []*schema.Message{
		schema.UserMessage(question),
		schema.AssistantMessage(answer, nil),
	})
	if err != nil {
		logger.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("写入对话历史失败")
	}
}

// ClearHistory 清空会话的对话历史。
func (g *AnswerGenerator) ClearHistory(sessionID string) error {
	if g.memory == nil {
		return nil
	}
	return g.memory.ClearHistory(sessionID)
}

func buildUserContent(question string, contextChunks []string) string {
	contextText := emptyContextPlaceholder
	if len(contextChunks) > 0 {
		contextText = strings.Join(contextChunks, "\n\n---\n\n")
	}
	return fmt.Sprintf("Resume context (retrieved sections only):\n\n%s\n\n---\n\nQuestion: %s", contextText, question)
}
