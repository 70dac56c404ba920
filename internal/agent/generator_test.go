package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screener-go/internal/constants"
)

func TestAnswerGeneratorBuildsRAGPrompt(t *testing.T) {
	mock := NewMockChatModel("The candidate has 6 years of Go experience.", nil)
	gen, err := NewAnswerGenerator(mock, NewInMemoryChatMemory())
	require.NoError(t, err)

	chunks := []string{
		"[experience] Senior Engineer at Acme, 6 years building Go services",
		"[skills] Go, Kubernetes, MySQL",
	}
	answer, err := gen.Answer(context.Background(), "s1", "How much Go experience?", chunks)
	require.NoError(t, err)
	assert.Equal(t, "The candidate has 6 years of Go experience.", answer)

	sent := mock.LastCall()
	require.Len(t, sent, 2)
	assert.Equal(t, schema.System, sent[0].Role)
	assert.Contains(t, sent[0].Content, "resume screening assistant")

	userMsg := sent[1]
	assert.Equal(t, schema.User, userMsg.Role)
	assert.Contains(t, userMsg.Content, "Resume context (retrieved sections only):")
	assert.Contains(t, userMsg.Content, chunks[0])
	assert.Contains(t, userMsg.Content, chunks[1])
	assert.Contains(t, userMsg.Content, "\n\n---\n\n")
	assert.Contains(t, userMsg.Content, "Question: How much Go experience?")
}

func TestAnswerGeneratorEmptyContextPlaceholder(t *testing.T) {
	mock := NewMockChatModel("I cannot find that in the resume.", nil)
	gen, err := NewAnswerGenerator(mock, nil)
	require.NoError(t, err)

	_, err = gen.Answer(context.Background(), "s1", "Does the candidate know Rust?", nil)
	require.NoError(t, err)

	sent := mock.LastCall()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Content, emptyContextPlaceholder)
}

func TestAnswerGeneratorHistoryWindow(t *testing.T) {
	mem := NewInMemoryChatMemory()
	for i := 0; i < 10; i++ {
		require.NoError(t, mem.AddMessage("s1", schema.UserMessage(fmt.Sprintf("old-%d", i))))
	}

	mock := NewMockChatModel("ok", nil)
	gen, err := NewAnswerGenerator(mock, mem)
	require.NoError(t, err)

	_, err = gen.Answer(context.Background(), "s1", "q", []string{"[skills] Go"})
	require.NoError(t, err)

	// system + 最近6条历史 + 本次用户消息
	sent := mock.LastCall()
	require.Len(t, sent, constants.ChatHistoryWindow+2)
	assert.Equal(t, "old-4", sent[1].Content)
	assert.Equal(t, "old-9", sent[constants.ChatHistoryWindow].Content)
}

func TestAnswerGeneratorPersistsTurn(t *testing.T) {
	mem := NewInMemoryChatMemory()
	mock := NewMockChatModel("yes", nil)
	gen, err := NewAnswerGenerator(mock, mem)
	require.NoError(t, err)

	_, err = gen.Answer(context.Background(), "s1", "Does the candidate know Go?", []string{"[skills] Go"})
	require.NoError(t, err)

	history, err := mem.GetHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schema.User, history[0].Role)
	// 历史里只存原始问题，不存拼好的上下文
	assert.Equal(t, "Does the candidate know Go?", history[0].Content)
	assert.False(t, strings.Contains(history[0].Content, "Resume context"))
	assert.Equal(t, schema.Assistant, history[1].Role)
	assert.Equal(t, "yes", history[1].Content)
}

func TestAnswerGeneratorEmptyQuestion(t *testing.T) {
	gen, err := NewAnswerGenerator(NewMockChatModel("x", nil), nil)
	require.NoError(t, err)

	_, err = gen.Answer(context.Background(), "s1", "   ", []string{"[skills] Go"})
	assert.Error(t, err)
}

func TestAnswerGeneratorModelError(t *testing.T) {
	mem := NewInMemoryChatMemory()
	modelErr := errors.New("upstream unavailable")
	gen, err := NewAnswerGenerator(NewMockChatModel("", modelErr), mem)
	require.NoError(t, err)

	_, err = gen.Answer(context.Background(), "s1", "q", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, modelErr)

	// 失败的轮次不写入历史
	history, err := mem.GetHistory("s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswerGeneratorRequiresModel(t *testing.T) {
	_, err := NewAnswerGenerator(nil, nil)
	assert.Error(t, err)
}

func TestMockChatModelSequential(t *testing.T) {
	mock := NewMockChatModelSequential([]MockResponse{
		{Content: "first"},
		{Error: errors.New("boom")},
	})

	resp, err := mock.Generate(context.Background(), []*schema.Message{schema.UserMessage("a")})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	_, err = mock.Generate(context.Background(), []*schema.Message{schema.UserMessage("b")})
	assert.Error(t, err)

	_, err = mock.Generate(context.Background(), []*schema.Message{schema.UserMessage("c")})
	assert.Error(t, err)
}
