package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse 定义了 MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 是用于测试的 model.BaseChatModel 模拟实现，
// 记录每次调用收到的消息，按配置返回固定或顺序响应。
type MockChatModel struct {
	mu sync.Mutex

	ExpectedResponse string
	ExpectedError    error

	SequentialResponses []MockResponse
	responseIndex       int
	isSequential        bool

	ReceivedCalls [][]*schema.Message
}

// NewMockChatModel 创建一个返回固定响应的 MockChatModel
func NewMockChatModel(expectedResponse string, expectedError error) *MockChatModel {
	return &MockChatModel{
		ExpectedResponse: expectedResponse,
		ExpectedError:    expectedError,
	}
}

// NewMockChatModelSequential 创建一个按顺序返回不同响应的 MockChatModel
func NewMockChatModelSequential(responses []MockResponse) *MockChatModel {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock model has no responses configured")}}
	}
	return &MockChatModel{
		SequentialResponses: responses,
		isSequential:        true,
	}
}

// Generate 模拟 LLM 的 Generate 方法
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := make([]*schema.Message, len(input))
	copy(call, input)
	m.ReceivedCalls = append(m.ReceivedCalls, call)

	if m.isSequential {
		if m.responseIndex >= len(m.SequentialResponses) {
			return nil, errors.New("mock model has run out of sequential responses")
		}
		resp := m.SequentialResponses[m.responseIndex]
		m.responseIndex++
		if resp.Error != nil {
			return nil, resp.Error
		}
		return schema.AssistantMessage(resp.Content, nil), nil
	}

	if m.ExpectedError != nil {
		return nil, m.ExpectedError
	}
	return schema.AssistantMessage(m.ExpectedResponse, nil), nil
}

// Stream 模拟 LLM 的 Stream 方法
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented in MockChatModel")
}

// LastCall 返回最近一次 Generate 调用收到的消息，没有调用时返回 nil。
func (m *MockChatModel) LastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.ReceivedCalls) == 0 {
		return nil
	}
	return m.ReceivedCalls[len(m.ReceivedCalls)-1]
}

var _ model.BaseChatModel = (*MockChatModel)(nil)
