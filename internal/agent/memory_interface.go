package agent

import (
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"resume-screener-go/internal/constants"
)

// ChatMemory 定义了按会话存取对话历史的接口。
// 实现方需要保证单个会话的消息条数不超过 constants.ChatHistoryMaxLen，
// 超出部分丢弃最早的消息。
type ChatMemory interface {
	// GetHistory 返回会话的完整历史（最多 ChatHistoryMaxLen 条），按时间顺序排列。
	GetHistory(sessionID string) ([]*schema.Message, error)
	// AddMessage 追加一条消息。
	AddMessage(sessionID string, message *schema.Message) error
	// AddMessages 原子地追加一批消息。
	AddMessages(sessionID string, messages []*schema.Message) error
	// ClearHistory 清空会话历史。
	ClearHistory(sessionID string) error
}

// InMemoryChatMemory 是 ChatMemory 的进程内实现，用于测试和未配置 Redis 的降级场景。
type InMemoryChatMemory struct {
	mu       sync.RWMutex
	sessions map[string][]*schema.Message
	maxLen   int
}

// NewInMemoryChatMemory 创建一个进程内对话历史存储。
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		sessions: make(map[string][]*schema.Message),
		maxLen:   constants.ChatHistoryMaxLen,
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.sessions[sessionID]
	out := make([]*schema.Message, len(history))
	copy(out, history)
	return out, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	return m.AddMessages(sessionID, []*schema.Message{message})
}

// AddMessages 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessages(sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("会话 %s 的批量消息中包含空消息", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], messages...)
	if len(history) > m.maxLen {
		history = history[len(history)-m.maxLen:]
	}
	m.sessions[sessionID] = history
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

var _ ChatMemory = (*InMemoryChatMemory)(nil)
