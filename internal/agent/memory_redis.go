package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"resume-screener-go/internal/constants"
)

// RedisChatMemory 实现了 ChatMemory 接口，使用 Redis LIST 持久化对话历史。
// Key 格式由 constants.KeyChatHistory 统一约定，写入时通过 LTRIM 保留
// 最近 constants.ChatHistoryMaxLen 条消息，并刷新 TTL。
type RedisChatMemory struct {
	redisClient *redis.Client
	maxLen      int
	ttl         time.Duration
}

// NewRedisChatMemory 创建一个新的 RedisChatMemory 实例。
// redisClient: 一个已连接和配置好的 go-redis 客户端实例。
func NewRedisChatMemory(redisClient *redis.Client) (*RedisChatMemory, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisChatMemory{
		redisClient: redisClient,
		maxLen:      constants.ChatHistoryMaxLen,
		ttl:         constants.ChatHistoryTTL,
	}, nil
}

func (rcm *RedisChatMemory) buildKey(sessionID string) string {
	return fmt.Sprintf(constants.KeyChatHistory, sessionID)
}

// GetHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	key := rcm.buildKey(sessionID)
	ctx := context.Background()

	serializedMessages, err := rcm.redisClient.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from redis for session %s: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serializedMessages))
	for _, sm := range serializedMessages {
		var msg schema.Message
		if err := json.Unmarshal([]byte(sm), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message for session %s: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessage 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("cannot add nil message to chat history for session %s", sessionID)
	}
	return rcm.AddMessages(sessionID, []*schema.Message{message})
}

// AddMessages 实现 ChatMemory 接口
// RPush、LTrim 和 Expire 在同一个事务 Pipeline 中执行，保证截断和续期
// 对并发写入方原子可见。
func (rcm *RedisChatMemory) AddMessages(sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := rcm.buildKey(sessionID)
	ctx := context.Background()

	serialized := make([]interface{}, 0, len(messages))
	for _, message := range messages {
		if message == nil {
			return fmt.Errorf("cannot add nil message in a batch to chat history for session %s", sessionID)
		}
		data, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message in batch for session %s: %w", sessionID, err)
		}
		serialized = append(serialized, data)
	}

	pipe := rcm.redisClient.TxPipeline()
	pipe.RPush(ctx, key, serialized...)
	pipe.LTrim(ctx, key, int64(-rcm.maxLen), -1)
	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add messages to redis for session %s: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) ClearHistory(sessionID string) error {
	key := rcm.buildKey(sessionID)
	ctx := context.Background()

	if err := rcm.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear chat history from redis for session %s: %w", sessionID, err)
	}
	return nil
}

var _ ChatMemory = (*RedisChatMemory)(nil)
