package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
)

// ErrNotFound key不存在，包装redis.Nil便于上层判断
var ErrNotFound = redis.Nil

// Redis 键值存储封装
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis注册OpenTelemetry追踪失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败 %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// CacheSessionDocument 缓存会话的解析文本(简历或JD)，带TTL避免堆积
func (r *Redis) CacheSessionDocument(ctx context.Context, sessionID, docType, text string, ttl time.Duration) error {
	key := fmt.Sprintf(constants.KeySessionDocument, sessionID) + ":" + docType
	return r.Client.Set(ctx, key, text, ttl).Err()
}

// GetSessionDocument 读取会话缓存的解析文本，未命中返回ErrNotFound
func (r *Redis) GetSessionDocument(ctx context.Context, sessionID, docType string) (string, error) {
	key := fmt.Sprintf(constants.KeySessionDocument, sessionID) + ":" + docType
	return r.Client.Get(ctx, key).Result()
}

// DeleteSessionDocuments 删除会话缓存的全部解析文本
func (r *Redis) DeleteSessionDocuments(ctx context.Context, sessionID string) error {
	base := fmt.Sprintf(constants.KeySessionDocument, sessionID)
	return r.Client.Del(ctx, base+":resume", base+":jd").Err()
}
