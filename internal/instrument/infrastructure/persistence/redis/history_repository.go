package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/riskengine/internal/instrument/domain"
)

// HistoryRedisRepository 基于 Redis 的历史行情缓存
// 缓存未命中返回 (nil, nil)，由应用层回源
type HistoryRedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewHistoryRedisRepository 创建历史行情缓存仓储。
func NewHistoryRedisRepository(client redis.UniversalClient) *HistoryRedisRepository {
	return &HistoryRedisRepository{
		client: client,
		prefix: "instrument:history:",
	}
}

func (r *HistoryRedisRepository) Get(ctx context.Context, symbol string) (*domain.History, error) {
	data, err := r.client.Get(ctx, r.prefix+symbol).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history from redis: %w", err)
	}
	var h domain.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return &h, nil
}

func (r *HistoryRedisRepository) Set(ctx context.Context, h *domain.History, ttl time.Duration) error {
	if h == nil {
		return nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return r.client.Set(ctx, r.prefix+h.Symbol, data, ttl).Err()
}
