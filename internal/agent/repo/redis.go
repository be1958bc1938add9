package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/retail-analyst/server/internal/agent/model"
	errx "github.com/retail-analyst/server/internal/core/error"
	logx "github.com/retail-analyst/server/pkg/logger"
)

// RedisConversationRepository keeps each conversation as a Redis list of
// JSON encoded messages. The key expires ttl after the last write.
type RedisConversationRepository struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxMessages int64
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration, maxMessages int) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl, maxMessages: int64(maxMessages)}
}

func (r *RedisConversationRepository) conversationKey(conversationID string) string {
	return fmt.Sprintf("analyst:conversation:%s:messages", conversationID)
}

func (r *RedisConversationRepository) AddMessage(ctx context.Context, conversationID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.conversationKey(conversationID)

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		if r.maxMessages > 0 {
			pipe.LTrim(ctx, key, -r.maxMessages, -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append message to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(conversationID)
	history := &model.ConversationHistory{ConversationID: conversationID}

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return history, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	history.Messages = make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			// A corrupt entry drops only itself, not the conversation.
			logx.Warn().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("skipping undecodable message")
			continue
		}
		history.Messages = append(history.Messages, &m)
	}
	return history, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.rdb.Del(ctx, r.conversationKey(conversationID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	n, err := r.rdb.LLen(ctx, r.conversationKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
