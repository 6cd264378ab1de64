package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vnkhanh/siquiz-backend/models"
)

const (
	cachePrefix         = "siquiz:"
	CategoriesActiveKey = cachePrefix + "categories:active"
	defaultQuizCacheTTL = 10 * time.Minute
)

// QuizCache cache projection "take" của quiz trên redis.
// Receiver nil = tắt cache, mọi method đều an toàn.
type QuizCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewQuizCache(rdb *redis.Client, ttl time.Duration) *QuizCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultQuizCacheTTL
	}
	return &QuizCache{rdb: rdb, ttl: ttl}
}

func takeKey(quizID uuid.UUID) string {
	return cachePrefix + "quiz:take:" + quizID.String()
}

func (c *QuizCache) GetTake(ctx context.Context, quizID uuid.UUID) (*models.TakeQuizDTO, bool) {
	var dto models.TakeQuizDTO
	if !c.GetJSON(ctx, takeKey(quizID), &dto) {
		return nil, false
	}
	return &dto, true
}

func (c *QuizCache) SetTake(ctx context.Context, dto *models.TakeQuizDTO) {
	c.SetJSON(ctx, takeKey(dto.ID), dto)
}

// InvalidateQuiz gọi sau mọi thay đổi quiz/câu hỏi/trạng thái
func (c *QuizCache) InvalidateQuiz(ctx context.Context, quizID uuid.UUID) {
	c.Delete(ctx, takeKey(quizID), CategoriesActiveKey)
}

func (c *QuizCache) GetJSON(ctx context.Context, key string, dst interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[QuizCache] get %s lỗi: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("[QuizCache] decode %s lỗi: %v", key, err)
		return false
	}
	return true
}

func (c *QuizCache) SetJSON(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[QuizCache] set %s lỗi: %v", key, err)
	}
}

func (c *QuizCache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[QuizCache] del lỗi: %v", err)
	}
}

// Ping dùng cho health check
func (c *QuizCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
