package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/redis/go-redis/v9"
)

const summaryTTL = 5 * time.Minute

// SummaryCache caches derived attempt summaries so the history query does
// not hit the database on every progress poll. Entries are invalidated after
// each successful submission.
type SummaryCache interface {
	Get(ctx context.Context, quizID, studentID string) (*models.AttemptsSummary, error)
	Set(ctx context.Context, quizID, studentID string, summary models.AttemptsSummary) error
	Invalidate(ctx context.Context, quizID, studentID string) error
}

type redisSummaryCache struct {
	client *redis.Client
}

func NewRedisSummaryCache(client *redis.Client) SummaryCache {
	return &redisSummaryCache{client: client}
}

func summaryKey(quizID, studentID string) string {
	return fmt.Sprintf("quiz:summary:%s:%s", quizID, studentID)
}

func (c *redisSummaryCache) Get(ctx context.Context, quizID, studentID string) (*models.AttemptsSummary, error) {
	data, err := c.client.Get(ctx, summaryKey(quizID, studentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss, not an error
		}
		return nil, fmt.Errorf("failed to read summary cache: %w", err)
	}

	var summary models.AttemptsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &summary, nil
}

func (c *redisSummaryCache) Set(ctx context.Context, quizID, studentID string, summary models.AttemptsSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(quizID, studentID), data, summaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to write summary cache: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) Invalidate(ctx context.Context, quizID, studentID string) error {
	if err := c.client.Del(ctx, summaryKey(quizID, studentID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate summary cache: %w", err)
	}
	return nil
}
